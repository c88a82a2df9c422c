// Package schema validates authorizer response shapes against embedded
// JSON Schemas before the gateway evaluates them.
package schema

import (
	_ "embed"
	"encoding/json"
	"errors"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type SchemaType int

const (
	// SchemaTypeSimpleResponse is the {isAuthorized: bool} decision
	// shape, valid only under payload format version 2.0.
	SchemaTypeSimpleResponse SchemaType = iota

	// SchemaTypeIAMResponse is the principalId/policyDocument decision
	// shape used by every other authorizer configuration.
	SchemaTypeIAMResponse
)

type Schema struct {
	schemas map[SchemaType]*gojsonschema.Schema
}

//go:embed simple-response.json
var simpleResponse json.RawMessage

//go:embed iam-response.json
var iamResponse json.RawMessage

// New compiles the embedded authorizer response schemas.
func New() (*Schema, error) {
	simple, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(simpleResponse))
	if err != nil {
		return nil, err
	}

	iam, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(iamResponse))
	if err != nil {
		return nil, err
	}

	return &Schema{
		schemas: map[SchemaType]*gojsonschema.Schema{
			SchemaTypeSimpleResponse: simple,
			SchemaTypeIAMResponse:    iam,
		},
	}, nil
}

// Validate checks data against the schema for the given type and
// returns an error describing every violation.
func (s *Schema) Validate(schemaType SchemaType, data map[string]any) error {
	schema, ok := s.schemas[schemaType]
	if !ok {
		return errors.New("schema not found")
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return err
	}

	if result.Valid() {
		return nil
	}

	reasons := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		reasons = append(reasons, desc.String())
	}

	return errors.New(strings.Join(reasons, "; "))
}
