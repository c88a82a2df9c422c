package gateway

import (
	"fmt"
	"regexp"
	"strings"
)

// invokeAction is the IAM action an authorizer policy must allow for the
// gateway to invoke the target function.
const invokeAction = "execute-api:Invoke"

// Placeholder identifiers used when running purely locally.
const (
	arnRegion    = "us-east-1"
	arnAccountID = "123456789012"
	arnAPIID     = "1234567890"
)

// MethodARN builds the synthetic ARN identifying the invoked method, of
// the shape arn:aws:execute-api:region:account:apiId/stage/METHOD/path.
func MethodARN(method, path, stage string) string {
	if stage == "" {
		stage = "prod"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("arn:aws:execute-api:%s:%s:%s/%s/%s%s",
		arnRegion, arnAccountID, arnAPIID, stage, strings.ToUpper(method), path)
}

// policyStatement is one entry of an IAM policy document, after shape
// validation. Action and Resource accept a bare string or a list.
type policyStatement struct {
	Actions   []string
	Effect    string
	Resources []string
}

// evaluatePolicy decides whether a validated IAM-policy-mode authorizer
// response grants access to methodARN. Access is granted iff at least
// one statement allows the invoke action on a resource matching the ARN.
// Deny statements are implicit: no matching Allow means denied.
func evaluatePolicy(document map[string]any, methodARN string) bool {
	statements, _ := document["Statement"].([]any)

	for _, raw := range statements {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		statement := policyStatement{
			Actions:   stringOrList(entry["Action"]),
			Resources: stringOrList(entry["Resource"]),
		}
		statement.Effect, _ = entry["Effect"].(string)

		if statement.Effect != "Allow" {
			continue
		}
		if !contains(statement.Actions, invokeAction) {
			continue
		}

		for _, resource := range statement.Resources {
			if resourceMatches(resource, methodARN) {
				return true
			}
		}
	}

	return false
}

// resourceMatches reports whether a policy resource ARN, which may
// contain * and ? wildcards, fully matches the method ARN.
func resourceMatches(resource, methodARN string) bool {
	pattern := strings.ReplaceAll(resource, "*", ".+")
	pattern = strings.ReplaceAll(pattern, "?", ".")

	matcher, err := regexp.Compile("^" + pattern + "$")
	if err != nil {
		return false
	}

	return matcher.MatchString(methodARN)
}

func stringOrList(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
