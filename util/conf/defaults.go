package conf

// DefaultConfig is a flat map of default configuration values, keyed by
// the koanf path of each setting.
type DefaultConfig = map[string]any
