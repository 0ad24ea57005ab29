package eventx

import "github.com/Abraxas-365/eventcraft/configx"

// DefaultPriority is the priority of handlers that do not declare one.
const DefaultPriority = 1000

// EnvPrefix is the prefix of the environment variables read by LoadConfig.
const EnvPrefix = "EVENTX_"

// Config tunes a Runtime.
type Config struct {
	// IgnoreLeaks silences the warning logged for scopes without storage.
	IgnoreLeaks bool

	// SkipInvalid makes discovery skip methods that cannot be bound
	// instead of failing the whole registration.
	SkipInvalid bool

	// DefaultPriority applies to handlers registered without a priority.
	DefaultPriority int
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{DefaultPriority: DefaultPriority}
}

// ConfigFrom reads ignore.leaks, skip.invalid and default.priority from cfg.
func ConfigFrom(cfg configx.Config) Config {
	def := DefaultConfig()
	return Config{
		IgnoreLeaks:     cfg.Get("ignore.leaks").AsBoolDefault(def.IgnoreLeaks),
		SkipInvalid:     cfg.Get("skip.invalid").AsBoolDefault(def.SkipInvalid),
		DefaultPriority: cfg.Get("default.priority").AsIntDefault(def.DefaultPriority),
	}
}

// LoadConfig builds a Config from EVENTX_ environment variables, e.g.
// EVENTX_IGNORE_LEAKS=true or EVENTX_DEFAULT_PRIORITY=500.
func LoadConfig() (Config, error) {
	cfg, err := configx.New(configx.WithEnv(EnvPrefix))
	if err != nil {
		return Config{}, err
	}
	return ConfigFrom(cfg), nil
}
