// Package configx loads layered configuration from environment variables,
// .env files and in-memory maps.
//
// Sources are merged by priority; higher priorities override lower ones and
// nested maps are merged key by key:
//
//	cfg, err := configx.New(
//		configx.WithDefaults(map[string]any{"default": map[string]any{"priority": 1000}}),
//		configx.WithEnv("EVENTX_"),
//		configx.WithDotEnv(".env"),
//	)
//
//	priority := cfg.Get("default.priority").AsIntDefault(1000)
//
// Environment keys lose their prefix, are lowercased and split on
// underscores: EVENTX_IGNORE_LEAKS=true is read as "ignore.leaks".
package configx
