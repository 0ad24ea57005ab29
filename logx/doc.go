// Package logx provides leveled logging with environment variable configuration.
//
// Environment Variables:
//   - LOG_LEVEL: Set the minimum log level (TRACE, DEBUG, INFO, WARN, ERROR, OFF)
//   - LOG_FORMAT: Set output format (console, json)
//   - LOG_COLOR: Enable/disable colored level labels (true/false, default: true)
//   - LOG_CALLER: Enable/disable caller information (true/false, default: true)
//
// Basic Usage:
//
//	logx.Info("registered %d handlers", n)
//	logx.Error("dispatch failed: %v", err)
//
// Instance loggers are safe for concurrent use and can be scoped with a prefix:
//
//	log := logx.GetLogger().Named("eventx")
//	log.Warn("scope %s has no storage", name)
//
// Diagnostics that must appear only once per key go through a Once:
//
//	var warned logx.Once
//	warned.Warn(log, kind, "leaking registries for %s", kind)
//
// Console output:
//
//	[2025-06-08 18:57:52] eventx [WARN] scope.go:88: scope kind *app.Plugin has no storage
//
// JSON output (LOG_FORMAT=json):
//
//	{"timestamp":"2025-06-08T18:57:52Z","level":"WARN","prefix":"eventx","message":"..."}
package logx
