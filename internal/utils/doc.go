// Package utils exposes reusable helpers consumed by the CLI and its commands.
//
// ConfigurationLoader layers embedded defaults, configuration files, and environment
// variables through Viper; LoggerFactory builds zap loggers; CommandContextAccessor
// carries per-invocation values through command contexts.
package utils
