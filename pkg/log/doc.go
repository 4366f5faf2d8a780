// Package log wraps zerolog behind a small global logger with per-component
// child loggers. Init is called once by the CLI after the configuration has
// been loaded; the LOG_LEVEL names DEBUG/INFO/WARNING/ERROR/CRITICAL map onto
// zerolog levels via ParseLevel.
package log
