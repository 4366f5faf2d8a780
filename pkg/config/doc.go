// Package config loads the runtime configuration from YAML config files
// (/etc/monico/config.yaml, ~/.monico/config.yaml, ./.monico.yaml, in
// ascending precedence) and the POSTGRES_URI, SQLITE_URI and LOG_LEVEL
// environment variables, which override the files. At most one backend URI
// may be set; with neither, the embedded backend at ~/.monic/monico.db is
// used.
package config
