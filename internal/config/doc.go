// Package config loads kleis settings.
//
// # Configuration Discovery
//
// Load resolves settings in this order, later sources winning:
//
//  1. Built-in defaults (see Default)
//  2. The TOML file at the given path, or ~/.config/kleis/config.toml
//  3. A .env file in the working directory, if present
//  4. KLEIS_* environment variables
//
// A missing config file is not an error. Empty or blank fields in the file
// keep their defaults. Tilde expansion is performed on directory and file
// paths.
//
// # TOML Format
//
//	catalog_url = "127.0.0.1:4321"
//	poll_seconds = 30
//
//	[storage]
//	backend = "file"          # file, redis or memory
//	dir = "~/.local/share/kleis"
//	key = "kleisCart"
//	max_bytes = 5242880
//	watch_ms = 500
//	timeout_ms = 3000
//
//	[redis]
//	addr = "127.0.0.1:6379"
//	password = ""
//	db = 0
//	channel = "kleis:changes"
//
//	[log]
//	level = "info"            # trace, debug, info, warn, error
//	format = "text"           # text or json
//	file = "~/.local/state/kleis/kleis.log"
//
// # Environment
//
// KLEIS_CATALOG_URL, KLEIS_POLL_SECONDS, KLEIS_STORAGE_BACKEND,
// KLEIS_STORAGE_DIR, KLEIS_REDIS_ADDR, KLEIS_REDIS_PASSWORD, KLEIS_REDIS_DB,
// KLEIS_LOG_LEVEL, KLEIS_LOG_FORMAT and KLEIS_LOG_FILE override the file.
// Setting KLEIS_LOG_FILE to an empty string sends logs to stderr.
//
// # Error Handling
//
// Load returns errors for unreadable files, TOML parse failures ("parse
// config: ...") and settings rejected by Validate.
package config
