// Package jellycord embeds assets for the jellycord daemon.
//
// The root package exists to embed config.default.toml, which the daemon
// writes to the data directory on first run.
package jellycord

import _ "embed"

// DefaultConfigTOML holds config.default.toml, embedded at build time.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
