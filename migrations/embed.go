// Package migrations embeds the versioned schema for each supported driver.
package migrations

import "embed"

// FS holds one directory of golang-migrate files per database driver.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
