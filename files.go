package identity

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the SQL migrations that create the identity schema.
// Callers feed these to their migration runner of choice.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
