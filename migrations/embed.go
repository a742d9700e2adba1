// Package migrations embeds the SQL schema migrations so they ship
// inside the binary.
package migrations

import (
	"embed"

	"github.com/asterhall/alarmbridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
