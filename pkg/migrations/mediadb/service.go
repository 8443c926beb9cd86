// Package mediadb holds all the migrations for the media metadata database
package mediadb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the registry every numbered migration file registers into
var Migrations = migrate.NewMigrations()
