package main

import (
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"

	"github.com/otakulab/media-sync/pkg/config"
	"github.com/otakulab/media-sync/pkg/dbutil"
	mghelper "github.com/otakulab/media-sync/pkg/dbutil/migrations"
	"github.com/otakulab/media-sync/pkg/migrations/mediadb"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	db, err := dbutil.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for media database (%s)...\n", cfg.Database.Path)

	migrator := migrate.NewMigrator(db, mediadb.Migrations)

	err = mghelper.RunMigrations(migrator, flag.Args()...)
	if err != nil {
		mghelper.Exitf(err.Error())
	}
}
