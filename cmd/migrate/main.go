// Command migrate applies the endorsement pipeline's embedded schema
// migrations against the configured Postgres database and exits, for use
// outside emsd's own migrate-on-start path (CI, one-off deploys).
package main

import (
	"context"
	"log"

	"github.com/pmundhra/plum-ems/internal/config"
	"github.com/pmundhra/plum-ems/internal/store"
	"github.com/pmundhra/plum-ems/internal/store/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := store.Open(context.Background(), cfg.Database)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer db.Close()

	if err := migrations.Apply(db); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}
	log.Println("migrations applied")
}
