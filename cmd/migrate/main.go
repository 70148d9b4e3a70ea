package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/seanankenbruck/twin-query/internal/audit"
	"github.com/seanankenbruck/twin-query/internal/config"
)

func main() {
	down := flag.Bool("down", false, "roll back the most recent migration")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg, err := config.NewDefaultLoader().Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	db := cfg.Audit

	fmt.Println("=== Running Audit Database Migrations ===")
	fmt.Printf("Connecting to database: %s@%s:%s/%s\n", db.Username, db.Host, db.Port, db.Database)

	store, err := audit.Open(ctx, db)
	if err != nil {
		log.Fatalf("Database connectivity failed: %v", err)
	}
	defer store.Close()

	if err := audit.CheckDatabase(ctx, store.DB(), db.Database); err != nil {
		log.Fatalf("Database check failed: %v", err)
	}
	fmt.Println("✓ Database connectivity verified")

	if *down {
		if err := audit.Rollback(store.DB()); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		fmt.Println("✓ Rolled back one migration")
	} else {
		if err := audit.Migrate(store.DB()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("✓ Database migrations completed successfully!")
	}

	version, dirty, err := audit.Version(store.DB())
	if err != nil {
		log.Fatalf("Failed to read schema version: %v", err)
	}
	fmt.Printf("Schema version: %d (dirty: %t)\n", version, dirty)
}
