package main

import (
	"context"
	"log"
	"os"
	"time"

	"meetmax/internal/database"
	"meetmax/internal/logging"
)

func main() {
	log.SetFlags(logging.Flags)

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	source := "embedded migrations"
	migrations := database.Migrations()
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		source = dir
		migrations = os.DirFS(dir)
	}

	files, err := database.ListMigrationFiles(migrations)
	if err != nil {
		log.Fatalf("read migrations from %s: %v", source, err)
	}
	if len(files) == 0 {
		log.Fatalf("no migrations found in %s", source)
	}

	db, err := database.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := database.ApplyMigrations(ctx, db, migrations); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	log.Printf("%d migrations applied successfully from %s", len(files), source)
}

