package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"portfolio-api/internal/repository"
	"portfolio-api/pkg/database"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	// Get command
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run main.go [drop|up|prune <days>]")
		os.Exit(1)
	}

	command := os.Args[1]

	// Connect to database
	ctx := context.Background()
	db, err := database.NewPostgresDB(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch command {
	case "drop":
		if err := dropTables(ctx, db); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "up":
		if err := createTables(ctx, db); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "prune":
		days := 90
		if len(os.Args) > 2 {
			if parsed, err := strconv.Atoi(os.Args[2]); err == nil && parsed > 0 {
				days = parsed
			}
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		removed, err := repository.NewConversationRepository(db).DeleteOlderThan(ctx, cutoff)
		if err != nil {
			log.Fatalf("Failed to prune archives: %v", err)
		}
		fmt.Printf("✅ Pruned %d archived conversations older than %d days\n", removed, days)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Usage: go run main.go [drop|up|prune <days>]")
		os.Exit(1)
	}
}

func dropTables(ctx context.Context, db *database.PostgresDB) error {
	queries := []string{
		`DROP TABLE IF EXISTS conversation_archives CASCADE`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		fmt.Printf("  Dropped: %s\n", query)
	}

	return nil
}

func createTables(ctx context.Context, db *database.PostgresDB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS conversation_archives (
			id BIGSERIAL PRIMARY KEY,
			session_id VARCHAR(64) UNIQUE NOT NULL,
			user_name VARCHAR(255),
			user_email VARCHAR(255),
			user_linkedin VARCHAR(512),
			message_count INTEGER NOT NULL DEFAULT 0,
			transcript JSONB NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_conversation_archives_ended_at ON conversation_archives(ended_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_archives_user_email ON conversation_archives(user_email)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w\nQuery: %s", err, query)
		}
		fmt.Printf("  Created: %s\n", truncateQuery(query))
	}

	return nil
}

func truncateQuery(query string) string {
	if len(query) > 50 {
		return query[:50] + "..."
	}
	return query
}
