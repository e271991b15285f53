package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"inkwell/internal/config"
	"inkwell/internal/repository/postgres"
	storySvc "inkwell/internal/service/story"
)

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed demo content")
	userID := flag.String("user", "", "User id to own the demo story (defaults to DEV_USER_ID)")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("🚫 BLOCKED: Cannot run --drop-tables in production environment")
	}

	owner := *userID
	if owner == "" {
		owner = cfg.DevUserID
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if *schemaOnly {
		log.Printf("🏗️  Setting up schema only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	} else {
		log.Printf("🌱 Seeding database (environment: %s, prefix: %s, user: %s)", cfg.Environment, cfg.TablePrefix, owner)
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped")
	}

	log.Println("📋 Ensuring database schema is up to date...")
	if err := runSchema(ctx, pool, tables, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	// Seed through the services so word counts, positions, and the
	// seeded first book and chapter behave exactly as they do in the
	// running server.
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	stories := storySvc.NewService(
		postgres.NewStoryRepository(repoConfig),
		postgres.NewBookRepository(repoConfig),
		postgres.NewChapterRepository(repoConfig),
		postgres.NewSourcebookRepository(repoConfig),
		postgres.NewTransactionManager(pool, logger),
		logger,
	)

	if err := seedDemoStory(ctx, stories, owner); err != nil {
		log.Fatalf("Failed to seed demo story: %v", err)
	}

	log.Println("🎉 Seeding complete!")
}

// seedDemoStory creates a small story with a few chapters and
// sourcebook entries so the writing surfaces have content on first run.
func seedDemoStory(ctx context.Context, stories *storySvc.Service, userID string) error {
	story, err := stories.CreateStory(ctx, &storySvc.CreateStoryRequest{
		UserID:   userID,
		Title:    "The Cartographer's Daughter",
		Synopsis: "A mapmaker's apprentice discovers the coastlines she draws start appearing in the world.",
	})
	if err != nil {
		return err
	}
	log.Printf("✅ Created story %q (ID: %s)", story.Title, story.ID)

	books, err := stories.ListBooks(ctx, story.ID, userID)
	if err != nil {
		return err
	}
	firstBook := books[0]

	chapters, err := stories.ListChapters(ctx, firstBook.ID, userID)
	if err != nil {
		return err
	}
	opening := "Mara had drawn the same cove three times before she noticed " +
		"the third version had a lighthouse the first two lacked. She had not " +
		"added it. The ink was dry, the line steady, unmistakably her own hand."
	if _, err := stories.UpdateChapterContent(ctx, chapters[0].ID, userID, opening); err != nil {
		return err
	}
	log.Printf("✅ Wrote opening chapter (ID: %s)", chapters[0].ID)

	second, err := stories.CreateChapter(ctx, &storySvc.CreateChapterRequest{
		BookID: firstBook.ID,
		UserID: userID,
		Title:  "The Lighthouse That Was Not There",
	})
	if err != nil {
		return err
	}
	log.Printf("✅ Created chapter %q (ID: %s)", second.Title, second.ID)

	entries := []storySvc.CreateEntryRequest{
		{StoryID: story.ID, UserID: userID, Name: "Mara Voss", Kind: "character",
			Description: "Apprentice cartographer, nineteen, left-handed. Notices what others redraw."},
		{StoryID: story.ID, UserID: userID, Name: "The Guild of Surveys", Kind: "faction",
			Description: "Licenses every map in the port cities. Keeps a vault of withdrawn charts."},
		{StoryID: story.ID, UserID: userID, Name: "Greywater Cove", Kind: "place",
			Description: "The cove that grew a lighthouse between the second and third drafts."},
	}
	for _, e := range entries {
		entry, err := stories.CreateEntry(ctx, &e)
		if err != nil {
			return err
		}
		log.Printf("✅ Created sourcebook entry %q (%s)", entry.Name, entry.Kind)
	}

	return nil
}

// runSchema creates tables if they don't exist
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, tablePrefix string) error {
	// Enable UUID extension
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`); err != nil {
		return err
	}

	createStories := `
		CREATE TABLE IF NOT EXISTS ` + tables.Stories + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			synopsis TEXT NOT NULL DEFAULT '',
			system_prompt TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)
	`
	if _, err := pool.Exec(ctx, createStories); err != nil {
		return err
	}

	createBooks := `
		CREATE TABLE IF NOT EXISTS ` + tables.Books + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			story_id UUID NOT NULL REFERENCES ` + tables.Stories + `(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			position INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createBooks); err != nil {
		return err
	}

	createChapters := `
		CREATE TABLE IF NOT EXISTS ` + tables.Chapters + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			book_id UUID NOT NULL REFERENCES ` + tables.Books + `(id) ON DELETE CASCADE,
			story_id UUID NOT NULL REFERENCES ` + tables.Stories + `(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL,
			word_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createChapters); err != nil {
		return err
	}

	createSourcebook := `
		CREATE TABLE IF NOT EXISTS ` + tables.Sourcebook + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			story_id UUID NOT NULL REFERENCES ` + tables.Stories + `(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(story_id, name)
		)
	`
	if _, err := pool.Exec(ctx, createSourcebook); err != nil {
		return err
	}

	createSessions := `
		CREATE TABLE IF NOT EXISTS ` + tables.Sessions + ` (
			id UUID PRIMARY KEY,
			story_id UUID NOT NULL REFERENCES ` + tables.Stories + `(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			messages JSONB NOT NULL DEFAULT '[]',
			system_prompt TEXT NOT NULL DEFAULT '',
			allow_web_search BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createSessions); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `stories_user ON ` + tables.Stories + `(user_id) WHERE deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `books_story ON ` + tables.Books + `(story_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `chapters_book ON ` + tables.Chapters + `(book_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `chapters_story ON ` + tables.Chapters + `(story_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `sourcebook_story ON ` + tables.Sourcebook + `(story_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `sessions_story ON ` + tables.Sessions + `(story_id, updated_at DESC)`,
	}
	for _, indexSQL := range indexes {
		if _, err := pool.Exec(ctx, indexSQL); err != nil {
			return err
		}
	}

	return nil
}

// dropAllTables drops all tables in reverse order (to respect foreign keys)
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	tableNames := []string{
		tables.Sessions,
		tables.Sourcebook,
		tables.Chapters,
		tables.Books,
		tables.Stories,
	}

	for _, table := range tableNames {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return err
		}
		log.Printf("  ✓ Dropped %s", table)
	}

	return nil
}
