package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

type PlayRecord struct {
	ID          int64
	GuildID     string
	Title       string
	SourceURL   string
	RequestedBy string
	PlayedAt    time.Time
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) AddPlay(ctx context.Context, record PlayRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO play_history (guild_id, title, source_url, requested_by, played_at)
		VALUES (?, ?, ?, ?, ?)
	`, record.GuildID, record.Title, record.SourceURL, record.RequestedBy, record.PlayedAt.Unix())
	return err
}

func (s *Store) ListRecentPlays(ctx context.Context, guildID string, limit int) ([]PlayRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, title, source_url, requested_by, played_at
		FROM play_history
		WHERE guild_id = ?
		ORDER BY played_at DESC, id DESC
		LIMIT ?
	`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []PlayRecord
	for rows.Next() {
		var record PlayRecord
		var played int64
		if err := rows.Scan(&record.ID, &record.GuildID, &record.Title, &record.SourceURL, &record.RequestedBy, &played); err != nil {
			return nil, err
		}
		record.PlayedAt = time.Unix(played, 0)
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) CleanupPlays(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := s.db.ExecContext(ctx, `DELETE FROM play_history WHERE played_at < ?`, cutoff.Unix())
	return err
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
