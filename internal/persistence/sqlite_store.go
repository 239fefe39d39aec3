// Package persistence implements the SQLite-backed store for content
// items, their per-language translations and background task state.
package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MimeLyc/polyglot-cms/internal/content"
	"github.com/MimeLyc/polyglot-cms/internal/jobs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		sqlText, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(sqlText)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) CreateContentItem(ctx context.Context, item *content.ContentItem) error {
	if item == nil {
		return fmt.Errorf("content item is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO content_items (id, kind, slug, status, need_ai_generate, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		string(item.Kind),
		item.Slug,
		item.Status,
		boolToInt(item.NeedAIGenerate),
		item.CreatedAt,
		item.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) UpdateContentItem(ctx context.Context, item *content.ContentItem) error {
	if item == nil {
		return fmt.Errorf("content item is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE content_items
		 SET slug = ?, status = ?, need_ai_generate = ?, updated_at = ?
		 WHERE id = ?`,
		item.Slug,
		item.Status,
		boolToInt(item.NeedAIGenerate),
		item.UpdatedAt,
		item.ID,
	)
	return err
}

func (s *SQLiteStore) GetContentItem(ctx context.Context, id string) (content.ContentItem, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, kind, slug, status, need_ai_generate, created_at, updated_at
		 FROM content_items WHERE id = ?`,
		id,
	)
	item, err := scanContentItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return content.ContentItem{}, false, nil
		}
		return content.ContentItem{}, false, err
	}
	return item, true, nil
}

func (s *SQLiteStore) ListContentItems(ctx context.Context) ([]content.ContentItem, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, kind, slug, status, need_ai_generate, created_at, updated_at
		 FROM content_items ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]content.ContentItem, 0)
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}

// ListIncompleteItems returns items flagged for auto-generation that do not
// yet have a titled translation in every supported language. Feeds the
// backfill sweep.
func (s *SQLiteStore) ListIncompleteItems(ctx context.Context) ([]content.ContentItem, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT i.id, i.kind, i.slug, i.status, i.need_ai_generate, i.created_at, i.updated_at
		 FROM content_items i
		 WHERE i.need_ai_generate = 1
		   AND (SELECT COUNT(*) FROM translations t
		        WHERE t.item_id = i.id AND TRIM(t.title) != '') < ?
		 ORDER BY i.created_at ASC`,
		len(content.Languages),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]content.ContentItem, 0)
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContentItem(row rowScanner) (content.ContentItem, error) {
	var item content.ContentItem
	var kind string
	var needAI int
	if err := row.Scan(&item.ID, &kind, &item.Slug, &item.Status, &needAI, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return content.ContentItem{}, err
	}
	item.Kind = content.Kind(kind)
	item.NeedAIGenerate = needAI == 1
	return item, nil
}

// UpsertTranslation inserts or fully replaces the translatable fields of a
// translation. The unique (item_id, language) pair resolves conflicts via
// replacement, never an error.
func (s *SQLiteStore) UpsertTranslation(ctx context.Context, tr *content.Translation) error {
	if tr == nil {
		return fmt.Errorf("translation is nil")
	}
	whatIDid, err := json.Marshal(tr.WhatIDid)
	if err != nil {
		return fmt.Errorf("marshal what_i_did: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO translations (
			item_id, language, title, description, content, summary, what_i_did_json, is_ai_generated, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id, language) DO UPDATE SET
			title=excluded.title,
			description=excluded.description,
			content=excluded.content,
			summary=excluded.summary,
			what_i_did_json=excluded.what_i_did_json,
			is_ai_generated=excluded.is_ai_generated,
			updated_at=excluded.updated_at`,
		tr.ItemID,
		string(tr.Language),
		tr.Title,
		tr.Description,
		tr.Content,
		tr.Summary,
		string(whatIDid),
		boolToInt(tr.IsAIGenerated),
		tr.CreatedAt,
		tr.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) GetTranslation(ctx context.Context, itemID string, lang content.Language) (content.Translation, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT item_id, language, title, description, content, summary, what_i_did_json, is_ai_generated, created_at, updated_at
		 FROM translations WHERE item_id = ? AND language = ?`,
		itemID,
		string(lang),
	)
	tr, err := scanTranslation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return content.Translation{}, false, nil
		}
		return content.Translation{}, false, err
	}
	return tr, true, nil
}

func (s *SQLiteStore) ListTranslations(ctx context.Context, itemID string) ([]content.Translation, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT item_id, language, title, description, content, summary, what_i_did_json, is_ai_generated, created_at, updated_at
		 FROM translations WHERE item_id = ? ORDER BY language ASC`,
		itemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]content.Translation, 0)
	for rows.Next() {
		tr, err := scanTranslation(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, tr)
	}
	return ret, rows.Err()
}

// LanguagesWithTitle returns the languages in which the item already has a
// translation with a non-empty title.
func (s *SQLiteStore) LanguagesWithTitle(ctx context.Context, itemID string) ([]content.Language, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT language FROM translations
		 WHERE item_id = ? AND TRIM(title) != ''
		 ORDER BY language ASC`,
		itemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]content.Language, 0)
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, err
		}
		ret = append(ret, content.Language(lang))
	}
	return ret, rows.Err()
}

func scanTranslation(row rowScanner) (content.Translation, error) {
	var tr content.Translation
	var lang string
	var whatIDidJSON string
	var isAI int
	if err := row.Scan(
		&tr.ItemID,
		&lang,
		&tr.Title,
		&tr.Description,
		&tr.Content,
		&tr.Summary,
		&whatIDidJSON,
		&isAI,
		&tr.CreatedAt,
		&tr.UpdatedAt,
	); err != nil {
		return content.Translation{}, err
	}
	tr.Language = content.Language(lang)
	tr.IsAIGenerated = isAI == 1
	if whatIDidJSON != "" {
		if err := json.Unmarshal([]byte(whatIDidJSON), &tr.WhatIDid); err != nil {
			return content.Translation{}, fmt.Errorf("unmarshal what_i_did: %w", err)
		}
	}
	return tr, nil
}

func (s *SQLiteStore) LoadTasks(ctx context.Context) ([]*jobs.Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, origin, dedupe_key, payload_json, status, error, created_at, updated_at
		 FROM tasks
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.Task, 0)
	for rows.Next() {
		var task jobs.Task
		var status string
		var payloadJSON string
		if err := rows.Scan(
			&task.ID,
			&task.Origin,
			&task.DedupeKey,
			&payloadJSON,
			&status,
			&task.Error,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadJSON), &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal task payload: %w", err)
		}
		task.Status = jobs.Status(status)
		ret = append(ret, &task)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) UpsertTask(ctx context.Context, task *jobs.Task) error {
	if task == nil {
		return fmt.Errorf("task is nil")
	}
	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO tasks (id, origin, dedupe_key, payload_json, status, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			origin=excluded.origin,
			dedupe_key=excluded.dedupe_key,
			payload_json=excluded.payload_json,
			status=excluded.status,
			error=excluded.error,
			updated_at=excluded.updated_at`,
		task.ID,
		task.Origin,
		task.DedupeKey,
		string(payload),
		string(task.Status),
		task.Error,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID)
	return err
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
