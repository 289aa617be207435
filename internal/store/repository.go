// Package store persists drafts, collected materials and agent settings in
// the sqlite database opened by package db.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Repository interface {
	CreateDraft(ctx context.Context, d *Draft) error
	GetDraft(ctx context.Context, id string) (*Draft, error)
	ListDrafts(ctx context.Context) ([]*DraftSummary, error)
	DeleteDraft(ctx context.Context, id string) error
	PruneDrafts(ctx context.Context, keep int) (int, error)
	CountDrafts(ctx context.Context) (int, error)

	UpsertMaterial(ctx context.Context, m *Material) error
	GetMaterial(ctx context.Context, ref string) (*Material, error)
	ListMaterials(ctx context.Context, filter MaterialFilter) ([]*Material, error)
	DeleteMaterial(ctx context.Context, ref string) error
	UpdateMaterialTags(ctx context.Context, ref string, tags []string) error
	ListCategories(ctx context.Context) ([]string, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateDraft(ctx context.Context, d *Draft) error {
	doc, err := json.Marshal(d.Tracks)
	if err != nil {
		return fmt.Errorf("encode draft tracks: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO drafts (id, title, document, playhead, content_duration, clip_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.Title, string(doc), d.CurrentTime, d.ContentDuration, d.ClipCount, formatTime(d.CreatedAt))
	return err
}

func (r *SQLiteRepository) GetDraft(ctx context.Context, id string) (*Draft, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, document, playhead, content_duration, clip_count, created_at
		FROM drafts WHERE id = ?
	`, id)

	var d Draft
	var doc, createdAt string
	err := row.Scan(&d.ID, &d.Title, &doc, &d.CurrentTime, &d.ContentDuration, &d.ClipCount, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tracks timeline.Tracks
	if err := json.Unmarshal([]byte(doc), &tracks); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDraft, id, err)
	}
	d.Tracks = tracks
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}

// ListDrafts returns drafts newest first.
func (r *SQLiteRepository) ListDrafts(ctx context.Context) ([]*DraftSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, playhead, content_duration, clip_count, created_at
		FROM drafts ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []*DraftSummary
	for rows.Next() {
		var d DraftSummary
		var createdAt string
		if err := rows.Scan(&d.ID, &d.Title, &d.CurrentTime, &d.ContentDuration, &d.ClipCount, &createdAt); err != nil {
			return nil, err
		}
		d.CreatedAt = parseTime(createdAt)
		drafts = append(drafts, &d)
	}
	return drafts, rows.Err()
}

func (r *SQLiteRepository) DeleteDraft(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM drafts WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	return nil
}

// PruneDrafts deletes all but the newest keep drafts and reports how many
// were removed.
func (r *SQLiteRepository) PruneDrafts(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM drafts WHERE id NOT IN (
			SELECT id FROM drafts ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *SQLiteRepository) CountDrafts(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM drafts").Scan(&count)
	return count, err
}

// UpsertMaterial inserts m or replaces every field but added_at of the
// existing row with the same ref.
func (r *SQLiteRepository) UpsertMaterial(ctx context.Context, m *Material) error {
	tags, err := json.Marshal(NormalizeTags(m.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO materials (ref, title, owner, duration, category, tags, notes, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ref) DO UPDATE SET
			title = excluded.title,
			owner = excluded.owner,
			duration = excluded.duration,
			category = excluded.category,
			tags = excluded.tags,
			notes = excluded.notes
	`, m.Ref, m.Title, nullString(m.Owner), m.Duration, categoryOrDefault(m.Category), string(tags), nullString(m.Notes), formatTime(m.AddedAt))
	return err
}

func (r *SQLiteRepository) GetMaterial(ctx context.Context, ref string) (*Material, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT ref, title, owner, duration, category, tags, notes, added_at
		FROM materials WHERE ref = ?
	`, ref)
	m, err := scanMaterial(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row scanner) (*Material, error) {
	var m Material
	var owner, notes sql.NullString
	var tags, addedAt string
	if err := row.Scan(&m.Ref, &m.Title, &owner, &m.Duration, &m.Category, &tags, &notes, &addedAt); err != nil {
		return nil, err
	}
	m.Owner = owner.String
	m.Notes = notes.String
	m.AddedAt = parseTime(addedAt)
	if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil || m.Tags == nil {
		m.Tags = []string{}
	}
	return &m, nil
}

// ListMaterials filters by category and search in SQL; the tag filter is
// applied after decoding since tags are stored as a JSON array.
func (r *SQLiteRepository) ListMaterials(ctx context.Context, filter MaterialFilter) ([]*Material, error) {
	var where []string
	var args []any
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(COALESCE(owner, '')) LIKE ?)")
		like := "%" + strings.ToLower(q) + "%"
		args = append(args, like, like)
	}

	query := "SELECT ref, title, owner, duration, category, tags, notes, added_at FROM materials"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.Sort == SortOldest {
		query += " ORDER BY added_at ASC, rowid ASC"
	} else {
		query += " ORDER BY added_at DESC, rowid DESC"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var materials []*Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		if filter.Tag != "" && !m.HasTag(filter.Tag) {
			continue
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

func (r *SQLiteRepository) DeleteMaterial(ctx context.Context, ref string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM materials WHERE ref = ?", ref)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrMaterialNotFound, ref)
	}
	return nil
}

func (r *SQLiteRepository) UpdateMaterialTags(ctx context.Context, ref string, tags []string) error {
	encoded, err := json.Marshal(NormalizeTags(tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	res, err := r.db.ExecContext(ctx, "UPDATE materials SET tags = ? WHERE ref = ?", string(encoded), ref)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrMaterialNotFound, ref)
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT category FROM materials ORDER BY category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func categoryOrDefault(c string) string {
	if c = strings.TrimSpace(c); c == "" {
		return DefaultCategory
	}
	return c
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
