package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/chromenv/internal/models"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000Z"

const environmentColumns = `
	id, name, group_name, notes, wallet_address, data_dir, tags,
	proxy, proxy_label, user_agent, created_at, last_used, deleted_at`

// SQLiteEnvironmentRepository implements EnvironmentRepository for SQLite.
type SQLiteEnvironmentRepository struct {
	db *sql.DB
}

// NewSQLiteEnvironmentRepository creates a new SQLite environment repository.
func NewSQLiteEnvironmentRepository(db *sql.DB) *SQLiteEnvironmentRepository {
	return &SQLiteEnvironmentRepository{db: db}
}

// Create inserts a new environment. ID and timestamps are filled in when unset.
func (r *SQLiteEnvironmentRepository) Create(ctx context.Context, env *models.Environment) error {
	if env.ID == "" {
		env.ID = ulid.Make().String()
	}
	now := time.Now().UTC()
	if env.CreatedAt.IsZero() {
		env.CreatedAt = now
	}
	if env.LastUsed.IsZero() {
		env.LastUsed = env.CreatedAt
	}
	if env.Tags == nil {
		env.Tags = []string{}
	}

	tagsJSON, err := json.Marshal(env.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO environments (
			id, name, group_name, notes, wallet_address, data_dir, tags,
			proxy, proxy_label, user_agent, created_at, last_used, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		env.ID,
		env.Name,
		env.GroupName,
		env.Notes,
		nullString(env.WalletAddress),
		env.DataDir,
		string(tagsJSON),
		nullString(env.Proxy),
		nullString(env.ProxyLabel),
		nullString(env.UserAgent),
		formatTime(env.CreatedAt),
		formatTime(env.LastUsed),
		nullTime(env.DeletedAt),
	)
	return err
}

// GetByID returns the environment regardless of its trash state.
func (r *SQLiteEnvironmentRepository) GetByID(ctx context.Context, id string) (*models.Environment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+environmentColumns+` FROM environments WHERE id = ?`, id)
	return scanEnvironment(row)
}

// GetActive returns the environment only if it is not soft-deleted.
func (r *SQLiteEnvironmentRepository) GetActive(ctx context.Context, id string) (*models.Environment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+environmentColumns+` FROM environments
		WHERE id = ? AND deleted_at IS NULL
	`, id)
	return scanEnvironment(row)
}

// GetDeleted returns the environment only if it is soft-deleted.
func (r *SQLiteEnvironmentRepository) GetDeleted(ctx context.Context, id string) (*models.Environment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+environmentColumns+` FROM environments
		WHERE id = ? AND deleted_at IS NOT NULL
	`, id)
	return scanEnvironment(row)
}

// ListActive returns environments not in the trash, most recently used first.
func (r *SQLiteEnvironmentRepository) ListActive(ctx context.Context) ([]*models.Environment, error) {
	return r.query(ctx, `
		SELECT `+environmentColumns+` FROM environments
		WHERE deleted_at IS NULL
		ORDER BY last_used DESC, id
	`)
}

// ListDeleted returns trashed environments, most recently deleted first.
func (r *SQLiteEnvironmentRepository) ListDeleted(ctx context.Context) ([]*models.Environment, error) {
	return r.query(ctx, `
		SELECT `+environmentColumns+` FROM environments
		WHERE deleted_at IS NOT NULL
		ORDER BY deleted_at DESC, id
	`)
}

// ListDeletedBefore returns trashed environments deleted strictly before cutoff.
func (r *SQLiteEnvironmentRepository) ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]*models.Environment, error) {
	return r.query(ctx, `
		SELECT `+environmentColumns+` FROM environments
		WHERE deleted_at IS NOT NULL AND deleted_at < ?
		ORDER BY deleted_at, id
	`, formatTime(cutoff))
}

// Update writes the replaceable fields. id, data_dir and created_at are never written.
func (r *SQLiteEnvironmentRepository) Update(ctx context.Context, env *models.Environment) error {
	tagsJSON, err := json.Marshal(models.NormalizeTags(env.Tags))
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE environments SET
			name = ?,
			group_name = ?,
			notes = ?,
			wallet_address = ?,
			tags = ?,
			proxy = ?,
			proxy_label = ?,
			user_agent = ?
		WHERE id = ?
	`,
		env.Name,
		env.GroupName,
		env.Notes,
		nullString(env.WalletAddress),
		string(tagsJSON),
		nullString(env.Proxy),
		nullString(env.ProxyLabel),
		nullString(env.UserAgent),
		env.ID,
	)
	return err
}

// TouchLastUsed stamps last_used.
func (r *SQLiteEnvironmentRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE environments SET last_used = ? WHERE id = ?`, formatTime(at), id)
	return err
}

// SoftDelete moves an active environment to the trash.
func (r *SQLiteEnvironmentRepository) SoftDelete(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.execAffected(ctx, `
		UPDATE environments SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, formatTime(at), id)
}

// Restore takes an environment out of the trash.
func (r *SQLiteEnvironmentRepository) Restore(ctx context.Context, id string) (bool, error) {
	return r.execAffected(ctx, `
		UPDATE environments SET deleted_at = NULL
		WHERE id = ? AND deleted_at IS NOT NULL
	`, id)
}

// HardDelete removes a trashed environment's record.
func (r *SQLiteEnvironmentRepository) HardDelete(ctx context.Context, id string) (bool, error) {
	return r.execAffected(ctx, `DELETE FROM environments WHERE id = ? AND deleted_at IS NOT NULL`, id)
}

// ActiveGroups returns the distinct group names referenced by active environments.
func (r *SQLiteEnvironmentRepository) ActiveGroups(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT group_name FROM environments
		WHERE deleted_at IS NULL
		ORDER BY group_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// CountActiveInGroup counts active environments referencing group.
func (r *SQLiteEnvironmentRepository) CountActiveInGroup(ctx context.Context, group string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM environments
		WHERE group_name = ? AND deleted_at IS NULL
	`, group).Scan(&n)
	return n, err
}

func (r *SQLiteEnvironmentRepository) query(ctx context.Context, q string, args ...any) ([]*models.Environment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	envs := []*models.Environment{}
	for rows.Next() {
		env, err := scanEnvironment(rows)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return envs, rows.Err()
}

func (r *SQLiteEnvironmentRepository) execAffected(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEnvironment(s scanner) (*models.Environment, error) {
	var env models.Environment
	var wallet, proxy, proxyLabel, userAgent, deletedAt sql.NullString
	var tagsJSON, createdAt, lastUsed string

	err := s.Scan(
		&env.ID,
		&env.Name,
		&env.GroupName,
		&env.Notes,
		&wallet,
		&env.DataDir,
		&tagsJSON,
		&proxy,
		&proxyLabel,
		&userAgent,
		&createdAt,
		&lastUsed,
		&deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	env.WalletAddress = wallet.String
	env.Proxy = proxy.String
	env.ProxyLabel = proxyLabel.String
	env.UserAgent = userAgent.String

	if err := json.Unmarshal([]byte(tagsJSON), &env.Tags); err != nil || env.Tags == nil {
		env.Tags = []string{}
	}

	env.CreatedAt = parseTime(createdAt)
	env.LastUsed = parseTime(lastUsed)
	if deletedAt.Valid {
		t := parseTime(deletedAt.String)
		env.DeletedAt = &t
	}

	return &env, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime also accepts plain RFC3339 written by older builds.
func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t.UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
