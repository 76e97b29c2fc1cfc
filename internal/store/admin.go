package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/kuldevta/estate-api/types"
)

// LegacyAdmin is a raw admin document imported from the previous deployment,
// kept loosely typed because historical records used several field-name
// variants.
type LegacyAdmin struct {
	ID  int
	Doc map[string]any
}

// AdminRepository handles persistence for admin accounts.
type AdminRepository struct {
	db *sql.DB
}

func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

const adminColumns = `id, email, name, role, password_hash, active, last_login_at, created_at, updated_at`

func scanAdmin(row *sql.Row) (types.Admin, error) {
	var admin types.Admin
	err := row.Scan(
		&admin.ID,
		&admin.Email,
		&admin.Name,
		&admin.Role,
		&admin.PasswordHash,
		&admin.Active,
		&admin.LastLoginAt,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Admin{}, ErrNotFound
		}
		return types.Admin{}, err
	}
	return admin, nil
}

func (r *AdminRepository) GetByID(ctx context.Context, id string) (types.Admin, error) {
	const query = `
		SELECT ` + adminColumns + `
		FROM admins
		WHERE id = $1`
	return scanAdmin(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail looks up an account by its normalized email.
func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (types.Admin, error) {
	const query = `
		SELECT ` + adminColumns + `
		FROM admins
		WHERE email = $1`
	return scanAdmin(r.db.QueryRowContext(ctx, query, email))
}

// ExistsAny reports whether any admin account exists at all. The login error
// shaping depends on this being distinct from a per-email lookup.
func (r *AdminRepository) ExistsAny(ctx context.Context) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM admins)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *AdminRepository) Create(ctx context.Context, admin types.Admin) (types.Admin, error) {
	now := time.Now()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	const query = `
		INSERT INTO admins (id, email, name, role, password_hash, active, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		admin.ID,
		admin.Email,
		admin.Name,
		admin.Role,
		admin.PasswordHash,
		admin.Active,
		admin.LastLoginAt,
		admin.CreatedAt,
		admin.UpdatedAt,
	)
	if err != nil {
		return types.Admin{}, err
	}
	return admin, nil
}

func (r *AdminRepository) Update(ctx context.Context, admin types.Admin) (types.Admin, error) {
	admin.UpdatedAt = time.Now()

	const query = `
		UPDATE admins
		SET email = $1,
			name = $2,
			role = $3,
			password_hash = $4,
			active = $5,
			last_login_at = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		admin.Email,
		admin.Name,
		admin.Role,
		admin.PasswordHash,
		admin.Active,
		admin.LastLoginAt,
		admin.UpdatedAt,
		admin.ID,
	)
	if err != nil {
		return types.Admin{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Admin{}, err
	}
	if affected == 0 {
		return types.Admin{}, ErrNotFound
	}
	return admin, nil
}

// GetLegacyByEmail scans the legacy import table for a document whose email,
// under any of the historical field names, matches the normalized email.
func (r *AdminRepository) GetLegacyByEmail(ctx context.Context, email string) (LegacyAdmin, error) {
	const query = `
		SELECT id, doc
		FROM legacy_admins
		WHERE LOWER(TRIM(COALESCE(doc->>'email', doc->>'emailAddress', doc->>'username', ''))) = $1
		ORDER BY id
		LIMIT 1`
	var legacy LegacyAdmin
	var raw []byte
	err := r.db.QueryRowContext(ctx, query, email).Scan(&legacy.ID, &raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LegacyAdmin{}, ErrNotFound
		}
		return LegacyAdmin{}, err
	}
	if err := json.Unmarshal(raw, &legacy.Doc); err != nil {
		return LegacyAdmin{}, err
	}
	return legacy, nil
}

// PromoteLegacy atomically replaces a legacy document with a normalized admin
// row. The delete is conditional on the legacy row id, so of two requests
// racing to migrate the same document exactly one performs the promotion; the
// other converges on the winner's row.
func (r *AdminRepository) PromoteLegacy(ctx context.Context, legacyID int, admin types.Admin) (types.Admin, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Admin{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `DELETE FROM legacy_admins WHERE id = $1`, legacyID)
	if err != nil {
		return types.Admin{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Admin{}, err
	}
	if affected == 0 {
		// Lost the migration race; the winner's row is authoritative.
		return r.GetByEmail(ctx, admin.Email)
	}

	now := time.Now()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	const query = `
		INSERT INTO admins (id, email, name, role, password_hash, active, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (email) DO NOTHING`
	_, err = tx.ExecContext(
		ctx,
		query,
		admin.ID,
		admin.Email,
		admin.Name,
		admin.Role,
		admin.PasswordHash,
		admin.Active,
		admin.LastLoginAt,
		admin.CreatedAt,
		admin.UpdatedAt,
	)
	if err != nil {
		return types.Admin{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Admin{}, err
	}

	return r.GetByEmail(ctx, admin.Email)
}
