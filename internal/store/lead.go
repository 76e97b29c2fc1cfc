package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kuldevta/estate-api/types"
)

// LeadRepository handles persistence for leads.
type LeadRepository struct {
	db *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// LeadFilter narrows List results. Zero values mean "no filter".
type LeadFilter struct {
	ListingID int
	Status    string
}

const leadColumns = `id, listing_id, phone, email, name, message, status, source, created_at, updated_at`

func scanLead(row rowScanner) (types.Lead, error) {
	var lead types.Lead
	err := row.Scan(
		&lead.ID,
		&lead.ListingID,
		&lead.Phone,
		&lead.Email,
		&lead.Name,
		&lead.Message,
		&lead.Status,
		&lead.Source,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Lead{}, ErrNotFound
		}
		return types.Lead{}, err
	}
	return lead, nil
}

func (r *LeadRepository) Get(ctx context.Context, id int) (types.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE id = $1`
	return scanLead(r.db.QueryRowContext(ctx, query, id))
}

func (r *LeadRepository) List(ctx context.Context, filter LeadFilter, offset, limit int) ([]types.Lead, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where := ``
	args := []any{}
	if filter.ListingID > 0 {
		args = append(args, filter.ListingID)
		where = fmt.Sprintf(`WHERE listing_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		if where == "" {
			where = fmt.Sprintf(`WHERE status = $%d`, len(args))
		} else {
			where += fmt.Sprintf(` AND status = $%d`, len(args))
		}
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM leads `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, offset, limit)
	query := fmt.Sprintf(`
		SELECT `+leadColumns+`
		FROM leads %s
		ORDER BY created_at DESC
		OFFSET $%d LIMIT $%d`, where, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]types.Lead, 0, limit)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return leads, total, nil
}

func (r *LeadRepository) Create(ctx context.Context, lead types.Lead) (types.Lead, error) {
	now := time.Now()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	const query = `
		INSERT INTO leads (listing_id, phone, email, name, message, status, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		lead.ListingID,
		lead.Phone,
		lead.Email,
		lead.Name,
		lead.Message,
		lead.Status,
		lead.Source,
		lead.CreatedAt,
		lead.UpdatedAt,
	).Scan(&lead.ID); err != nil {
		return types.Lead{}, err
	}
	return lead, nil
}

// UpdateStatus moves a lead through the contact pipeline.
func (r *LeadRepository) UpdateStatus(ctx context.Context, id int, status string) (types.Lead, error) {
	const query = `
		UPDATE leads
		SET status = $1, updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return types.Lead{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Lead{}, err
	}
	if affected == 0 {
		return types.Lead{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *LeadRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM leads WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns lead counts grouped by status.
func (r *LeadRepository) Stats(ctx context.Context) (types.LeadStats, error) {
	const query = `
		SELECT status, COUNT(1)
		FROM leads
		GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return types.LeadStats{}, err
	}
	defer rows.Close()

	stats := types.LeadStats{ByStatus: make(map[string]int)}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return types.LeadStats{}, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return types.LeadStats{}, err
	}

	return stats, nil
}
