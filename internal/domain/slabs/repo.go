package slabs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DefaultPageSize = 1000

const slabColumns = `id, user_id, position, material, length, width, thickness, quantity,
	status, entry_number, sheet_id, price_estimate, created_at, updated_at`

type Repo struct {
	pool     *pgxpool.Pool
	pageSize int
}

func NewRepo(pool *pgxpool.Pool, pageSize int) *Repo {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Repo{pool: pool, pageSize: pageSize}
}

func scanSlab(row pgx.Row) (Slab, error) {
	var s Slab
	err := row.Scan(
		&s.ID, &s.UserID, &s.Position, &s.Material,
		&s.Length, &s.Width, &s.Thickness, &s.Quantity,
		&s.Status, &s.EntryNumber, &s.SheetID, &s.PriceEstimate,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

// ListPage читает диапазон [from, to] включительно, упорядоченный по позиции.
func (r *Repo) ListPage(ctx context.Context, userID uuid.UUID, from, to int) ([]Slab, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slabColumns+`
		FROM slabs
		WHERE user_id = $1
		ORDER BY position, id
		OFFSET $2 LIMIT $3
	`, userID, from, to-from+1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Slab
	for rows.Next() {
		s, err := scanSlab(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) ListAll(ctx context.Context, userID uuid.UUID) ([]Slab, error) {
	var all []Slab
	for from := 0; ; from += r.pageSize {
		page, err := r.ListPage(ctx, userID, from, from+r.pageSize-1)
		if err != nil {
			return nil, fmt.Errorf("list slabs from %d: %w", from, err)
		}
		all = append(all, page...)
		if len(page) < r.pageSize {
			return all, nil
		}
	}
}

func (r *Repo) ListEntryNumbersPage(ctx context.Context, userID uuid.UUID, from, to int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT entry_number
		FROM slabs
		WHERE user_id = $1 AND entry_number IS NOT NULL
		ORDER BY id
		OFFSET $2 LIMIT $3
	`, userID, from, to-from+1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) ListEntryNumbers(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var all []string
	for from := 0; ; from += r.pageSize {
		page, err := r.ListEntryNumbersPage(ctx, userID, from, from+r.pageSize-1)
		if err != nil {
			return nil, fmt.Errorf("list entry numbers from %d: %w", from, err)
		}
		all = append(all, page...)
		if len(page) < r.pageSize {
			return all, nil
		}
	}
}

// InsertBatch вставляет пачку в одной транзакции: либо все, либо ничего.
func (r *Repo) InsertBatch(ctx context.Context, batch []NewSlab) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows := make([][]any, 0, len(batch))
	for _, s := range batch {
		status := s.Status
		if status == "" {
			status = StatusAvailable
		}
		rows = append(rows, []any{
			uuid.New(), s.UserID, s.Position, s.Material,
			s.Length, s.Width, s.Thickness, 1,
			string(status), s.EntryNumber, s.PriceEstimate,
		})
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"slabs"},
		[]string{"id", "user_id", "position", "material", "length", "width", "thickness",
			"quantity", "status", "entry_number", "price_estimate"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(n), nil
}

// FindCompatible вызывает find_compatible_slabs: отбор по материалу и допуску.
func (r *Repo) FindCompatible(ctx context.Context, userID uuid.UUID, req Requirement) ([]Slab, error) {
	var material *string
	if req.Material != "" {
		material = &req.Material
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+slabColumns+`
		FROM find_compatible_slabs($1, $2, $3, $4, $5, $6)
	`, userID, req.Length, req.Width, req.Thickness, material, req.tolerance())
	if err != nil {
		return nil, fmt.Errorf("find_compatible_slabs: %w", err)
	}
	defer rows.Close()

	var out []Slab
	for rows.Next() {
		s, err := scanSlab(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteAll вызывает delete_all_user_slabs.
func (r *Repo) DeleteAll(ctx context.Context, userID uuid.UUID) (DeleteResult, error) {
	if userID == uuid.Nil {
		return DeleteResult{}, ErrUnauthenticated
	}
	var res DeleteResult
	err := r.pool.QueryRow(ctx, `
		SELECT success, deleted_count, message FROM delete_all_user_slabs($1)
	`, userID).Scan(&res.Success, &res.DeletedCount, &res.Message)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete_all_user_slabs: %w", err)
	}
	return res, nil
}
