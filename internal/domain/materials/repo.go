package materials

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const materialColumns = `id, name, ref, type, thickness, cmup, active, created_at`

func scanMaterial(row pgx.Row) (Material, error) {
	var m Material
	err := row.Scan(&m.ID, &m.Name, &m.Ref, &m.Type, &m.Thickness, &m.CMUP, &m.Active, &m.CreatedAt)
	return m, err
}

func (r *Repo) Create(ctx context.Context, nm NewMaterial) (*Material, error) {
	var ref *string
	if s := strings.TrimSpace(nm.Ref); s != "" {
		ref = &s
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO materials (name, ref, type, thickness, cmup, active)
		VALUES ($1,$2,$3,$4,$5,TRUE)
		RETURNING `+materialColumns,
		strings.TrimSpace(nm.Name), ref, string(nm.Type), nm.Thickness, nm.CMUP)

	m, err := scanMaterial(row)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByRef точное совпадение ref без учёта регистра.
func (r *Repo) GetByRef(ctx context.Context, ref string) (*Material, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+materialColumns+`
		FROM materials
		WHERE lower(ref) = lower($1)
		ORDER BY id
		LIMIT 1
	`, strings.TrimSpace(ref))
	m, err := scanMaterial(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *Repo) GetByName(ctx context.Context, name string) (*Material, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+materialColumns+`
		FROM materials
		WHERE name = $1
		ORDER BY id
		LIMIT 1
	`, strings.TrimSpace(name))
	m, err := scanMaterial(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *Repo) List(ctx context.Context, onlyActive bool) ([]Material, error) {
	q := `SELECT ` + materialColumns + ` FROM materials`
	if onlyActive {
		q += " WHERE active = TRUE"
	}
	q += " ORDER BY name"

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
