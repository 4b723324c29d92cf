package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medq/medq/pkg/models"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

// rangeClause builds the created_at filter for optional bounds starting at
// placeholder $n.
func rangeClause(from, to time.Time, n int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", n))
		args = append(args, from)
		n++
	}
	if !to.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at < $%d", n))
		args = append(args, to)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *repoPG) CountPatients(ctx context.Context, from, to time.Time) (int, error) {
	where, args := rangeClause(from, to, 1)
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return n, nil
}

func (r *repoPG) DailyCounts(ctx context.Context, from time.Time) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*)
		FROM patients WHERE created_at >= $1
		GROUP BY day`, from)
	if err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			day string
			n   int
		)
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		out[day] = n
	}
	return out, rows.Err()
}

func (r *repoPG) Symptoms(ctx context.Context, from time.Time) ([]SymptomRecord, error) {
	where, args := rangeClause(from, time.Time{}, 1)
	rows, err := r.pool.Query(ctx, `SELECT symptoms, created_at FROM patients`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("load symptoms: %w", err)
	}
	defer rows.Close()
	var out []SymptomRecord
	for rows.Next() {
		var rec SymptomRecord
		if err := rows.Scan(&rec.Symptoms, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repoPG) Patients(ctx context.Context, from, to time.Time) ([]*models.Patient, error) {
	where, args := rangeClause(from, to, 1)
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, age, gender, symptoms, duration, allergies, medications, created_at, updated_at
		FROM patients`+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()
	var out []*models.Patient
	for rows.Next() {
		var p models.Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.Symptoms, &p.Duration,
			&p.Allergies, &p.Medications, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
