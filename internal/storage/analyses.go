package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// sqliteTimeFormat sorts lexicographically in timestamp order.
const sqliteTimeFormat = "2006-01-02 15:04:05.000000"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

const summaryColumns = `id, uuid, company_name, number_of_employees, company_gstin, model, latency_ms, created_at`

// SaveAnalysis inserts a finished run. ID and, when unset, CreatedAt are
// filled in on success.
func (s *Store) SaveAnalysis(ctx context.Context, a *Analysis) error {
	if a.UUID == "" {
		return errors.New("analysis uuid is required")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO company_analytc (uuid, company_name, number_of_employees, company_gstin, model, latency_ms, analysis, company_details, reviews, sources, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UUID, a.CompanyName, a.NumberOfEmployees, a.CompanyGSTIN, a.Model, a.LatencyMs,
		a.Analysis, a.CompanyDetails, a.Reviews, a.Sources, s.timeArg(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting analysis %s: %w", a.UUID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

// GetAnalysis returns the full row for a run id.
func (s *Store) GetAnalysis(ctx context.Context, uuid string) (Analysis, error) {
	var a Analysis
	var created dbTime
	err := s.db.QueryRowContext(ctx, `
		SELECT `+summaryColumns+`, analysis, company_details, reviews, sources
		FROM company_analytc WHERE uuid = ?`, uuid,
	).Scan(&a.ID, &a.UUID, &a.CompanyName, &a.NumberOfEmployees, &a.CompanyGSTIN, &a.Model, &a.LatencyMs, &created,
		&a.Analysis, &a.CompanyDetails, &a.Reviews, &a.Sources)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, err
	}
	a.CreatedAt = created.t
	return a, nil
}

// ListAnalyses returns one page of runs, newest first, and the total row
// count. page is 1-based; out-of-range arguments are clamped.
func (s *Store) ListAnalyses(ctx context.Context, page, limit int) ([]AnalysisSummary, int, error) {
	page, limit = clampPage(page, limit)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM company_analytc").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting analyses: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+summaryColumns+`
		FROM company_analytc ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing analyses: %w", err)
	}
	defer rows.Close()

	results := []AnalysisSummary{}
	for rows.Next() {
		var a AnalysisSummary
		var created dbTime
		if err := rows.Scan(&a.ID, &a.UUID, &a.CompanyName, &a.NumberOfEmployees, &a.CompanyGSTIN, &a.Model, &a.LatencyMs, &created); err != nil {
			return nil, 0, err
		}
		a.CreatedAt = created.t
		results = append(results, a)
	}
	return results, total, rows.Err()
}

// RecentAnalyses returns the n newest runs.
func (s *Store) RecentAnalyses(ctx context.Context, n int) ([]AnalysisSummary, error) {
	items, _, err := s.ListAnalyses(ctx, 1, n)
	return items, err
}

// DeleteAnalysis removes a run by id.
func (s *Store) DeleteAnalysis(ctx context.Context, uuid string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM company_analytc WHERE uuid = ?", uuid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func (s *Store) timeArg(t time.Time) any {
	if s.dialect == SQLite {
		return t.UTC().Format(sqliteTimeFormat)
	}
	return t.UTC()
}

// dbTime scans timestamps from either driver: MySQL with parseTime returns
// time.Time, SQLite may return text.
type dbTime struct{ t time.Time }

var timeLayouts = []string{
	sqliteTimeFormat,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
}

func (d *dbTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		d.t = time.Time{}
	case time.Time:
		d.t = x.UTC()
	case string:
		return d.parse(x)
	case []byte:
		return d.parse(string(x))
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
	return nil
}

func (d *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("parsing timestamp %q", s)
}
