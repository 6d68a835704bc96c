package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/savegress/sentinel/internal/pipeline"
)

// ErrNotFound is returned by Get for an unknown outcome id
var ErrNotFound = errors.New("outcome not found")

// timeLayout sorts lexically in chronological order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is the indexed summary of an archived outcome
type Record struct {
	ID               string            `json:"id"`
	Source           string            `json:"source"`
	ClientName       string            `json:"client_name"`
	Decision         pipeline.Decision `json:"decision"`
	Route            pipeline.Route    `json:"route,omitempty"`
	Category         string            `json:"category,omitempty"`
	RiskScore        int               `json:"risk_score"`
	Affordability    string            `json:"affordability,omitempty"`
	ExpenseRatio     float64           `json:"expense_ratio"`
	StructuringCount int               `json:"structuring_count"`
	WarningCount     int               `json:"warning_count"`
	Error            string            `json:"error,omitempty"`
	CompletedAt      time.Time         `json:"completed_at"`
}

// Filter narrows List results
type Filter struct {
	Decision   pipeline.Decision
	ClientName string
	From       *time.Time
	To         *time.Time
	Limit      int
}

// Summary aggregates the archive
type Summary struct {
	Total      int            `json:"total"`
	ByDecision map[string]int `json:"by_decision"`
	ByCategory map[string]int `json:"by_category"`
	ByRoute    map[string]int `json:"by_route"`
}

var _ pipeline.Archive = (*Store)(nil)

// Store persists pipeline outcomes
type Store struct {
	db *sql.DB
}

// Open opens the archive at dsn, creating the schema if needed
func Open(dsn string) (*Store, error) {
	db, err := InitDB(dsn)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// NewStore wraps an initialized database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes an outcome, replacing any earlier record with the same id
func (s *Store) Save(ctx context.Context, o *pipeline.Outcome) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome %s: %w", o.ID, err)
	}

	var (
		category, affordability string
		score, structuring      int
		ratio                   float64
	)
	if o.Report != nil {
		category = string(o.Report.ComplianceAnalysis.Category)
		score = o.Report.ComplianceAnalysis.RiskScore
		affordability = string(o.Report.MathAnalysis.Status)
		ratio = o.Report.MathAnalysis.Ratio
		structuring = o.Report.StructuringAnalysis.Count
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO outcomes
		(id, source, client_name, decision, route, category, risk_score, affordability,
		 expense_ratio, structuring_count, warning_count, error, payload, started_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.Source, o.ClientName(), string(o.Decision), string(o.Route), category, score, affordability,
		ratio, structuring, len(o.Warnings), o.Error, string(payload),
		o.StartedAt.UTC().Format(timeLayout), o.CompletedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert outcome %s: %w", o.ID, err)
	}
	return nil
}

// Get returns the full outcome stored under id
func (s *Store) Get(ctx context.Context, id string) (*pipeline.Outcome, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM outcomes WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get outcome %s: %w", id, err)
	}

	var o pipeline.Outcome
	if err := json.Unmarshal([]byte(payload), &o); err != nil {
		return nil, fmt.Errorf("decode outcome %s: %w", id, err)
	}
	return &o, nil
}

// List returns matching records, newest first. A zero Limit returns 50.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	where, args := buildWhere(f)

	if f.Limit <= 0 {
		f.Limit = 50
	}
	q := `SELECT id, source, client_name, decision, route, category, risk_score, affordability,
		expense_ratio, structuring_count, warning_count, error, completed_at
		FROM outcomes` + where + " ORDER BY completed_at DESC, id LIMIT ?"
	args = append(args, f.Limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		var decision, route, completedAt string
		if err := rows.Scan(
			&r.ID, &r.Source, &r.ClientName, &decision, &route, &r.Category, &r.RiskScore,
			&r.Affordability, &r.ExpenseRatio, &r.StructuringCount, &r.WarningCount, &r.Error, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		r.Decision = pipeline.Decision(decision)
		r.Route = pipeline.Route(route)
		completed, err := time.Parse(timeLayout, completedAt)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at of outcome %s: %w", r.ID, err)
		}
		r.CompletedAt = completed
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summarize counts archived outcomes by decision, category and route
func (s *Store) Summarize(ctx context.Context) (*Summary, error) {
	sum := &Summary{
		ByDecision: make(map[string]int),
		ByCategory: make(map[string]int),
		ByRoute:    make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outcomes").Scan(&sum.Total); err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	if err := s.groupCount(ctx, "decision", sum.ByDecision); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, "category", sum.ByCategory); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, "route", sum.ByRoute); err != nil {
		return nil, err
	}
	return sum, nil
}

// --- helpers ---

func buildWhere(f Filter) (string, []any) {
	var clauses []string
	var args []any

	if f.Decision != "" {
		clauses = append(clauses, "decision = ?")
		args = append(args, string(f.Decision))
	}
	if f.ClientName != "" {
		clauses = append(clauses, "client_name = ?")
		args = append(args, f.ClientName)
	}
	if f.From != nil {
		clauses = append(clauses, "completed_at >= ?")
		args = append(args, f.From.UTC().Format(timeLayout))
	}
	if f.To != nil {
		clauses = append(clauses, "completed_at <= ?")
		args = append(args, f.To.UTC().Format(timeLayout))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// groupCount fills m with row counts per value of col. Empty values are skipped.
func (s *Store) groupCount(ctx context.Context, col string, m map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+col+", COUNT(*) FROM outcomes WHERE "+col+" != '' GROUP BY "+col,
	)
	if err != nil {
		return fmt.Errorf("group by %s: %w", col, err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v int
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		m[k] = v
	}
	return rows.Err()
}
