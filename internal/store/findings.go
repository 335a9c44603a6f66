package store

import (
	"context"
	"fmt"
	"time"
)

// Finding is one persisted vulnerability from a scan's analysis.
type Finding struct {
	ID          string    `json:"id" yaml:"id"`
	ScanID      string    `json:"scan_id" yaml:"scan_id"`
	Module      string    `json:"module,omitempty" yaml:"module,omitempty"`
	Severity    string    `json:"severity" yaml:"severity"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// ListFindings returns a scan's findings in analysis order.
func (s *Store) ListFindings(ctx context.Context, scanID string) ([]Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scan_id, module, severity, title, description, created_at
         FROM findings WHERE scan_id = ? ORDER BY position`, scanID)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer rows.Close()

	out := []Finding{}
	for rows.Next() {
		var (
			f  Finding
			ts int64
		)
		if err := rows.Scan(&f.ID, &f.ScanID, &f.Module, &f.Severity, &f.Title, &f.Description, &ts); err != nil {
			return nil, err
		}
		f.CreatedAt = time.Unix(0, ts)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ModuleStats counts outcomes of one module across all stored scans.
type ModuleStats struct {
	Module        string  `json:"module" yaml:"module"`
	Success       int     `json:"success" yaml:"success"`
	Failed        int     `json:"failed" yaml:"failed"`
	TimedOut      int     `json:"timed_out" yaml:"timed_out"`
	AvgDurationMs float64 `json:"avg_duration_ms" yaml:"avg_duration_ms"`
}

// Stats summarizes the stored history.
type Stats struct {
	TotalScans         int            `json:"total_scans" yaml:"total_scans"`
	ByStatus           map[string]int `json:"by_status" yaml:"by_status"`
	ByTargetType       map[string]int `json:"by_target_type" yaml:"by_target_type"`
	TotalFindings      int            `json:"total_findings" yaml:"total_findings"`
	FindingsBySeverity map[string]int `json:"findings_by_severity" yaml:"findings_by_severity"`
	AverageRiskScore   float64        `json:"average_risk_score" yaml:"average_risk_score"`
	Modules            []ModuleStats  `json:"modules" yaml:"modules"`
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		ByStatus:           map[string]int{},
		ByTargetType:       map[string]int{},
		FindingsBySeverity: map[string]int{},
		Modules:            []ModuleStats{},
	}

	if err := s.countInto(ctx, `SELECT status, COUNT(*) FROM scans GROUP BY status`, st.ByStatus); err != nil {
		return nil, err
	}
	if err := s.countInto(ctx, `SELECT target_type, COUNT(*) FROM scans GROUP BY target_type`, st.ByTargetType); err != nil {
		return nil, err
	}
	if err := s.countInto(ctx, `SELECT severity, COUNT(*) FROM findings GROUP BY severity`, st.FindingsBySeverity); err != nil {
		return nil, err
	}
	for _, n := range st.ByStatus {
		st.TotalScans += n
	}
	for _, n := range st.FindingsBySeverity {
		st.TotalFindings += n
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(risk_score), 0) FROM scans WHERE risk_score IS NOT NULL`).Scan(&st.AverageRiskScore); err != nil {
		return nil, fmt.Errorf("average risk: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT module,
                SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END),
                SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
                SUM(CASE WHEN status = 'timed_out' THEN 1 ELSE 0 END),
                AVG(duration_ms)
         FROM module_outcomes GROUP BY module ORDER BY module`)
	if err != nil {
		return nil, fmt.Errorf("module stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m ModuleStats
		if err := rows.Scan(&m.Module, &m.Success, &m.Failed, &m.TimedOut, &m.AvgDurationMs); err != nil {
			return nil, err
		}
		st.Modules = append(st.Modules, m)
	}
	return st, rows.Err()
}

func (s *Store) countInto(ctx context.Context, query string, dst map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("count query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			k string
			n int
		)
		if err := rows.Scan(&k, &n); err != nil {
			return err
		}
		dst[k] = n
	}
	return rows.Err()
}
