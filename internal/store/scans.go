package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
)

const scanColumns = `id, target, target_type, scan_type, status, modules, params,
       created_at, started_at, completed_at, error, analysis_error, deadline_exceeded, result, analysis`

// SaveScan upserts the scan with its outcomes and findings in one transaction.
func (s *Store) SaveScan(ctx context.Context, scan *model.Scan) error {
	if scan == nil || scan.ID == "" {
		return errors.New("store: scan without id")
	}

	modules, err := json.Marshal(scan.RequestedModules)
	if err != nil {
		return fmt.Errorf("encode modules: %w", err)
	}
	params, err := json.Marshal(nonNilParams(scan.Params))
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	result, err := jsonOrNull(scan.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	analysis, err := jsonOrNull(scan.Analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	var risk sql.NullInt64
	if scan.Analysis != nil {
		risk = sql.NullInt64{Int64: int64(scan.Analysis.RiskScore), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO scans (id, target, target_type, scan_type, status, modules, params,
                            created_at, started_at, completed_at, error, analysis_error,
                            deadline_exceeded, risk_score, result, analysis)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
            status = excluded.status,
            started_at = excluded.started_at,
            completed_at = excluded.completed_at,
            error = excluded.error,
            analysis_error = excluded.analysis_error,
            deadline_exceeded = excluded.deadline_exceeded,
            risk_score = excluded.risk_score,
            result = excluded.result,
            analysis = excluded.analysis`,
		scan.ID, scan.Target, string(scan.TargetType), string(scan.ScanType), string(scan.Status),
		string(modules), string(params),
		scan.CreatedAt.UnixNano(), nullTime(scan.StartedAt), nullTime(scan.CompletedAt),
		scan.Error, scan.AnalysisError, boolInt(scan.DeadlineExceeded), risk, result, analysis,
	)
	if err != nil {
		return fmt.Errorf("upsert scan: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM module_outcomes WHERE scan_id = ?`, scan.ID); err != nil {
		return fmt.Errorf("clear outcomes: %w", err)
	}
	if scan.Result != nil {
		for i, o := range scan.Result.Modules.Outcomes() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO module_outcomes (scan_id, position, module, status, error, duration_ms)
                 VALUES (?, ?, ?, ?, ?, ?)`,
				scan.ID, i, o.Module, string(o.Status), o.Error, o.Duration.Milliseconds(),
			); err != nil {
				return fmt.Errorf("insert outcome %s: %w", o.Module, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE scan_id = ?`, scan.ID); err != nil {
		return fmt.Errorf("clear findings: %w", err)
	}
	if scan.Analysis != nil {
		now := time.Now().UnixNano()
		for i, v := range scan.Analysis.Vulnerabilities {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO findings (id, scan_id, position, module, severity, title, description, created_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.New().String(), scan.ID, i, v.Module, v.Severity, v.Title, v.Description, now,
			); err != nil {
				return fmt.Errorf("insert finding: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scan %s: %w", scan.ID, err)
	}
	s.logger.Debug("scan saved",
		logging.Field{Key: "scan_id", Value: scan.ID},
		logging.Field{Key: "status", Value: string(scan.Status)})
	return nil
}

// GetScan loads one scan by id.
func (s *Store) GetScan(ctx context.Context, id string) (*model.Scan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ? LIMIT 1`, id)
	scan, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get scan %s: %w", id, err)
	}
	return scan, nil
}

// ListRecentScans returns up to limit scans, newest first.
func (s *Store) ListRecentScans(ctx context.Context, limit int) ([]*model.Scan, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanColumns+` FROM scans ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var out []*model.Scan
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, scan)
	}
	return out, rows.Err()
}

// PreviousScan returns the newest completed scan of the same target created
// strictly before the given time.
func (s *Store) PreviousScan(ctx context.Context, target string, tt model.TargetType, before time.Time) (*model.Scan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scanColumns+` FROM scans
         WHERE target = ? AND target_type = ? AND status = ? AND created_at < ?
         ORDER BY created_at DESC LIMIT 1`,
		target, string(tt), string(model.ScanCompleted), before.UnixNano())
	scan, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no earlier scan of %s", ErrScanNotFound, target)
	}
	if err != nil {
		return nil, fmt.Errorf("previous scan of %s: %w", target, err)
	}
	return scan, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(r rowScanner) (*model.Scan, error) {
	var (
		sc                           model.Scan
		targetType, scanType, status string
		modules, params              string
		createdAt                    int64
		startedAt, completedAt       sql.NullInt64
		deadline                     int
		result, analysis             sql.NullString
	)
	if err := r.Scan(&sc.ID, &sc.Target, &targetType, &scanType, &status, &modules, &params,
		&createdAt, &startedAt, &completedAt, &sc.Error, &sc.AnalysisError, &deadline, &result, &analysis); err != nil {
		return nil, err
	}
	sc.TargetType = model.TargetType(targetType)
	sc.ScanType = model.ScanType(scanType)
	sc.Status = model.ScanStatus(status)
	sc.CreatedAt = time.Unix(0, createdAt)
	sc.StartedAt = timePtr(startedAt)
	sc.CompletedAt = timePtr(completedAt)
	sc.DeadlineExceeded = deadline != 0

	if err := json.Unmarshal([]byte(modules), &sc.RequestedModules); err != nil {
		return nil, fmt.Errorf("decode modules: %w", err)
	}
	if err := json.Unmarshal([]byte(params), &sc.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	if len(sc.Params) == 0 {
		sc.Params = nil
	}
	if result.Valid {
		sc.Result = &model.ScanResult{}
		if err := json.Unmarshal([]byte(result.String), sc.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	if analysis.Valid {
		sc.Analysis = &model.AnalysisResult{}
		if err := json.Unmarshal([]byte(analysis.String), sc.Analysis); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
	}
	return &sc, nil
}

func jsonOrNull(v any) (sql.NullString, error) {
	switch x := v.(type) {
	case *model.ScanResult:
		if x == nil {
			return sql.NullString{}, nil
		}
	case *model.AnalysisResult:
		if x == nil {
			return sql.NullString{}, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func nonNilParams(p map[string]string) map[string]string {
	if p == nil {
		return map[string]string{}
	}
	return p
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
