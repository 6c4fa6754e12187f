package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codeguard/codeguard/internal/config"
	"github.com/codeguard/codeguard/internal/core"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/pkg/types"
)

// Store persists analyses across five relations: analyses, findings,
// stage_logs, linguistic_details, feedback. Single-writer-per-id is
// the orchestrator's discipline, not the store's.
type Store struct {
	db  *sqlx.DB
	cfg config.DatabaseConfig
	log *logger.Logger
}

func NewStore(cfg config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	log = log.WithComponent("database")

	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Store{db: db, cfg: cfg, log: log}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Infow("Database store initialised",
		"driver", cfg.Driver,
		"max_connections", cfg.MaxConnections,
	)
	return store, nil
}

func (s *Store) migrate() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying connection for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// validateFindings rejects unknown pattern tags at the persistence
// boundary; the ten-tag taxonomy is a closed sum.
func validateFindings(findings []types.Finding) error {
	for _, f := range findings {
		if !f.Pattern.Valid() {
			return fmt.Errorf("unknown pattern tag %q", f.Pattern)
		}
		if f.Severity < 0 || f.Severity > 10 {
			return fmt.Errorf("severity %d out of range for pattern %s", f.Severity, f.Pattern)
		}
	}
	return nil
}

// SaveAnalysis inserts a new analysis with its preliminary findings
// and stage logs. The record becomes visible with status=processing
// before any poller can observe it.
func (s *Store) SaveAnalysis(ctx context.Context, analysis *types.Analysis) error {
	start := time.Now()

	if analysis.ID == "" {
		analysis.ID = uuid.New().String()
	}
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = time.Now().UTC()
	}
	if err := validateFindings(analysis.Findings); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(`INSERT INTO analyses
		(id, prompt, code, language, status, overall_severity, has_bugs, summary, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query,
		analysis.ID, analysis.Prompt, analysis.Code, analysis.Language,
		string(analysis.Status), analysis.OverallSeverity, analysis.HasBugs,
		analysis.Summary, analysis.Confidence, analysis.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	if err := s.insertChildren(ctx, tx, analysis); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit analysis: %w", err)
	}

	s.log.LogDuration(ctx, "database.SaveAnalysis", start,
		"analysis_id", analysis.ID,
		"findings", len(analysis.Findings),
	)
	return nil
}

// CompleteAnalysis performs the single mutation of a record's life:
// the full finding set replaces the preliminary one, linguistic
// details are attached, and status flips to complete.
func (s *Store) CompleteAnalysis(ctx context.Context, analysis *types.Analysis) error {
	start := time.Now()

	if err := validateFindings(analysis.Findings); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE analyses
		SET status = ?, overall_severity = ?, has_bugs = ?, summary = ?, confidence = ?
		WHERE id = ?`),
		string(types.StatusComplete), analysis.OverallSeverity, analysis.HasBugs,
		analysis.Summary, analysis.Confidence, analysis.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update analysis: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("analysis %s not found", analysis.ID)
	}

	for _, table := range []string{"findings", "stage_logs", "linguistic_details"} {
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE analysis_id = ?", table)),
			analysis.ID,
		); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := s.insertChildren(ctx, tx, analysis); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit completion: %w", err)
	}

	s.log.LogDuration(ctx, "database.CompleteAnalysis", start,
		"analysis_id", analysis.ID,
		"findings", len(analysis.Findings),
	)
	return nil
}

func (s *Store) insertChildren(ctx context.Context, tx *sqlx.Tx, analysis *types.Analysis) error {
	findingQuery := tx.Rebind(`INSERT INTO findings
		(id, analysis_id, pattern, severity, confidence, description, location, fix_hint, detection_stage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for i := range analysis.Findings {
		f := &analysis.Findings[i]
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		f.AnalysisID = analysis.ID
		if _, err := tx.ExecContext(ctx, findingQuery,
			f.ID, f.AnalysisID, string(f.Pattern), f.Severity, f.Confidence,
			f.Description, f.Location, f.FixHint, string(f.DetectionStage),
		); err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}
	}

	logQuery := tx.Rebind(`INSERT INTO stage_logs
		(id, analysis_id, stage_name, success, error, elapsed_s)
		VALUES (?, ?, ?, ?, ?, ?)`)
	for i := range analysis.StageLogs {
		sl := &analysis.StageLogs[i]
		if sl.ID == "" {
			sl.ID = uuid.New().String()
		}
		sl.AnalysisID = analysis.ID
		if _, err := tx.ExecContext(ctx, logQuery,
			sl.ID, sl.AnalysisID, sl.Stage, sl.Success, sl.Error, sl.ElapsedS,
		); err != nil {
			return fmt.Errorf("failed to insert stage log: %w", err)
		}
	}

	if analysis.Linguistic != nil {
		unprompted, _ := json.Marshal(emptyIfNil(analysis.Linguistic.UnpromptedFeatures))
		missing, _ := json.Marshal(emptyIfNil(analysis.Linguistic.MissingFeatures))
		hardcoded, _ := json.Marshal(emptyIfNil(analysis.Linguistic.HardcodedValues))
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO linguistic_details
			(id, analysis_id, intent_match_score, unprompted_features, missing_features, hardcoded_values)
			VALUES (?, ?, ?, ?, ?, ?)`),
			uuid.New().String(), analysis.ID, analysis.Linguistic.IntentMatchScore,
			string(unprompted), string(missing), string(hardcoded),
		); err != nil {
			return fmt.Errorf("failed to insert linguistic details: %w", err)
		}
	}

	return nil
}

func emptyIfNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

// ErrNotFound marks a missing analysis id.
var ErrNotFound = sql.ErrNoRows

// GetAnalysis loads a full record with its children.
func (s *Store) GetAnalysis(ctx context.Context, id string) (*types.Analysis, error) {
	var row struct {
		ID              string    `db:"id"`
		Prompt          string    `db:"prompt"`
		Code            string    `db:"code"`
		Language        string    `db:"language"`
		Status          string    `db:"status"`
		OverallSeverity int       `db:"overall_severity"`
		HasBugs         bool      `db:"has_bugs"`
		Summary         string    `db:"summary"`
		Confidence      float64   `db:"confidence"`
		CreatedAt       time.Time `db:"created_at"`
	}
	if err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT id, prompt, code, language, status, overall_severity, has_bugs, summary, confidence, created_at
			FROM analyses WHERE id = ?`), id,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}

	analysis := &types.Analysis{
		ID:              row.ID,
		Prompt:          row.Prompt,
		Code:            row.Code,
		Language:        row.Language,
		Status:          types.AnalysisStatus(row.Status),
		OverallSeverity: row.OverallSeverity,
		HasBugs:         row.HasBugs,
		Summary:         row.Summary,
		Confidence:      row.Confidence,
		CreatedAt:       row.CreatedAt,
		Findings:        []types.Finding{},
		StageLogs:       []types.StageLog{},
	}

	if err := s.db.SelectContext(ctx, &analysis.Findings,
		s.db.Rebind(`SELECT id, analysis_id, pattern, severity, confidence, description, location, fix_hint, detection_stage
			FROM findings WHERE analysis_id = ? ORDER BY severity DESC, pattern`), id,
	); err != nil {
		return nil, fmt.Errorf("failed to load findings: %w", err)
	}

	if err := s.db.SelectContext(ctx, &analysis.StageLogs,
		s.db.Rebind(`SELECT id, analysis_id, stage_name, success, error, elapsed_s
			FROM stage_logs WHERE analysis_id = ?`), id,
	); err != nil {
		return nil, fmt.Errorf("failed to load stage logs: %w", err)
	}

	var ling struct {
		IntentMatchScore   float64 `db:"intent_match_score"`
		UnpromptedFeatures string  `db:"unprompted_features"`
		MissingFeatures    string  `db:"missing_features"`
		HardcodedValues    string  `db:"hardcoded_values"`
	}
	err := s.db.GetContext(ctx, &ling,
		s.db.Rebind(`SELECT intent_match_score, unprompted_features, missing_features, hardcoded_values
			FROM linguistic_details WHERE analysis_id = ?`), id)
	switch err {
	case nil:
		extras := &types.LinguisticExtras{IntentMatchScore: ling.IntentMatchScore}
		_ = json.Unmarshal([]byte(ling.UnpromptedFeatures), &extras.UnpromptedFeatures)
		_ = json.Unmarshal([]byte(ling.MissingFeatures), &extras.MissingFeatures)
		_ = json.Unmarshal([]byte(ling.HardcodedValues), &extras.HardcodedValues)
		analysis.Linguistic = extras
	case sql.ErrNoRows:
	default:
		return nil, fmt.Errorf("failed to load linguistic details: %w", err)
	}

	return analysis, nil
}

// ListAnalyses returns recent analyses without child records.
func (s *Store) ListAnalyses(ctx context.Context, limit int) ([]*types.Analysis, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryxContext(ctx,
		s.db.Rebind(`SELECT id, prompt, language, status, overall_severity, has_bugs, summary, confidence, created_at
			FROM analyses ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []*types.Analysis
	for rows.Next() {
		a := &types.Analysis{}
		var status string
		if err := rows.Scan(&a.ID, &a.Prompt, &a.Language, &status, &a.OverallSeverity,
			&a.HasBugs, &a.Summary, &a.Confidence, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis row: %w", err)
		}
		a.Status = types.AnalysisStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAnalysis removes an analysis and all child rows.
func (s *Store) DeleteAnalysis(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// SQLite does not enforce ON DELETE CASCADE unless foreign keys
	// are enabled per connection; delete children explicitly.
	for _, table := range []string{"findings", "stage_logs", "linguistic_details", "feedback"} {
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE analysis_id = ?", table)), id,
		); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}

	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM analyses WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// SaveFeedback attaches a rating to an existing analysis.
func (s *Store) SaveFeedback(ctx context.Context, fb *types.Feedback) error {
	if err := fb.Validate(); err != nil {
		return err
	}

	var exists int
	if err := s.db.GetContext(ctx, &exists,
		s.db.Rebind("SELECT COUNT(1) FROM analyses WHERE id = ?"), fb.AnalysisID,
	); err != nil {
		return fmt.Errorf("failed to check analysis: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	if fb.ID == "" {
		fb.ID = uuid.New().String()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO feedback
		(id, analysis_id, rating, comment, helpful, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		fb.ID, fb.AnalysisID, fb.Rating, fb.Comment, fb.Helpful, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// GetStats aggregates the stored corpus for the statistics endpoint.
func (s *Store) GetStats(ctx context.Context) (*core.Stats, error) {
	stats := &core.Stats{
		PatternFrequency: make(map[types.Pattern]int),
		AvgSeverity:      make(map[types.Pattern]float64),
		AvgConfidence:    make(map[types.Pattern]float64),
		StageCounts:      make(map[string]int),
		StageSuccessRate: make(map[string]float64),
		StageAvgElapsedS: make(map[string]float64),
	}

	if err := s.db.GetContext(ctx, &stats.TotalAnalyses, "SELECT COUNT(1) FROM analyses"); err != nil {
		return nil, fmt.Errorf("failed to count analyses: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.TotalFindings, "SELECT COUNT(1) FROM findings"); err != nil {
		return nil, fmt.Errorf("failed to count findings: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.AnalysesWithBugs,
		s.db.Rebind("SELECT COUNT(1) FROM analyses WHERE has_bugs = ?"), true,
	); err != nil {
		return nil, fmt.Errorf("failed to count buggy analyses: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.FeedbackCount, "SELECT COUNT(1) FROM feedback"); err != nil {
		return nil, fmt.Errorf("failed to count feedback: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx,
		`SELECT pattern, COUNT(1), AVG(severity), AVG(confidence)
		 FROM findings GROUP BY pattern`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate findings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pattern string
		var count int
		var avgSev, avgConf float64
		if err := rows.Scan(&pattern, &count, &avgSev, &avgConf); err != nil {
			return nil, fmt.Errorf("failed to scan finding aggregate: %w", err)
		}
		p := types.Pattern(pattern)
		stats.PatternFrequency[p] = count
		stats.AvgSeverity[p] = avgSev
		stats.AvgConfidence[p] = avgConf
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stageRows, err := s.db.QueryxContext(ctx,
		`SELECT detection_stage, COUNT(1) FROM findings GROUP BY detection_stage`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stages: %w", err)
	}
	defer stageRows.Close()
	for stageRows.Next() {
		var stage string
		var count int
		if err := stageRows.Scan(&stage, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stage aggregate: %w", err)
		}
		stats.StageCounts[stage] = count
	}
	if err := stageRows.Err(); err != nil {
		return nil, err
	}

	logRows, err := s.db.QueryxContext(ctx,
		`SELECT stage_name, AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END), AVG(elapsed_s)
		 FROM stage_logs GROUP BY stage_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stage logs: %w", err)
	}
	defer logRows.Close()
	for logRows.Next() {
		var stage string
		var successRate, avgElapsed float64
		if err := logRows.Scan(&stage, &successRate, &avgElapsed); err != nil {
			return nil, fmt.Errorf("failed to scan stage log aggregate: %w", err)
		}
		stats.StageSuccessRate[stage] = successRate
		stats.StageAvgElapsedS[stage] = avgElapsed
	}
	return stats, logRows.Err()
}
