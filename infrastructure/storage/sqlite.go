package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
	"github.com/DansiDanutz/nervix-leaderboard/internal/ports"
)

// SQLiteStore keeps agent metrics in a single SQLite table. Roles are
// stored as a JSON array.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
// Use ":memory:" for a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS agent_metrics (
    agent_id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT '',
    roles TEXT NOT NULL DEFAULT '[]',
    success_rate REAL NOT NULL DEFAULT 0,
    avg_response_time_seconds REAL NOT NULL DEFAULT 0,
    avg_quality_rating REAL NOT NULL DEFAULT 0,
    uptime_consistency REAL NOT NULL DEFAULT 0,
    tasks_completed INTEGER NOT NULL DEFAULT 0,
    tasks_failed INTEGER NOT NULL DEFAULT 0,
    knowledge_packages_approved INTEGER NOT NULL DEFAULT 0,
    completed_trades INTEGER NOT NULL DEFAULT 0,
    total_earned_credits REAL NOT NULL DEFAULT 0
);`)
	return err
}

// Name implements ports.SnapshotLoader.
func (s *SQLiteStore) Name() string { return "sqlite" }

// LoadCohort implements ports.SnapshotLoader.
func (s *SQLiteStore) LoadCohort(ctx context.Context) ([]domain.AgentMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT agent_id, name, status, roles,
       success_rate, avg_response_time_seconds, avg_quality_rating, uptime_consistency,
       tasks_completed, tasks_failed, knowledge_packages_approved, completed_trades,
       total_earned_credits
FROM agent_metrics
ORDER BY agent_id`)
	if err != nil {
		return nil, ports.NewLoaderError(s.Name(), "query", err)
	}
	defer rows.Close()

	cohort := []domain.AgentMetric{}
	for rows.Next() {
		var (
			m     domain.AgentMetric
			roles string
		)
		if err := rows.Scan(
			&m.AgentID, &m.Name, &m.Status, &roles,
			&m.SuccessRate, &m.AvgResponseTimeSeconds, &m.AvgQualityRating, &m.UptimeConsistency,
			&m.TasksCompleted, &m.TasksFailed, &m.KnowledgePackagesApproved, &m.CompletedTrades,
			&m.TotalEarnedCredits,
		); err != nil {
			return nil, ports.NewLoaderError(s.Name(), "scan", err)
		}
		if err := json.Unmarshal([]byte(roles), &m.Roles); err != nil {
			return nil, ports.NewLoaderError(s.Name(), "scan",
				fmt.Errorf("%w: roles of %q: %w", ports.ErrInvalidSnapshot, m.AgentID, err))
		}
		cohort = append(cohort, m)
	}
	if err := rows.Err(); err != nil {
		return nil, ports.NewLoaderError(s.Name(), "query", err)
	}
	return cohort, nil
}

// UpsertMetrics inserts or replaces metrics in one transaction.
func (s *SQLiteStore) UpsertMetrics(ctx context.Context, metrics []domain.AgentMetric) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO agent_metrics (
    agent_id, name, status, roles,
    success_rate, avg_response_time_seconds, avg_quality_rating, uptime_consistency,
    tasks_completed, tasks_failed, knowledge_packages_approved, completed_trades,
    total_earned_credits
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(agent_id) DO UPDATE SET
    name = excluded.name,
    status = excluded.status,
    roles = excluded.roles,
    success_rate = excluded.success_rate,
    avg_response_time_seconds = excluded.avg_response_time_seconds,
    avg_quality_rating = excluded.avg_quality_rating,
    uptime_consistency = excluded.uptime_consistency,
    tasks_completed = excluded.tasks_completed,
    tasks_failed = excluded.tasks_failed,
    knowledge_packages_approved = excluded.knowledge_packages_approved,
    completed_trades = excluded.completed_trades,
    total_earned_credits = excluded.total_earned_credits`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range metrics {
		roles := m.Roles
		if roles == nil {
			roles = []string{}
		}
		encoded, err := json.Marshal(roles)
		if err != nil {
			return fmt.Errorf("encode roles of %q: %w", m.AgentID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			m.AgentID, m.Name, string(m.Status), string(encoded),
			m.SuccessRate, m.AvgResponseTimeSeconds, m.AvgQualityRating, m.UptimeConsistency,
			m.TasksCompleted, m.TasksFailed, m.KnowledgePackagesApproved, m.CompletedTrades,
			m.TotalEarnedCredits,
		); err != nil {
			return fmt.Errorf("upsert %q: %w", m.AgentID, err)
		}
	}
	return tx.Commit()
}

// DeleteMetrics removes the given agents. Unknown IDs are ignored.
func (s *SQLiteStore) DeleteMetrics(ctx context.Context, agentIDs ...string) error {
	for _, id := range agentIDs {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM agent_metrics WHERE agent_id = ?`, id); err != nil {
			return fmt.Errorf("delete %q: %w", id, err)
		}
	}
	return nil
}

var _ ports.SnapshotLoader = (*SQLiteStore)(nil)
