package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
)

// Schema creates the conflicts table. Applied by deploy tooling and by the
// integration test suite.
const Schema = `
CREATE TABLE IF NOT EXISTS conflicts (
    id               UUID PRIMARY KEY,
    package_id       UUID NOT NULL,
    pair_key         TEXT NOT NULL,
    type             TEXT NOT NULL,
    status           TEXT NOT NULL,
    priority         TEXT NOT NULL,
    party_a          JSONB NOT NULL,
    party_b          JSONB NOT NULL,
    master           JSONB NOT NULL DEFAULT '{}',
    discarded        JSONB NOT NULL DEFAULT '{}',
    score            INT NOT NULL,
    confidence       TEXT NOT NULL,
    matched_criteria JSONB NOT NULL DEFAULT '[]',
    comparison       JSONB NOT NULL DEFAULT '{}',
    outcome          TEXT NOT NULL DEFAULT '',
    reason           TEXT NOT NULL DEFAULT '',
    resolved_by      TEXT NOT NULL DEFAULT '',
    resolved_at      TIMESTAMPTZ,
    escalated        BOOLEAN NOT NULL DEFAULT FALSE,
    escalated_by     TEXT NOT NULL DEFAULT '',
    escalated_at     TIMESTAMPTZ,
    assignee         TEXT NOT NULL DEFAULT '',
    review_attempts  JSONB NOT NULL DEFAULT '[]',
    sla_deadline     TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL,
    UNIQUE (package_id, pair_key)
);
CREATE INDEX IF NOT EXISTS conflicts_pkg_status_idx ON conflicts (package_id, status);
`

const conflictColumns = `id, package_id, pair_key, type, status, priority, party_a, party_b,
	master, discarded, score, confidence, matched_criteria, comparison, outcome, reason,
	resolved_by, resolved_at, escalated, escalated_by, escalated_at, assignee, review_attempts,
	sla_deadline, created_at, updated_at`

// Postgres persists conflicts with the parties and review trail in JSONB.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) CreateIfAbsent(ctx context.Context, c *models.Conflict) (bool, error) {
	m, err := marshalConflict(c)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO conflicts (`+conflictColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		ON CONFLICT (package_id, pair_key) DO NOTHING`,
		c.ID.String(), c.PackageID.String(), c.PairKey(), string(c.Type), string(c.Status), string(c.Priority),
		m.partyA, m.partyB, m.master, m.discarded, c.Score, c.Confidence, m.criteria, m.comparison,
		string(c.Outcome), c.Reason, c.ResolvedBy, nullTime(c.ResolvedAt),
		c.Escalated, c.EscalatedBy, nullTime(c.EscalatedAt), c.Assignee,
		m.attempts, nullTime(c.SLADeadline), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert conflict: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Postgres) Get(ctx context.Context, id domain.ConflictID) (*models.Conflict, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+conflictColumns+` FROM conflicts WHERE id = $1`, id.String())
	c, err := scanConflict(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return c, err
}

func (s *Postgres) Update(ctx context.Context, c *models.Conflict) error {
	m, err := marshalConflict(c)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE conflicts SET
			status = $2, priority = $3, outcome = $4, reason = $5, resolved_by = $6,
			resolved_at = $7, master = $8, discarded = $9, escalated = $10,
			escalated_by = $11, escalated_at = $12, assignee = $13,
			review_attempts = $14, matched_criteria = $15, comparison = $16, updated_at = $17
		WHERE id = $1`,
		c.ID.String(), string(c.Status), string(c.Priority), string(c.Outcome), c.Reason, c.ResolvedBy,
		nullTime(c.ResolvedAt), m.master, m.discarded, c.Escalated,
		c.EscalatedBy, nullTime(c.EscalatedAt), c.Assignee,
		m.attempts, m.criteria, m.comparison, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update conflict: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, f Filter) ([]*models.Conflict, int, error) {
	where, args := filterClauses(f)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM conflicts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conflicts: %w", err)
	}

	query := `SELECT ` + conflictColumns + ` FROM conflicts` + where + `
		ORDER BY CASE priority WHEN 'high' THEN 0 ELSE 1 END,
		         sla_deadline ASC NULLS LAST, created_at ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var out []*models.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *Postgres) CountOpen(ctx context.Context, pkgID domain.PackageID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM conflicts WHERE package_id = $1 AND status = $2`,
		pkgID.String(), string(models.StatusPendingReview)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open conflicts: %w", err)
	}
	return n, nil
}

func filterClauses(f Filter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !f.PackageID.IsNil() {
		add("package_id = $%d", f.PackageID.String())
	}
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Outcome != "" {
		add("outcome = $%d", string(f.Outcome))
	}
	if f.Priority != "" {
		add("priority = $%d", string(f.Priority))
	}
	if f.Assignee != "" {
		add("assignee = $%d", f.Assignee)
	}
	if f.Escalated != nil {
		add("escalated = $%d", *f.Escalated)
	}
	if f.OverdueAt != nil {
		add("sla_deadline < $%d", *f.OverdueAt)
		args = append(args, string(models.StatusPendingReview))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// marshaled holds the JSONB column payloads of one conflict.
type marshaled struct {
	partyA, partyB, master, discarded, criteria, comparison, attempts []byte
}

func marshalConflict(c *models.Conflict) (marshaled, error) {
	var m marshaled
	var err error
	if m.partyA, err = json.Marshal(c.A); err != nil {
		return m, fmt.Errorf("marshal party: %w", err)
	}
	if m.partyB, err = json.Marshal(c.B); err != nil {
		return m, fmt.Errorf("marshal party: %w", err)
	}
	if m.master, err = json.Marshal(c.Master); err != nil {
		return m, fmt.Errorf("marshal merge trace: %w", err)
	}
	if m.discarded, err = json.Marshal(c.Discarded); err != nil {
		return m, fmt.Errorf("marshal merge trace: %w", err)
	}
	if c.MatchedCriteria == nil {
		m.criteria = []byte("[]")
	} else if m.criteria, err = json.Marshal(c.MatchedCriteria); err != nil {
		return m, fmt.Errorf("marshal criteria: %w", err)
	}
	if c.Comparison == nil {
		m.comparison = []byte("{}")
	} else if m.comparison, err = json.Marshal(c.Comparison); err != nil {
		return m, fmt.Errorf("marshal comparison: %w", err)
	}
	if c.ReviewAttempts == nil {
		m.attempts = []byte("[]")
	} else if m.attempts, err = json.Marshal(c.ReviewAttempts); err != nil {
		return m, fmt.Errorf("marshal review attempts: %w", err)
	}
	return m, nil
}

func scanConflict(row rowScanner) (*models.Conflict, error) {
	var (
		idStr, pkgStr, pairKey, typ, status, priority string
		partyA, partyB, master, discarded             []byte
		criteria, comparison, attempts                []byte
		resolvedAt, escalatedAt, slaDeadline          *time.Time
		c                                             models.Conflict
	)
	err := row.Scan(&idStr, &pkgStr, &pairKey, &typ, &status, &priority, &partyA, &partyB,
		&master, &discarded, &c.Score, &c.Confidence, &criteria, &comparison, (*string)(&c.Outcome),
		&c.Reason, &c.ResolvedBy, &resolvedAt, &c.Escalated, &c.EscalatedBy, &escalatedAt,
		&c.Assignee, &attempts, &slaDeadline, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if c.ID, err = domain.ParseConflictID(idStr); err != nil {
		return nil, err
	}
	if c.PackageID, err = domain.ParsePackageID(pkgStr); err != nil {
		return nil, err
	}
	c.Type = models.Type(typ)
	c.Status = models.Status(status)
	c.Priority = models.Priority(priority)
	if err := json.Unmarshal(partyA, &c.A); err != nil {
		return nil, fmt.Errorf("unmarshal party: %w", err)
	}
	if err := json.Unmarshal(partyB, &c.B); err != nil {
		return nil, fmt.Errorf("unmarshal party: %w", err)
	}
	if err := json.Unmarshal(master, &c.Master); err != nil {
		return nil, fmt.Errorf("unmarshal merge trace: %w", err)
	}
	if err := json.Unmarshal(discarded, &c.Discarded); err != nil {
		return nil, fmt.Errorf("unmarshal merge trace: %w", err)
	}
	if err := json.Unmarshal(criteria, &c.MatchedCriteria); err != nil {
		return nil, fmt.Errorf("unmarshal criteria: %w", err)
	}
	if err := json.Unmarshal(comparison, &c.Comparison); err != nil {
		return nil, fmt.Errorf("unmarshal comparison: %w", err)
	}
	if err := json.Unmarshal(attempts, &c.ReviewAttempts); err != nil {
		return nil, fmt.Errorf("unmarshal review attempts: %w", err)
	}
	if resolvedAt != nil {
		c.ResolvedAt = *resolvedAt
	}
	if escalatedAt != nil {
		c.EscalatedAt = *escalatedAt
	}
	if slaDeadline != nil {
		c.SLADeadline = *slaDeadline
	}
	return &c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
