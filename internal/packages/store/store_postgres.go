package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
)

// Schema creates the package tables. Applied by deploy tooling and by the
// integration test suite.
const Schema = `
CREATE TABLE IF NOT EXISTS import_packages (
    id                UUID PRIMARY KEY,
    number            TEXT NOT NULL UNIQUE,
    status            TEXT NOT NULL,
    source            TEXT NOT NULL DEFAULT '',
    declared_version  TEXT NOT NULL,
    submitted_by      TEXT NOT NULL DEFAULT '',
    archive_location  TEXT NOT NULL DEFAULT '',
    record_counts     JSONB NOT NULL DEFAULT '{}',
    quarantine_reason TEXT NOT NULL DEFAULT '',
    notes             JSONB NOT NULL DEFAULT '[]',
    committed_by      TEXT NOT NULL DEFAULT '',
    committed_count   INT NOT NULL DEFAULT 0,
    failed_count      INT NOT NULL DEFAULT 0,
    skipped_count     INT NOT NULL DEFAULT 0,
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL,
    completed_at      TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS import_package_seq (
    day TEXT PRIMARY KEY,
    n   INT NOT NULL
);
`

const packageColumns = `id, number, status, source, declared_version, submitted_by,
	archive_location, record_counts, quarantine_reason, notes, committed_by,
	committed_count, failed_count, skipped_count, created_at, updated_at, completed_at`

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Create(ctx context.Context, p *models.ImportPackage) error {
	counts, notes, err := marshalPackage(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO import_packages (`+packageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		p.ID.String(), p.Number, string(p.Status), p.Source, p.DeclaredVersion.String(), p.SubmittedBy,
		p.ArchiveLocation, counts, p.QuarantineReason, notes, p.CommittedBy,
		p.CommittedCount, p.FailedCount, p.SkippedCount, p.CreatedAt, p.UpdatedAt, nullTime(p.CompletedAt),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert package: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id domain.PackageID) (*models.ImportPackage, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+packageColumns+` FROM import_packages WHERE id = $1`, id.String())
	p, err := scanPackage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return p, err
}

func (s *Postgres) Update(ctx context.Context, p *models.ImportPackage) error {
	counts, notes, err := marshalPackage(p)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE import_packages SET
			source = $2, archive_location = $3, record_counts = $4,
			quarantine_reason = $5, notes = $6, committed_by = $7,
			committed_count = $8, failed_count = $9, skipped_count = $10, updated_at = $11
		WHERE id = $1`,
		p.ID.String(), p.Source, p.ArchiveLocation, counts, p.QuarantineReason, notes, p.CommittedBy,
		p.CommittedCount, p.FailedCount, p.SkippedCount, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update package: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Transition(ctx context.Context, id domain.PackageID, from, to models.Status) error {
	completed := "NULL"
	if to.Terminal() {
		completed = "NOW()"
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE import_packages SET status = $3, updated_at = NOW(), completed_at = `+completed+`
		WHERE id = $1 AND status = $2`,
		id.String(), string(from), string(to),
	)
	if err != nil {
		return fmt.Errorf("transition package: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing package from a lost CAS race.
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM import_packages WHERE id = $1)`, id.String()).Scan(&exists); err != nil {
			return fmt.Errorf("transition package: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, f Filter) ([]*models.ImportPackage, int, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Source != "" {
		args = append(args, f.Source)
		clauses = append(clauses, fmt.Sprintf("source = $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM import_packages`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count packages: %w", err)
	}

	query := `SELECT ` + packageColumns + ` FROM import_packages` + where + ` ORDER BY created_at DESC`
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
		return nil, 0, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	var out []*models.ImportPackage
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (s *Postgres) NextSequence(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO import_package_seq (day, n) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET n = import_package_seq.n + 1
		RETURNING n`,
		day.Format("20060102")).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next package sequence: %w", err)
	}
	return n, nil
}

func marshalPackage(p *models.ImportPackage) (counts, notes []byte, err error) {
	if p.RecordCounts == nil {
		counts = []byte("{}")
	} else if counts, err = json.Marshal(p.RecordCounts); err != nil {
		return nil, nil, fmt.Errorf("marshal record counts: %w", err)
	}
	if p.Notes == nil {
		notes = []byte("[]")
	} else if notes, err = json.Marshal(p.Notes); err != nil {
		return nil, nil, fmt.Errorf("marshal notes: %w", err)
	}
	return counts, notes, nil
}

func scanPackage(row interface{ Scan(dest ...any) error }) (*models.ImportPackage, error) {
	var (
		idStr, status, version string
		counts, notes          []byte
		completedAt            *time.Time
		p                      models.ImportPackage
	)
	err := row.Scan(&idStr, &p.Number, &status, &p.Source, &version, &p.SubmittedBy,
		&p.ArchiveLocation, &counts, &p.QuarantineReason, &notes, &p.CommittedBy,
		&p.CommittedCount, &p.FailedCount, &p.SkippedCount, &p.CreatedAt, &p.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if p.ID, err = domain.ParsePackageID(idStr); err != nil {
		return nil, err
	}
	p.Status = models.Status(status)
	if p.DeclaredVersion, err = domain.ParseCodeListVersion(version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(counts, &p.RecordCounts); err != nil {
		return nil, fmt.Errorf("unmarshal record counts: %w", err)
	}
	if err := json.Unmarshal(notes, &p.Notes); err != nil {
		return nil, fmt.Errorf("unmarshal notes: %w", err)
	}
	if completedAt != nil {
		p.CompletedAt = *completedAt
	}
	return &p, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
