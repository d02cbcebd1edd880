package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
)

// Schema creates the staging table. Applied by deploy tooling and by the
// integration test suite.
const Schema = `
CREATE TABLE IF NOT EXISTS staging_records (
    id           UUID PRIMARY KEY,
    package_id   UUID NOT NULL,
    kind         TEXT NOT NULL,
    original_id  TEXT NOT NULL,
    status       TEXT NOT NULL,
    approved     BOOLEAN NOT NULL DEFAULT FALSE,
    committed_id UUID,
    issues       JSONB NOT NULL DEFAULT '[]',
    payload      JSONB NOT NULL,
    UNIQUE (package_id, kind, original_id)
);
CREATE INDEX IF NOT EXISTS staging_records_pkg_kind_idx
    ON staging_records (package_id, kind);
`

// Postgres persists staged records with the kind-specific fields in a JSONB
// payload and the shared metadata in columns.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Add(ctx context.Context, rec models.Record) error {
	meta := rec.Meta()
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal staging payload: %w", err)
	}
	issues, err := json.Marshal(meta.Issues)
	if err != nil {
		return fmt.Errorf("marshal staging issues: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO staging_records (id, package_id, kind, original_id, status, approved, committed_id, issues, payload)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '00000000-0000-0000-0000-000000000000')::uuid, $8, $9)`,
		meta.ID.String(), meta.PackageID.String(), meta.Kind.String(), meta.OriginalID,
		string(meta.Status), meta.Approved, meta.CommittedID.String(), issues, payload,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert staging record: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id domain.RecordID) (models.Record, error) {
	return s.scanOne(ctx, `
		SELECT id, package_id, kind, original_id, status, approved, committed_id, issues, payload
		FROM staging_records WHERE id = $1`, id.String())
}

func (s *Postgres) FindByOriginalID(ctx context.Context, pkgID domain.PackageID, kind domain.EntityKind, originalID string) (models.Record, error) {
	return s.scanOne(ctx, `
		SELECT id, package_id, kind, original_id, status, approved, committed_id, issues, payload
		FROM staging_records WHERE package_id = $1 AND kind = $2 AND original_id = $3`,
		pkgID.String(), kind.String(), originalID)
}

func (s *Postgres) ListByPackage(ctx context.Context, pkgID domain.PackageID, kind domain.EntityKind) ([]models.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, package_id, kind, original_id, status, approved, committed_id, issues, payload
		FROM staging_records WHERE package_id = $1 AND kind = $2 ORDER BY original_id`,
		pkgID.String(), kind.String())
	if err != nil {
		return nil, fmt.Errorf("list staging records: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateStatus(ctx context.Context, id domain.RecordID, status models.ValidationStatus, issues []models.Issue) error {
	extra, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE staging_records SET status = $2, issues = issues || $3::jsonb WHERE id = $1`,
		id.String(), string(status), extra)
	if err != nil {
		return fmt.Errorf("update staging status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) SetApproval(ctx context.Context, id domain.RecordID, approved bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE staging_records SET approved = $2 WHERE id = $1`, id.String(), approved)
	if err != nil {
		return fmt.Errorf("set approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) SetCommittedID(ctx context.Context, id domain.RecordID, entityID domain.EntityID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE staging_records SET committed_id = $2 WHERE id = $1`,
		id.String(), entityID.String())
	if err != nil {
		return fmt.Errorf("set committed id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) MarkMerged(ctx context.Context, id domain.RecordID, masterEntityID domain.EntityID) error {
	var err error
	var tag pgconn.CommandTag
	if masterEntityID.IsNil() {
		tag, err = s.pool.Exec(ctx, `
			UPDATE staging_records SET status = $2, approved = FALSE WHERE id = $1`,
			id.String(), string(models.StatusSkipped))
	} else {
		tag, err = s.pool.Exec(ctx, `
			UPDATE staging_records SET status = $2, approved = FALSE, committed_id = $3 WHERE id = $1`,
			id.String(), string(models.StatusSkipped), masterEntityID.String())
	}
	if err != nil {
		return fmt.Errorf("mark merged: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// referenceFields maps a referenced kind to the payload fields that point at
// it, per referencing kind.
var referenceFields = map[domain.EntityKind]map[domain.EntityKind][]string{
	domain.KindPerson: {
		domain.KindRelation:  {"person_original_id"},
		domain.KindClaim:     {"claimant_original_id"},
		domain.KindHousehold: {"head_person_original_id"},
	},
	domain.KindPropertyUnit: {
		domain.KindRelation: {"unit_original_id"},
		domain.KindClaim:    {"unit_original_id"},
	},
	domain.KindRelation: {
		domain.KindEvidence: {"relation_original_id"},
	},
	domain.KindBuilding: {
		domain.KindPropertyUnit: {"building_original_id"},
	},
}

// RelinkReferences runs every payload rewrite inside one transaction so a
// partial relink can never be observed.
func (s *Postgres) RelinkReferences(ctx context.Context, pkgID domain.PackageID, kind domain.EntityKind, fromOriginalID, toOriginalID string) error {
	refs := referenceFields[kind]
	if len(refs) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for refKind, fields := range refs {
			for _, field := range fields {
				_, err := tx.Exec(ctx, fmt.Sprintf(`
					UPDATE staging_records
					SET payload = jsonb_set(payload, '{%s}', to_jsonb($3::text))
					WHERE package_id = $1 AND kind = $2 AND payload->>'%s' = $4`, field, field),
					pkgID.String(), refKind.String(), toOriginalID, fromOriginalID)
				if err != nil {
					return fmt.Errorf("relink %s.%s: %w", refKind, field, err)
				}
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanOne(ctx context.Context, query string, args ...any) (models.Record, error) {
	row := s.pool.QueryRow(ctx, query, args...)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return rec, err
}

func scanRecord(row rowScanner) (models.Record, error) {
	var (
		idStr, pkgStr, kindStr, originalID, status string
		approved                                   bool
		committedStr                               *string
		issuesRaw, payload                         []byte
	)
	if err := row.Scan(&idStr, &pkgStr, &kindStr, &originalID, &status, &approved, &committedStr, &issuesRaw, &payload); err != nil {
		return nil, err
	}

	kind, err := domain.ParseEntityKind(kindStr)
	if err != nil {
		return nil, err
	}
	rec, err := models.New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, rec); err != nil {
		return nil, fmt.Errorf("unmarshal staging payload: %w", err)
	}

	meta := rec.Meta()
	recordID, err := domain.ParseRecordID(idStr)
	if err != nil {
		return nil, err
	}
	packageID, err := domain.ParsePackageID(pkgStr)
	if err != nil {
		return nil, err
	}
	meta.ID = recordID
	meta.PackageID = packageID
	meta.Kind = kind
	meta.OriginalID = originalID
	meta.Status = models.ValidationStatus(status)
	meta.Approved = approved
	if committedStr != nil {
		entityID, err := domain.ParseEntityID(*committedStr)
		if err != nil {
			return nil, err
		}
		meta.CommittedID = entityID
	}
	if err := json.Unmarshal(issuesRaw, &meta.Issues); err != nil {
		return nil, fmt.Errorf("unmarshal staging issues: %w", err)
	}
	return rec, nil
}
