package authoritative

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
)

// Schema creates the authoritative tables this service touches. The real
// authoritative schema is owned by the registry system; this subset exists
// for integration tests and standalone deployments.
const Schema = `
CREATE TABLE IF NOT EXISTS persons (
    id          UUID PRIMARY KEY,
    national_id TEXT,
    first_name  TEXT NOT NULL DEFAULT '',
    father_name TEXT NOT NULL DEFAULT '',
    family_name TEXT NOT NULL DEFAULT '',
    phone       TEXT NOT NULL DEFAULT '',
    birth_year  INT NOT NULL DEFAULT 0,
    gender      TEXT NOT NULL DEFAULT '',
    active      BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS persons_national_id_idx ON persons (LOWER(national_id));
CREATE INDEX IF NOT EXISTS persons_family_name_idx ON persons (LOWER(family_name) text_pattern_ops);

CREATE TABLE IF NOT EXISTS buildings (
    id      UUID PRIMARY KEY,
    code    TEXT NOT NULL UNIQUE,
    address TEXT NOT NULL DEFAULT '',
    active  BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS property_units (
    id              UUID PRIMARY KEY,
    building_id     UUID,
    building_code   TEXT NOT NULL,
    unit_identifier TEXT NOT NULL,
    floor           INT NOT NULL DEFAULT 0,
    use_kind        TEXT NOT NULL DEFAULT '',
    active          BOOLEAN NOT NULL DEFAULT TRUE,
    UNIQUE (building_code, unit_identifier)
);

CREATE TABLE IF NOT EXISTS households (
    id           UUID PRIMARY KEY,
    head_id      UUID NOT NULL,
    member_count INT NOT NULL DEFAULT 0,
    active       BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS relations (
    id                UUID PRIMARY KEY,
    person_id         UUID NOT NULL,
    unit_id           UUID NOT NULL,
    relation_type     TEXT NOT NULL DEFAULT '',
    share_numerator   INT NOT NULL DEFAULT 1,
    share_denominator INT NOT NULL DEFAULT 1,
    active            BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS evidence (
    id          UUID PRIMARY KEY,
    relation_id UUID NOT NULL,
    kind        TEXT NOT NULL DEFAULT '',
    issued_date TIMESTAMPTZ,
    active      BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS claims (
    id          UUID PRIMARY KEY,
    claimant_id UUID NOT NULL,
    unit_id     UUID NOT NULL,
    status      TEXT NOT NULL DEFAULT '',
    filed_date  TIMESTAMPTZ,
    active      BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS surveys (
    id          UUID PRIMARY KEY,
    surveyor    TEXT NOT NULL DEFAULT '',
    survey_date TIMESTAMPTZ,
    device_id   TEXT NOT NULL DEFAULT ''
);
`

// Postgres is the production authoritative store adapter.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) FindByNationalID(ctx context.Context, nationalID string) (*Person, error) {
	if nationalID == "" {
		return nil, sentinel.ErrNotFound
	}
	return s.scanPerson(ctx, `
		SELECT id, COALESCE(national_id, ''), first_name, father_name, family_name, phone, birth_year, gender, active
		FROM persons WHERE LOWER(national_id) = LOWER($1) AND active LIMIT 1`, nationalID)
}

func (s *Postgres) SearchByNamePrefix(ctx context.Context, prefix string) ([]*Person, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(national_id, ''), first_name, father_name, family_name, phone, birth_year, gender, active
		FROM persons WHERE LOWER(family_name) LIKE LOWER($1) || '%' AND active`, prefix)
	if err != nil {
		return nil, fmt.Errorf("search persons by prefix: %w", err)
	}
	defer rows.Close()

	var out []*Person
	for rows.Next() {
		p, err := scanPersonRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) GetPerson(ctx context.Context, id domain.EntityID) (*Person, error) {
	return s.scanPerson(ctx, `
		SELECT id, COALESCE(national_id, ''), first_name, father_name, family_name, phone, birth_year, gender, active
		FROM persons WHERE id = $1`, id.String())
}

func (s *Postgres) FindUnitByCompositeKey(ctx context.Context, buildingCode, unitIdentifier string) (*PropertyUnit, error) {
	return s.scanUnit(ctx, `
		SELECT id, COALESCE(building_id, '00000000-0000-0000-0000-000000000000'), building_code, unit_identifier, floor, use_kind, active
		FROM property_units WHERE building_code = $1 AND unit_identifier = $2 AND active LIMIT 1`,
		buildingCode, unitIdentifier)
}

func (s *Postgres) GetUnit(ctx context.Context, id domain.EntityID) (*PropertyUnit, error) {
	return s.scanUnit(ctx, `
		SELECT id, COALESCE(building_id, '00000000-0000-0000-0000-000000000000'), building_code, unit_identifier, floor, use_kind, active
		FROM property_units WHERE id = $1`, id.String())
}

func (s *Postgres) UpsertBuilding(ctx context.Context, b Building) (domain.EntityID, error) {
	id := domain.NewEntityID()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO buildings (id, code, address, active) VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (code) DO UPDATE SET address = EXCLUDED.address, active = TRUE
		RETURNING id`, id.String(), b.Code, b.Address)
	return scanEntityID(row)
}

func (s *Postgres) UpsertUnit(ctx context.Context, u PropertyUnit) (domain.EntityID, error) {
	id := domain.NewEntityID()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO property_units (id, building_id, building_code, unit_identifier, floor, use_kind, active)
		VALUES ($1, NULLIF($2, '00000000-0000-0000-0000-000000000000')::uuid, $3, $4, $5, $6, TRUE)
		ON CONFLICT (building_code, unit_identifier)
		DO UPDATE SET floor = EXCLUDED.floor, use_kind = EXCLUDED.use_kind, active = TRUE
		RETURNING id`, id.String(), u.BuildingID.String(), u.BuildingCode, u.UnitIdentifier, u.Floor, u.Use)
	return scanEntityID(row)
}

func (s *Postgres) UpsertPerson(ctx context.Context, p Person) (domain.EntityID, error) {
	if p.NationalID != "" {
		existing, err := s.FindByNationalID(ctx, p.NationalID)
		if err == nil {
			_, err = s.pool.Exec(ctx, `
				UPDATE persons SET first_name = $2, father_name = $3, family_name = $4,
					phone = $5, birth_year = $6, gender = $7, active = TRUE
				WHERE id = $1`,
				existing.ID.String(), p.FirstName, p.FatherName, p.FamilyName, p.Phone, p.BirthYear, p.Gender)
			if err != nil {
				return domain.EntityID{}, fmt.Errorf("update person: %w", err)
			}
			return existing.ID, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return domain.EntityID{}, err
		}
	}

	id := domain.NewEntityID()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO persons (id, national_id, first_name, father_name, family_name, phone, birth_year, gender, active)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, TRUE)`,
		id.String(), p.NationalID, p.FirstName, p.FatherName, p.FamilyName, p.Phone, p.BirthYear, p.Gender)
	if err != nil {
		return domain.EntityID{}, fmt.Errorf("insert person: %w", err)
	}
	return id, nil
}

func (s *Postgres) CreateHousehold(ctx context.Context, h Household) (domain.EntityID, error) {
	id := domain.NewEntityID()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO households (id, head_id, member_count, active) VALUES ($1, $2, $3, TRUE)`,
		id.String(), h.HeadID.String(), h.MemberCount)
	if err != nil {
		return domain.EntityID{}, fmt.Errorf("insert household: %w", err)
	}
	return id, nil
}

func (s *Postgres) CreateRelation(ctx context.Context, r Relation) (domain.EntityID, error) {
	id := domain.NewEntityID()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO relations (id, person_id, unit_id, relation_type, share_numerator, share_denominator, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)`,
		id.String(), r.PersonID.String(), r.UnitID.String(), r.RelationType, r.ShareNumerator, r.ShareDenominator)
	if err != nil {
		return domain.EntityID{}, fmt.Errorf("insert relation: %w", err)
	}
	return id, nil
}

func (s *Postgres) CreateEvidence(ctx context.Context, e Evidence) (domain.EntityID, error) {
	id := domain.NewEntityID()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO evidence (id, relation_id, kind, issued_date, active) VALUES ($1, $2, $3, $4, TRUE)`,
		id.String(), e.RelationID.String(), e.Kind, e.IssuedDate)
	if err != nil {
		return domain.EntityID{}, fmt.Errorf("insert evidence: %w", err)
	}
	return id, nil
}

func (s *Postgres) CreateClaim(ctx context.Context, c Claim) (domain.EntityID, error) {
	id := domain.NewEntityID()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO claims (id, claimant_id, unit_id, status, filed_date, active) VALUES ($1, $2, $3, $4, $5, TRUE)`,
		id.String(), c.ClaimantID.String(), c.UnitID.String(), c.Status, c.FiledDate)
	if err != nil {
		return domain.EntityID{}, fmt.Errorf("insert claim: %w", err)
	}
	return id, nil
}

func (s *Postgres) CreateSurvey(ctx context.Context, sv Survey) (domain.EntityID, error) {
	id := domain.NewEntityID()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO surveys (id, surveyor, survey_date, device_id) VALUES ($1, $2, $3, $4)`,
		id.String(), sv.Surveyor, sv.SurveyDate, sv.DeviceID)
	if err != nil {
		return domain.EntityID{}, fmt.Errorf("insert survey: %w", err)
	}
	return id, nil
}

// MergePersons relinks every table referencing the discarded person inside
// one transaction. Spec: partial relinking is not an acceptable state.
func (s *Postgres) MergePersons(ctx context.Context, masterID, discardedID domain.EntityID) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var active bool
		err := tx.QueryRow(ctx, `SELECT active FROM persons WHERE id = $1 FOR UPDATE`, discardedID.String()).Scan(&active)
		if errors.Is(err, pgx.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock discarded person: %w", err)
		}
		if !active {
			return sentinel.ErrInvalidState
		}

		steps := []struct {
			name  string
			query string
		}{
			{"relations", `UPDATE relations SET person_id = $1 WHERE person_id = $2`},
			{"claims", `UPDATE claims SET claimant_id = $1 WHERE claimant_id = $2`},
			{"households", `UPDATE households SET head_id = $1 WHERE head_id = $2`},
		}
		for _, step := range steps {
			if _, err := tx.Exec(ctx, step.query, masterID.String(), discardedID.String()); err != nil {
				return fmt.Errorf("relink %s: %w", step.name, err)
			}
		}
		if _, err := tx.Exec(ctx, `UPDATE persons SET active = FALSE WHERE id = $1`, discardedID.String()); err != nil {
			return fmt.Errorf("deactivate person: %w", err)
		}
		return nil
	})
}

func (s *Postgres) MergeUnits(ctx context.Context, masterID, discardedID domain.EntityID) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var active bool
		err := tx.QueryRow(ctx, `SELECT active FROM property_units WHERE id = $1 FOR UPDATE`, discardedID.String()).Scan(&active)
		if errors.Is(err, pgx.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock discarded unit: %w", err)
		}
		if !active {
			return sentinel.ErrInvalidState
		}

		if _, err := tx.Exec(ctx, `UPDATE relations SET unit_id = $1 WHERE unit_id = $2`,
			masterID.String(), discardedID.String()); err != nil {
			return fmt.Errorf("relink relations: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE claims SET unit_id = $1 WHERE unit_id = $2`,
			masterID.String(), discardedID.String()); err != nil {
			return fmt.Errorf("relink claims: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE property_units SET active = FALSE WHERE id = $1`, discardedID.String()); err != nil {
			return fmt.Errorf("deactivate unit: %w", err)
		}
		return nil
	})
}

func (s *Postgres) scanPerson(ctx context.Context, query string, args ...any) (*Person, error) {
	p, err := scanPersonRow(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return p, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPersonRow(row rowScanner) (*Person, error) {
	var p Person
	var idStr string
	if err := row.Scan(&idStr, &p.NationalID, &p.FirstName, &p.FatherName, &p.FamilyName, &p.Phone, &p.BirthYear, &p.Gender, &p.Active); err != nil {
		return nil, err
	}
	id, err := domain.ParseEntityID(idStr)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

func (s *Postgres) scanUnit(ctx context.Context, query string, args ...any) (*PropertyUnit, error) {
	var u PropertyUnit
	var idStr, buildingStr string
	err := s.pool.QueryRow(ctx, query, args...).Scan(&idStr, &buildingStr, &u.BuildingCode, &u.UnitIdentifier, &u.Floor, &u.Use, &u.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	id, err := domain.ParseEntityID(idStr)
	if err != nil {
		return nil, err
	}
	u.ID = id
	if buildingID, err := domain.ParseEntityID(buildingStr); err == nil {
		u.BuildingID = buildingID
	}
	return &u, nil
}

func scanEntityID(row rowScanner) (domain.EntityID, error) {
	var idStr string
	if err := row.Scan(&idStr); err != nil {
		return domain.EntityID{}, err
	}
	return domain.ParseEntityID(idStr)
}
