package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/authoritative"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
)

// PropertyMatcher finds duplicate units by the exact composite key
// (building code, unit identifier). Buildings legitimately recur across
// packages and never raise conflicts themselves; only unit collisions do.
type PropertyMatcher struct {
	directory authoritative.PropertyDirectory
	logger    *slog.Logger
}

type PropertyOption func(*PropertyMatcher)

func WithPropertyLogger(logger *slog.Logger) PropertyOption {
	return func(m *PropertyMatcher) { m.logger = logger }
}

func NewPropertyMatcher(directory authoritative.PropertyDirectory, opts ...PropertyOption) *PropertyMatcher {
	m := &PropertyMatcher{directory: directory}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func stagedUnitRef(u *models.PropertyUnit, compositeKey string) EntityRef {
	return EntityRef{
		StagedID:   u.ID,
		OriginalID: u.OriginalID,
		Display:    compositeKey,
	}
}

func authoritativeUnitRef(u *authoritative.PropertyUnit) EntityRef {
	return EntityRef{
		EntityID: u.ID,
		Display:  u.BuildingCode + "/" + u.UnitIdentifier,
	}
}

// Match scores the staged units. buildings maps building original id to the
// staged building so each unit's composite key can be resolved within the
// package. Units whose building or identifier is missing are skipped;
// validation has already flagged them.
func (m *PropertyMatcher) Match(ctx context.Context, pkgID domain.PackageID, units []*models.PropertyUnit, buildings map[string]*models.Building) ([]Candidate, error) {
	results := newDedupe()

	type keyed struct {
		unit *models.PropertyUnit
		key  string
		code string
	}
	byKey := make(map[string][]keyed)
	var order []string
	for _, u := range units {
		b, ok := buildings[u.BuildingOriginalID]
		if !ok || b.Code == "" || u.UnitIdentifier == "" {
			continue
		}
		key := b.Code + "/" + u.UnitIdentifier
		if len(byKey[key]) == 0 {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], keyed{unit: u, key: key, code: b.Code})
	}

	for _, key := range order {
		group := byKey[key]

		// Within-batch: every pair sharing the composite key is a certain
		// duplicate.
		for x := 0; x < len(group); x++ {
			for y := x + 1; y < len(group); y++ {
				results.add(Candidate{
					Kind:            domain.KindPropertyUnit,
					PackageID:       pkgID,
					A:               stagedUnitRef(group[x].unit, key),
					B:               stagedUnitRef(group[y].unit, key),
					Score:           100,
					Confidence:      ConfidenceHigh,
					MatchedCriteria: []string{"composite_key"},
					Comparison:      map[string]any{"composite_key": key},
				})
			}
		}

		// Cross-batch: one lookup per distinct key covers the whole group.
		existing, err := m.directory.FindUnitByCompositeKey(ctx, group[0].code, group[0].unit.UnitIdentifier)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("composite key lookup %q: %w", key, err)
		}
		for _, k := range group {
			results.add(Candidate{
				Kind:            domain.KindPropertyUnit,
				PackageID:       pkgID,
				A:               stagedUnitRef(k.unit, key),
				B:               authoritativeUnitRef(existing),
				Score:           100,
				Confidence:      ConfidenceHigh,
				MatchedCriteria: []string{"composite_key"},
				Comparison:      map[string]any{"composite_key": key},
			})
		}
	}

	out := results.list()
	if m.logger != nil {
		m.logger.InfoContext(ctx, "property matching finished",
			"package_id", pkgID,
			"staged_units", len(units),
			"candidates", len(out),
		)
	}
	return out, nil
}
