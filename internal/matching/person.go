package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/authoritative"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
)

// Composite score weights. A national-id match alone is decisive; the other
// criteria have to stack up to clear the report threshold.
const (
	scoreNationalID = 100
	scorePhone      = 30
	maxNameScore    = 40
	scoreBirthYear  = 15
	scoreGender     = 15
)

// personFields is the comparable projection shared by staged and
// authoritative persons, pre-normalized once per record.
type personFields struct {
	nationalID string
	first      string
	father     string
	family     string
	phone      string
	birthYear  int
	gender     string
}

func stagedPersonFields(p *models.Person) personFields {
	return personFields{
		nationalID: strings.ToLower(strings.TrimSpace(p.NationalID)),
		first:      p.FirstName,
		father:     p.FatherName,
		family:     p.FamilyName,
		phone:      NormalizePhone(p.Phone),
		birthYear:  p.BirthYear,
		gender:     NormalizeGender(p.Gender),
	}
}

func authoritativePersonFields(p *authoritative.Person) personFields {
	return personFields{
		nationalID: strings.ToLower(strings.TrimSpace(p.NationalID)),
		first:      p.FirstName,
		father:     p.FatherName,
		family:     p.FamilyName,
		phone:      NormalizePhone(p.Phone),
		birthYear:  p.BirthYear,
		gender:     NormalizeGender(p.Gender),
	}
}

// scorePair computes the composite similarity of two persons. Symmetric in
// its arguments. The national-id short circuit is handled by the caller so
// the comparison detail can say which path fired.
func scorePair(a, b personFields) (int, []string, map[string]any) {
	score := 0
	var criteria []string
	comparison := make(map[string]any)

	if a.phone != "" && a.phone == b.phone {
		score += scorePhone
		criteria = append(criteria, "phone")
		comparison["phone"] = a.phone
	}

	if sim := nameSimilarity(a.first, a.father, a.family, b.first, b.father, b.family); sim > 0 {
		points := int(sim * maxNameScore)
		if points > 0 {
			score += points
			criteria = append(criteria, "name")
			comparison["name_similarity"] = fmt.Sprintf("%.2f", sim)
		}
	}

	if a.birthYear != 0 && a.birthYear == b.birthYear {
		score += scoreBirthYear
		criteria = append(criteria, "birth_year")
		comparison["birth_year"] = a.birthYear
	}

	if a.gender != "" && a.gender == b.gender {
		score += scoreGender
		criteria = append(criteria, "gender")
		comparison["gender"] = a.gender
	}

	if score > 100 {
		score = 100
	}
	return score, criteria, comparison
}

// PersonMatcher finds likely duplicate persons. It runs three phases:
// national-id exact match against the authoritative directory, composite
// scoring against name-prefix-filtered authoritative candidates, and
// pairwise composite scoring within the batch.
type PersonMatcher struct {
	directory         authoritative.PersonDirectory
	threshold         int
	highConfidence    int
	lookupConcurrency int
	logger            *slog.Logger
}

type PersonOption func(*PersonMatcher)

// WithThresholds overrides the report threshold and the High band floor.
func WithThresholds(report, high int) PersonOption {
	return func(m *PersonMatcher) {
		m.threshold = report
		m.highConfidence = high
	}
}

func WithPersonLogger(logger *slog.Logger) PersonOption {
	return func(m *PersonMatcher) { m.logger = logger }
}

func NewPersonMatcher(directory authoritative.PersonDirectory, opts ...PersonOption) *PersonMatcher {
	m := &PersonMatcher{
		directory:         directory,
		threshold:         DefaultThreshold,
		highConfidence:    DefaultHighConfidence,
		lookupConcurrency: 8,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func stagedPersonRef(p *models.Person) EntityRef {
	return EntityRef{
		StagedID:   p.ID,
		OriginalID: p.OriginalID,
		Display:    strings.TrimSpace(p.FirstName + " " + p.FamilyName),
	}
}

func authoritativePersonRef(p *authoritative.Person) EntityRef {
	return EntityRef{
		EntityID: p.ID,
		Display:  strings.TrimSpace(p.FirstName + " " + p.FamilyName),
	}
}

// Match scores the given staged persons and returns every candidate pair at
// or above the report threshold, deduplicated per unordered pair with the
// highest score kept. Callers pass only records eligible for detection.
func (m *PersonMatcher) Match(ctx context.Context, pkgID domain.PackageID, staged []*models.Person) ([]Candidate, error) {
	results := newDedupe()
	var mu sync.Mutex

	fields := make([]personFields, len(staged))
	for i, p := range staged {
		fields[i] = stagedPersonFields(p)
	}

	// Phase 1: national id against the authoritative directory. An exact
	// match is decisive and skips composite scoring for that person.
	idMatched := make(map[domain.RecordID]bool)
	for i, p := range staged {
		if fields[i].nationalID == "" {
			continue
		}
		existing, err := m.directory.FindByNationalID(ctx, p.NationalID)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("national id lookup: %w", err)
		}
		idMatched[p.ID] = true
		results.add(Candidate{
			Kind:            domain.KindPerson,
			PackageID:       pkgID,
			A:               stagedPersonRef(p),
			B:               authoritativePersonRef(existing),
			Score:           scoreNationalID,
			Confidence:      ConfidenceHigh,
			MatchedCriteria: []string{"national_id"},
			Comparison:      map[string]any{"national_id": fields[i].nationalID},
		})
	}

	// Phase 2: composite scoring against authoritative candidates sharing
	// the family-name prefix. Lookups are independent per staged person.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.lookupConcurrency)
	for i, p := range staged {
		if idMatched[p.ID] {
			continue
		}
		prefix := familyNamePrefix(p.FamilyName)
		if prefix == "" {
			// No prefilter signal; an unbounded directory scan is not
			// worth the odd hit, and the name criterion could not score
			// anyway.
			continue
		}
		g.Go(func() error {
			candidates, err := m.directory.SearchByNamePrefix(gctx, prefix)
			if err != nil {
				return fmt.Errorf("name prefix search %q: %w", prefix, err)
			}
			for _, existing := range candidates {
				score, criteria, comparison := scorePair(fields[i], authoritativePersonFields(existing))
				if score < m.threshold {
					continue
				}
				mu.Lock()
				results.add(Candidate{
					Kind:            domain.KindPerson,
					PackageID:       pkgID,
					A:               stagedPersonRef(p),
					B:               authoritativePersonRef(existing),
					Score:           score,
					Confidence:      BandConfidence(score, m.highConfidence),
					MatchedCriteria: criteria,
					Comparison:      comparison,
				})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Phase 3: pairwise within the batch, bucketed by family-name prefix so
	// the comparison stays near-linear on real packages.
	buckets := make(map[string][]int)
	for i, p := range staged {
		prefix := familyNamePrefix(p.FamilyName)
		buckets[prefix] = append(buckets[prefix], i)
	}
	for _, idxs := range buckets {
		for x := 0; x < len(idxs); x++ {
			for y := x + 1; y < len(idxs); y++ {
				a, b := staged[idxs[x]], staged[idxs[y]]
				fa, fb := fields[idxs[x]], fields[idxs[y]]

				if fa.nationalID != "" && fa.nationalID == fb.nationalID {
					results.add(Candidate{
						Kind:            domain.KindPerson,
						PackageID:       pkgID,
						A:               stagedPersonRef(a),
						B:               stagedPersonRef(b),
						Score:           scoreNationalID,
						Confidence:      ConfidenceHigh,
						MatchedCriteria: []string{"national_id"},
						Comparison:      map[string]any{"national_id": fa.nationalID},
					})
					continue
				}

				score, criteria, comparison := scorePair(fa, fb)
				if score < m.threshold {
					continue
				}
				results.add(Candidate{
					Kind:            domain.KindPerson,
					PackageID:       pkgID,
					A:               stagedPersonRef(a),
					B:               stagedPersonRef(b),
					Score:           score,
					Confidence:      BandConfidence(score, m.highConfidence),
					MatchedCriteria: criteria,
					Comparison:      comparison,
				})
			}
		}
	}

	out := results.list()
	if m.logger != nil {
		m.logger.InfoContext(ctx, "person matching finished",
			"package_id", pkgID,
			"staged", len(staged),
			"candidates", len(out),
		)
	}
	return out, nil
}
