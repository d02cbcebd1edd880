// Package matching produces scored duplicate candidates for staged persons
// and property units, both within a batch and against the authoritative
// store. Candidates are ephemeral; the conflict engine persists the ones
// worth reviewing.
package matching

import (
	"sort"
	"strings"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

// Confidence bands a similarity score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// DefaultThreshold is the minimum score a pair must reach to be reported.
const DefaultThreshold = 70

// DefaultHighConfidence splits Medium from High.
const DefaultHighConfidence = 90

// BandConfidence maps a score into its confidence band. Callers only see
// scores at or above the report threshold.
func BandConfidence(score, highConfidence int) Confidence {
	if score >= highConfidence {
		return ConfidenceHigh
	}
	return ConfidenceMedium
}

// EntityRef points at one side of a candidate pair: a staged record, an
// authoritative entity, or (after commit) both.
type EntityRef struct {
	StagedID   domain.RecordID `json:"staged_id,omitempty"`
	EntityID   domain.EntityID `json:"entity_id,omitempty"`
	OriginalID string          `json:"original_id,omitempty"`
	Display    string          `json:"display,omitempty"`
}

// Key returns the stable identifier used for pair deduplication.
func (r EntityRef) Key() string {
	if !r.StagedID.IsNil() {
		return "staged:" + r.StagedID.String()
	}
	return "entity:" + r.EntityID.String()
}

// Candidate is one scored pair. score(A,B) = score(B,A) by construction:
// every criterion compares symmetric fields.
type Candidate struct {
	Kind            domain.EntityKind
	PackageID       domain.PackageID
	A, B            EntityRef
	Score           int
	Confidence      Confidence
	MatchedCriteria []string
	Comparison      map[string]any
}

// PairKey is order-independent: the same two entities always produce the
// same key no matter which side found them first.
func (c Candidate) PairKey() string {
	keys := []string{c.A.Key(), c.B.Key()}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

// dedupe keeps the highest-scoring candidate per unordered pair.
type dedupe struct {
	best map[string]Candidate
}

func newDedupe() *dedupe {
	return &dedupe{best: make(map[string]Candidate)}
}

func (d *dedupe) add(c Candidate) {
	key := c.PairKey()
	if existing, ok := d.best[key]; ok && existing.Score >= c.Score {
		return
	}
	d.best[key] = c
}

func (d *dedupe) list() []Candidate {
	out := make([]Candidate, 0, len(d.best))
	for _, c := range d.best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PairKey() < out[j].PairKey()
	})
	return out
}
