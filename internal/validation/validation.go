// Package validation runs the ordered validator sequence over a staged
// package. Validators are pure over the batch they are given: they report
// structured issues and never fail on bad data. Only structural problems
// (an unreadable batch) surface as errors.
package validation

import (
	"context"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

// Input is one package's staged records plus the metadata validators need.
type Input struct {
	PackageID       domain.PackageID
	DeclaredVersion domain.CodeListVersion
	Records         map[domain.EntityKind][]models.Record
}

// ByOriginalID indexes one kind's records by source-device id, the key used
// for cross-entity reference checks within a package.
func (in *Input) ByOriginalID(kind domain.EntityKind) map[string]models.Record {
	recs := in.Records[kind]
	idx := make(map[string]models.Record, len(recs))
	for _, r := range recs {
		idx[r.Meta().OriginalID] = r
	}
	return idx
}

// Finding attaches one issue to one record.
type Finding struct {
	RecordID domain.RecordID
	Issue    models.Issue
}

// Result is one validator's output over a batch.
type Result struct {
	Findings []Finding
	// Quarantine invalidates the whole package regardless of per-record
	// findings. Only the vocabulary-version validator sets it.
	Quarantine       bool
	QuarantineReason string
	// Notes are package-level advisories not tied to any record.
	Notes []string
}

func (r *Result) add(id domain.RecordID, validator, field, message string, severity models.Severity) {
	r.Findings = append(r.Findings, Finding{
		RecordID: id,
		Issue: models.Issue{
			Validator: validator,
			Field:     field,
			Message:   message,
			Severity:  severity,
		},
	})
}

// Validator inspects staged records and reports issues. Implementations
// must be side-effect-free over the input batch.
type Validator interface {
	Name() string
	Validate(ctx context.Context, in *Input) (*Result, error)
}
