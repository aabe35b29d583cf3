package journal

import (
	"fmt"
	"time"

	"github.com/emcshop-dev/emcshop/internal/id"
	"github.com/emcshop-dev/emcshop/internal/model"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant   int
	Fingerprint string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [%s]: %s", e.Invariant, e.Fingerprint, e.Description)
}

// ValidateRecords enforces 3 invariants on records stored newest first.
func ValidateRecords(records []model.Record) []ValidationError {
	var errs []ValidationError

	seen := make(map[uint64]bool, len(records))
	for i, rec := range records {
		fp := id.Fingerprint(rec)
		fpStr := id.FormatFingerprint(fp)

		if i > 0 {
			newer := records[i-1]

			// Invariant 1: Timestamps never increase.
			if rec.Time.After(newer.Time) {
				errs = append(errs, ValidationError{
					Invariant:   1,
					Fingerprint: fpStr,
					Description: fmt.Sprintf("%s is newer than the record before it (%s)",
						rec.Time.Format(time.RFC3339), newer.Time.Format(time.RFC3339)),
				})
			}

			// Invariant 2: Each balance follows from the one before it.
			if newer.Balance != rec.Balance+newer.Amount {
				errs = append(errs, ValidationError{
					Invariant:   2,
					Fingerprint: id.FormatFingerprint(id.Fingerprint(newer)),
					Description: fmt.Sprintf("balance %d != %d %+d", newer.Balance, rec.Balance, newer.Amount),
				})
			}
		}

		// Invariant 3: No record appears twice.
		if seen[fp] {
			errs = append(errs, ValidationError{
				Invariant:   3,
				Fingerprint: fpStr,
				Description: "duplicate record",
			})
		}
		seen[fp] = true
	}

	return errs
}
