package id

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/emcshop-dev/emcshop/internal/model"
)

// Fingerprint returns a content hash of a record. Two records with the same
// timestamp, amounts, description and detail have the same fingerprint.
func Fingerprint(r model.Record) uint64 {
	d := xxhash.New()
	write := func(fields ...string) {
		for _, f := range fields {
			_, _ = d.WriteString(f)
			_, _ = d.Write([]byte{0})
		}
	}

	write(
		strconv.FormatInt(r.Time.UnixNano(), 10),
		strconv.Itoa(r.Amount),
		strconv.Itoa(r.Balance),
		r.Description,
		string(r.Kind()),
	)

	switch det := r.Detail.(type) {
	case model.ShopTrade:
		write(det.Customer, det.Owner, det.Item, strconv.Itoa(det.Quantity))
	case model.Payment:
		write(det.Player, det.Reason)
	case model.BonusFee:
		write(string(det.Tag), det.Note)
	}
	return d.Sum64()
}

// FormatFingerprint returns the 16-character hex form of a fingerprint.
func FormatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

// ParseFingerprint parses the output of FormatFingerprint.
func ParseFingerprint(s string) (uint64, error) {
	if len(s) != 16 {
		return 0, fmt.Errorf("invalid fingerprint %q: expected 16 hex digits", s)
	}
	fp, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return fp, nil
}

// Day truncates t to midnight of its calendar day, in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
