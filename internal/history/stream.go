package history

import (
	"context"
	"io"

	"github.com/emcshop-dev/emcshop/internal/id"
	"github.com/emcshop-dev/emcshop/internal/model"
)

// Next returns the next record, newest first. It returns io.EOF at the end of
// the history or when a stop condition is reached, and the download error if
// a page could not be fetched. Once Next has returned an error it keeps
// returning it.
//
// Records newer than the start date are skipped. A record identical to one
// already returned for the same day is skipped; this happens when new
// transactions push records onto the next page mid-download.
//
// If ctx is done while Next is waiting for a page, the reader is closed and
// Next returns io.EOF.
func (r *Reader) Next(ctx context.Context) (model.Record, error) {
	if r.end != nil {
		return model.Record{}, r.end
	}
	if r.closed.Load() {
		return model.Record{}, r.stop(io.EOF)
	}

	for {
		for r.page == nil || r.idx >= len(r.page.Records) {
			p, err := r.pop(ctx)
			if err != nil {
				r.log.Info().Err(err).Msg("download interrupted")
				_ = r.Close()
				return model.Record{}, r.stop(r.recorded())
			}
			if p == nil {
				return model.Record{}, r.stop(r.recorded())
			}
			r.page, r.idx = p, 0
		}

		rec := r.page.Records[r.idx]
		r.idx++

		if !r.startDate.IsZero() && rec.Time.After(r.startDate) {
			continue
		}
		if !r.stopDate.IsZero() && !rec.Time.After(r.stopDate) {
			return model.Record{}, r.stop(io.EOF)
		}
		if !r.markSeen(rec) {
			r.duplicates.Add(1)
			r.observer.Duplicate()
			r.log.Debug().Time("ts", rec.Time).Str("description", rec.Description).Msg("skipping duplicate record")
			continue
		}

		r.records.Add(1)
		return rec, nil
	}
}

func (r *Reader) stop(err error) error {
	r.end = err
	r.page = nil
	return err
}

// recorded returns the download error, or io.EOF if there was none.
func (r *Reader) recorded() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	return io.EOF
}

// markSeen adds rec to the set of returned records and reports whether it was
// new.
func (r *Reader) markSeen(rec model.Record) bool {
	day := id.Day(rec.Time).Unix()
	fp := id.Fingerprint(rec)

	prints, ok := r.seen[day]
	if !ok {
		prints = make(map[uint64]struct{})
		r.seen[day] = prints
	}
	if _, dup := prints[fp]; dup {
		return false
	}
	prints[fp] = struct{}{}
	return true
}
