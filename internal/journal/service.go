package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/emcshop-dev/emcshop/internal/id"
	"github.com/emcshop-dev/emcshop/internal/model"
)

const fileName = "history.csv"

// Service stores downloaded transactions as one CSV file per month.
type Service struct {
	root string
}

// NewService creates a journal Service rooted at dir.
func NewService(dir string) *Service {
	return &Service{root: dir}
}

// Month identifies one month file.
type Month struct {
	Year  int
	Month time.Month
}

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

func monthOf(t time.Time) Month { return Month{Year: t.Year(), Month: t.Month()} }

// Append stores records, skipping any already stored, and returns the number
// of records added. Each month file is kept newest first.
func (s *Service) Append(records []model.Record) (int, error) {
	byMonth := make(map[Month][]model.Record)
	var order []Month
	for _, rec := range records {
		m := monthOf(rec.Time)
		if _, ok := byMonth[m]; !ok {
			order = append(order, m)
		}
		byMonth[m] = append(byMonth[m], rec)
	}

	added := 0
	for _, m := range order {
		n, err := s.appendMonth(m, byMonth[m])
		if err != nil {
			return added, err
		}
		added += n
	}
	return added, nil
}

func (s *Service) appendMonth(m Month, records []model.Record) (int, error) {
	existing, err := s.ReadMonth(m.Year, m.Month)
	if err != nil {
		return 0, err
	}

	seen := make(map[uint64]struct{}, len(existing)+len(records))
	for _, rec := range existing {
		seen[id.Fingerprint(rec)] = struct{}{}
	}

	merged := existing
	added := 0
	for _, rec := range records {
		fp := id.Fingerprint(rec)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		merged = append(merged, rec)
		added++
	}
	if added == 0 {
		return 0, nil
	}

	slices.SortStableFunc(merged, func(a, b model.Record) int {
		return b.Time.Compare(a.Time)
	})

	if err := s.writeMonth(m, merged); err != nil {
		return 0, err
	}
	return added, nil
}

// writeMonth replaces a month file through a temp file and rename.
func (s *Service) writeMonth(m Month, records []model.Record) error {
	path := s.monthPath(m.Year, m.Month)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, fileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteRecords(tmp, records); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", m, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// ReadMonth reads all records for a given year/month, newest first.
func (s *Service) ReadMonth(year int, month time.Month) ([]model.Record, error) {
	path := s.monthPath(year, month)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening history %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("reading history %s: %w", path, err)
	}
	return records, nil
}

// Months returns the months that have a history file, oldest first.
func (s *Service) Months() ([]Month, error) {
	years, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history dir: %w", err)
	}

	var months []Month
	for _, y := range years {
		year, err := strconv.Atoi(y.Name())
		if !y.IsDir() || err != nil || len(y.Name()) != 4 {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.root, y.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", y.Name(), err)
		}
		for _, e := range entries {
			month, err := strconv.Atoi(e.Name())
			if !e.IsDir() || err != nil || month < 1 || month > 12 {
				continue
			}
			if _, err := os.Stat(s.monthPath(year, time.Month(month))); err != nil {
				continue
			}
			months = append(months, Month{Year: year, Month: time.Month(month)})
		}
	}

	slices.SortFunc(months, func(a, b Month) int {
		if a.Year != b.Year {
			return a.Year - b.Year
		}
		return int(a.Month) - int(b.Month)
	})
	return months, nil
}

// ReadAll reads every stored record, newest first.
func (s *Service) ReadAll() ([]model.Record, error) {
	months, err := s.Months()
	if err != nil {
		return nil, err
	}

	var all []model.Record
	for i := len(months) - 1; i >= 0; i-- {
		recs, err := s.ReadMonth(months[i].Year, months[i].Month)
		if err != nil {
			return nil, err
		}
		all = append(all, recs...)
	}
	return all, nil
}

// Newest returns the most recent stored record. The second result is false if
// nothing is stored.
func (s *Service) Newest() (model.Record, bool, error) {
	months, err := s.Months()
	if err != nil {
		return model.Record{}, false, err
	}
	for i := len(months) - 1; i >= 0; i-- {
		recs, err := s.ReadMonth(months[i].Year, months[i].Month)
		if err != nil {
			return model.Record{}, false, err
		}
		if len(recs) > 0 {
			return recs[0], true, nil
		}
	}
	return model.Record{}, false, nil
}

func (s *Service) monthPath(year int, month time.Month) string {
	return filepath.Join(s.root, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", int(month)), fileName)
}
