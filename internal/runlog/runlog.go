// Package runlog keeps a CSV record of every download run.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of a run.
type Status string

const (
	StatusOK          Status = "ok"
	StatusInterrupted Status = "interrupted"
	StatusFailed      Status = "failed"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp  time.Time
	RunID      uuid.UUID
	StartPage  int
	Pages      int
	Records    int
	Duplicates int
	Balance    *int      // nil if no page reported one
	Newest     time.Time // newest record read; zero if none
	Status     Status
	Error      string
}

// Header is the CSV header for download-log.csv.
const Header = "timestamp,run_id,start_page,pages,records,duplicates,balance,newest,status,error"

const (
	numFields     = 10
	FileName      = "download-log.csv"
	colTimestamp  = 0
	colRunID      = 1
	colStartPage  = 2
	colPages      = 3
	colRecords    = 4
	colDuplicates = 5
	colBalance    = 6
	colNewest     = 7
	colStatus     = 8
	colError      = 9
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID.String()
	row[colStartPage] = strconv.Itoa(e.StartPage)
	row[colPages] = strconv.Itoa(e.Pages)
	row[colRecords] = strconv.Itoa(e.Records)
	row[colDuplicates] = strconv.Itoa(e.Duplicates)
	if e.Balance != nil {
		row[colBalance] = strconv.Itoa(*e.Balance)
	}
	if !e.Newest.IsZero() {
		row[colNewest] = e.Newest.Format(time.RFC3339Nano)
	}
	row[colStatus] = string(e.Status)
	row[colError] = e.Error
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	runID, err := uuid.Parse(record[colRunID])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing run_id %q: %w", record[colRunID], err)
	}

	ints := make(map[int]int, 4)
	for _, col := range []int{colStartPage, colPages, colRecords, colDuplicates} {
		n, err := strconv.Atoi(record[col])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing column %d %q: %w", col+1, record[col], err)
		}
		ints[col] = n
	}

	e := Entry{
		Timestamp:  ts,
		RunID:      runID,
		StartPage:  ints[colStartPage],
		Pages:      ints[colPages],
		Records:    ints[colRecords],
		Duplicates: ints[colDuplicates],
		Status:     Status(record[colStatus]),
		Error:      record[colError],
	}

	if record[colBalance] != "" {
		b, err := strconv.Atoi(record[colBalance])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing balance %q: %w", record[colBalance], err)
		}
		e.Balance = &b
	}
	if record[colNewest] != "" {
		e.Newest, err = time.Parse(time.RFC3339Nano, record[colNewest])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing newest %q: %w", record[colNewest], err)
		}
	}
	return e, nil
}

// Append writes entries to <dir>/download-log.csv, creating the file and header if needed.
func Append(dir string, entries []Entry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	path := filepath.Join(dir, FileName)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <dir>/download-log.csv, oldest first.
// Returns an empty slice if the file does not exist.
func Read(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

// Last returns the most recent successful run. The second result is false if
// there is none.
func Last(dir string) (Entry, bool, error) {
	entries, err := Read(dir)
	if err != nil {
		return Entry{}, false, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Status == StatusOK {
			return entries[i], true, nil
		}
	}
	return Entry{}, false, nil
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
