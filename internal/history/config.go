package history

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultWorkers is the number of fetch loops callers use when they have no
// better number.
const DefaultWorkers = 4

type boundKind int

const (
	boundNone boundKind = iota
	boundPage
	boundDate
)

// StartAt is where a download begins: either a page number or a date. The
// zero value starts at page 1.
type StartAt struct {
	kind boundKind
	page int
	date time.Time
}

// StartPage starts the download at page n.
func StartPage(n int) StartAt { return StartAt{kind: boundPage, page: n} }

// StartDate starts the download at the first record at or before t.
func StartDate(t time.Time) StartAt { return StartAt{kind: boundDate, date: t} }

// Page returns the start page and whether the start is page based.
func (s StartAt) Page() (int, bool) {
	switch s.kind {
	case boundNone:
		return 1, true
	case boundPage:
		return s.page, true
	}
	return 0, false
}

// Date returns the start date and whether the start is date based.
func (s StartAt) Date() (time.Time, bool) {
	return s.date, s.kind == boundDate
}

// StopAt is where a download ends: a page number (inclusive), a date
// (exclusive; records at or before it are not returned), or nothing. The zero
// value reads until the last page.
type StopAt struct {
	kind boundKind
	page int
	date time.Time
}

// StopPage stops after page n.
func StopPage(n int) StopAt { return StopAt{kind: boundPage, page: n} }

// StopDate stops at the first record at or before t.
func StopDate(t time.Time) StopAt { return StopAt{kind: boundDate, date: t} }

// Page returns the stop page and whether the stop is page based.
func (s StopAt) Page() (int, bool) {
	return s.page, s.kind == boundPage
}

// Date returns the stop date and whether the stop is date based.
func (s StopAt) Date() (time.Time, bool) {
	return s.date, s.kind == boundDate
}

// Config configures a Reader.
type Config struct {
	Start   StartAt
	Stop    StopAt
	Workers int

	Logger   zerolog.Logger
	Observer Observer // nil = no metrics
}

// Validate checks the configuration without touching the network.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: worker count must be greater than zero, got %d", ErrInvalidConfig, c.Workers)
	}

	startPage, startByPage := c.Start.Page()
	if startByPage && startPage <= 0 {
		return fmt.Errorf("%w: start page must be greater than zero, got %d", ErrInvalidConfig, startPage)
	}
	startDate, startByDate := c.Start.Date()
	if startByDate && startDate.IsZero() {
		return fmt.Errorf("%w: start date is not set", ErrInvalidConfig)
	}

	stopPage, stopByPage := c.Stop.Page()
	if stopByPage {
		if stopPage <= 0 {
			return fmt.Errorf("%w: stop page must be greater than zero, got %d", ErrInvalidConfig, stopPage)
		}
		if startByPage && stopPage < startPage {
			return fmt.Errorf("%w: stop page %d comes before start page %d", ErrInvalidConfig, stopPage, startPage)
		}
	}
	stopDate, stopByDate := c.Stop.Date()
	if stopByDate {
		if stopDate.IsZero() {
			return fmt.Errorf("%w: stop date is not set", ErrInvalidConfig)
		}
		if startByDate && !startDate.After(stopDate) {
			return fmt.Errorf("%w: stop date %s is not before start date %s",
				ErrInvalidConfig, stopDate.Format(time.RFC3339), startDate.Format(time.RFC3339))
		}
	}
	return nil
}
