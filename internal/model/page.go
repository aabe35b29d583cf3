package model

import "time"

// Page is one page of the rupee transaction history. Page 1 holds the most
// recent transactions. Records are ordered newest first.
type Page struct {
	Number     int
	TotalPages int  // 0 if the source did not report it
	Balance    *int // nil if the source did not report it
	Records    []Record
}

// Newest returns the time of the first (most recent) record on the page, or
// the zero time if the page is empty.
func (p *Page) Newest() time.Time {
	if len(p.Records) == 0 {
		return time.Time{}
	}
	return p.Records[0].Time
}

// Oldest returns the time of the last (oldest) record on the page, or the
// zero time if the page is empty.
func (p *Page) Oldest() time.Time {
	if len(p.Records) == 0 {
		return time.Time{}
	}
	return p.Records[len(p.Records)-1].Time
}

// Empty reports whether the page carries no records.
func (p *Page) Empty() bool {
	return len(p.Records) == 0
}
