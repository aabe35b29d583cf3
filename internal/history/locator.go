package history

import (
	"context"
	"fmt"
	"time"

	"github.com/emcshop-dev/emcshop/internal/model"
)

// locateStartPage finds the page holding the newest record at or before date.
// Page 1 has already been fetched, so only pages 2..TotalPages are probed,
// halving the candidate range each time. If date falls between two pages the
// older one is returned. It returns the page number and the number of pages
// it fetched.
func locateStartPage(ctx context.Context, src PageSource, conn Conn, date time.Time, first *model.Page) (int, int, error) {
	if first.Empty() || !date.Before(first.Oldest()) {
		return 1, 0, nil
	}

	total := first.TotalPages
	if total <= 1 {
		return 1, 0, nil
	}

	lo, hi := 2, total
	probes := 0
	for lo <= hi {
		mid := lo + (hi-lo)/2
		page, err := src.Page(ctx, mid, conn)
		if err != nil {
			return 0, probes, fmt.Errorf("probing page %d: %w", mid, err)
		}
		probes++

		switch {
		case date.After(page.Newest()):
			hi = mid - 1
		case date.Before(page.Oldest()):
			lo = mid + 1
		default:
			return mid, probes, nil
		}
	}

	return min(lo, total), probes, nil
}
