package history

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateStartPage_FindsBracketingPage(t *testing.T) {
	for _, total := range []int{2, 3, 5, 16, 17, 31, 100} {
		const perPage = 10
		pages := makeHistory(total, perPage)
		maxProbes := int(math.Ceil(math.Log2(float64(total))))

		for want := 1; want <= total; want++ {
			t.Run(fmt.Sprintf("%d/%d", want, total), func(t *testing.T) {
				src := newFakeSource(pages)
				// Middle record of the target page.
				date := pages[want-1].Records[perPage/2].Time

				got, probes, err := locateStartPage(context.Background(), src, nil, date, pages[0])
				require.NoError(t, err)
				assert.Equal(t, want, got)
				assert.LessOrEqual(t, probes, maxProbes)
			})
		}
	}
}

func TestLocateStartPage_DateBetweenPages(t *testing.T) {
	pages := makeHistory(8, 10)
	// Page 3 ends at record 51, page 4 starts at record 50.
	date := at(50).Add(30 * time.Second)

	got, _, err := locateStartPage(context.Background(), newFakeSource(pages), nil, date, pages[0])
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestLocateStartPage_NewerThanHistory(t *testing.T) {
	pages := makeHistory(8, 10)
	src := newFakeSource(pages)

	got, probes, err := locateStartPage(context.Background(), src, nil, at(1000), pages[0])
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Zero(t, probes)
	assert.Zero(t, src.totalFetches())
}

func TestLocateStartPage_OldestOnFirstPage(t *testing.T) {
	pages := makeHistory(8, 10)

	got, _, err := locateStartPage(context.Background(), newFakeSource(pages), nil, pages[0].Oldest(), pages[0])
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestLocateStartPage_OlderThanHistory(t *testing.T) {
	pages := makeHistory(8, 10)

	got, _, err := locateStartPage(context.Background(), newFakeSource(pages), nil, at(-5), pages[0])
	require.NoError(t, err)
	assert.Equal(t, 8, got)
}

func TestLocateStartPage_ProbeError(t *testing.T) {
	pages := makeHistory(8, 10)
	src := newFakeSource(pages)
	src.failWith(5, ErrNotAuthenticated)

	_, _, err := locateStartPage(context.Background(), src, nil, at(2), pages[0])
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Contains(t, err.Error(), "probing page 5")
}
