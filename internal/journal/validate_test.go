package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emcshop-dev/emcshop/internal/model"
)

func chain() []model.Record {
	return []model.Record{
		payment(ts(2025, 1, 3, 0, 0), 5, 115, "c"),
		payment(ts(2025, 1, 2, 0, 0), 10, 110, "b"),
		payment(ts(2025, 1, 1, 0, 0), 100, 100, "a"),
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.Empty(t, ValidateRecords(chain()))
}

func TestValidate_Empty(t *testing.T) {
	assert.Empty(t, ValidateRecords(nil))
}

func TestValidate_Invariant1_OutOfOrder(t *testing.T) {
	records := chain()
	records[1].Time = ts(2025, 1, 4, 0, 0)

	errs := ValidateRecords(records)
	require.NotEmpty(t, errs)
	assert.Equal(t, 1, errs[0].Invariant)
}

func TestValidate_Invariant2_BrokenBalance(t *testing.T) {
	records := chain()
	records[0].Balance = 999

	errs := ValidateRecords(records)
	require.Len(t, errs, 1)
	assert.Equal(t, 2, errs[0].Invariant)
	assert.Contains(t, errs[0].Error(), "balance 999 != 110 +5")
}

func TestValidate_Invariant3_Duplicate(t *testing.T) {
	records := chain()
	records = append(records[:1], records...)

	errs := ValidateRecords(records)
	var dup bool
	for _, e := range errs {
		if e.Invariant == 3 {
			dup = true
		}
	}
	assert.True(t, dup)
}
