package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emcshop-dev/emcshop/internal/model"
)

var day = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(hours, amount int, d model.Detail) model.Record {
	return model.Record{Time: day.Add(time.Duration(hours) * time.Hour), Amount: amount, Detail: d}
}

func sample() []model.Record {
	return []model.Record{
		rec(10, 30, model.ShopTrade{Customer: "Steve", Item: "Diamond", Quantity: -3}),
		rec(9, 15, model.ShopTrade{Customer: "Alex", Item: "diamond", Quantity: -1}),
		rec(8, -20, model.ShopTrade{Owner: "Herobrine", Item: "Diamond", Quantity: 2}),
		rec(7, -10, model.ShopTrade{Owner: "Herobrine", Item: "Apple", Quantity: 3}),
		rec(6, 100, model.Payment{Player: "Notch"}),
		rec(5, -40, model.Payment{Player: "Notch", Reason: "rent"}),
		rec(4, -5, model.Payment{Player: "Jeb"}),
		rec(3, 400, model.BonusFee{Tag: model.TagVote, Note: "site 1 day 3"}),
		rec(2, 400, model.BonusFee{Tag: model.TagVote}),
		rec(1, -5, model.BonusFee{Tag: model.TagLock}),
		rec(0, 7, model.Raw{}),
	}
}

func TestSummarize_Items(t *testing.T) {
	s := Summarize(sample())

	require.Len(t, s.Items, 2)
	apple, diamond := s.Items[0], s.Items[1]

	assert.Equal(t, "Apple", apple.Item)
	assert.Equal(t, 3, apple.Bought)
	assert.Equal(t, 10, apple.Spent)
	assert.Equal(t, "3.33", apple.AvgBuyPrice().StringFixed(2))
	assert.True(t, apple.AvgSellPrice().IsZero())

	assert.Equal(t, "Diamond", diamond.Item, "items are grouped case-insensitively")
	assert.Equal(t, 4, diamond.Sold)
	assert.Equal(t, 45, diamond.Earned)
	assert.Equal(t, 2, diamond.Bought)
	assert.Equal(t, 20, diamond.Spent)
	assert.Equal(t, "11.25", diamond.AvgSellPrice().StringFixed(2))
	assert.Equal(t, "10.00", diamond.AvgBuyPrice().StringFixed(2))
	assert.Equal(t, 25, diamond.Net())
}

func TestSummarize_PaymentsAndBonuses(t *testing.T) {
	s := Summarize(sample())

	require.Len(t, s.Players, 2)
	assert.Equal(t, PlayerTotals{Player: "Jeb", Sent: 5}, s.Players[0])
	assert.Equal(t, "Notch", s.Players[1].Player)
	assert.Equal(t, 60, s.Players[1].Net())

	require.Len(t, s.Tags, 2)
	assert.Equal(t, TagTotals{Tag: model.TagLock, Count: 1, Total: -5}, s.Tags[0])
	assert.Equal(t, TagTotals{Tag: model.TagVote, Count: 2, Total: 800}, s.Tags[1])

	assert.Equal(t, 1, s.RawCount)
	assert.Equal(t, 7, s.RawTotal)
}

func TestSummarize_Totals(t *testing.T) {
	s := Summarize(sample())

	assert.Equal(t, 11, s.Records)
	assert.Equal(t, 872, s.Net)
	assert.True(t, s.From.Equal(day))
	assert.True(t, s.To.Equal(day.Add(10*time.Hour)))
}

func TestSummarize_NilDetailIsRaw(t *testing.T) {
	s := Summarize([]model.Record{{Time: day, Amount: -3}})
	assert.Equal(t, 1, s.RawCount)
	assert.Equal(t, -3, s.RawTotal)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Summarize(sample())))
	out := buf.String()

	assert.Contains(t, out, "Transactions:")
	assert.Contains(t, out, "2025-03-01 to 2025-03-01")
	assert.Contains(t, out, "+872")
	assert.Contains(t, out, "11.25")
	assert.Contains(t, out, "PLAYER")
	assert.Contains(t, out, "vote")
	assert.Contains(t, out, "Unrecognized:")
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Summarize(nil)))
	assert.Equal(t, "No transactions.\n", buf.String())
}
