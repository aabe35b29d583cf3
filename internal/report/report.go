// Package report summarizes downloaded rupee history.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emcshop-dev/emcshop/internal/model"
)

// ItemTotals aggregates shop trades of one item.
type ItemTotals struct {
	Item   string
	Sold   int // items that left the player's hands
	Bought int
	Earned int // rupees received for sold items
	Spent  int // rupees paid for bought items, positive
}

// AvgSellPrice is the mean rupees received per item sold, rounded to cents.
func (t ItemTotals) AvgSellPrice() decimal.Decimal { return average(t.Earned, t.Sold) }

// AvgBuyPrice is the mean rupees paid per item bought, rounded to cents.
func (t ItemTotals) AvgBuyPrice() decimal.Decimal { return average(t.Spent, t.Bought) }

// Net is the rupee profit on the item.
func (t ItemTotals) Net() int { return t.Earned - t.Spent }

func average(total, qty int) decimal.Decimal {
	if qty == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(total)).Div(decimal.NewFromInt(int64(qty))).Round(2)
}

// PlayerTotals aggregates payments exchanged with one player.
type PlayerTotals struct {
	Player   string
	Received int
	Sent     int // positive
}

// Net is received minus sent.
func (p PlayerTotals) Net() int { return p.Received - p.Sent }

// TagTotals aggregates bonuses and fees with one tag.
type TagTotals struct {
	Tag   model.BonusTag
	Count int
	Total int
}

// Summary is the aggregate view of a set of records.
type Summary struct {
	From, To time.Time // oldest and newest record; zero if there are none
	Records  int
	Items    []ItemTotals   // sorted by item name
	Players  []PlayerTotals // sorted by player name
	Tags     []TagTotals    // sorted by tag
	RawCount int
	RawTotal int
	Net      int // sum of every amount
}

// Summarize aggregates records in any order.
func Summarize(records []model.Record) Summary {
	var s Summary
	items := make(map[string]*ItemTotals)
	players := make(map[string]*PlayerTotals)
	tags := make(map[model.BonusTag]*TagTotals)

	for _, rec := range records {
		s.Records++
		s.Net += rec.Amount
		if s.From.IsZero() || rec.Time.Before(s.From) {
			s.From = rec.Time
		}
		if rec.Time.After(s.To) {
			s.To = rec.Time
		}

		switch d := rec.Detail.(type) {
		case model.ShopTrade:
			key := strings.ToLower(d.Item)
			it, ok := items[key]
			if !ok {
				it = &ItemTotals{Item: d.Item}
				items[key] = it
			}
			if d.Quantity < 0 {
				it.Sold += -d.Quantity
			} else {
				it.Bought += d.Quantity
			}
			if rec.Amount > 0 {
				it.Earned += rec.Amount
			} else {
				it.Spent += -rec.Amount
			}
		case model.Payment:
			p, ok := players[d.Player]
			if !ok {
				p = &PlayerTotals{Player: d.Player}
				players[d.Player] = p
			}
			if rec.Amount > 0 {
				p.Received += rec.Amount
			} else {
				p.Sent += -rec.Amount
			}
		case model.BonusFee:
			tt, ok := tags[d.Tag]
			if !ok {
				tt = &TagTotals{Tag: d.Tag}
				tags[d.Tag] = tt
			}
			tt.Count++
			tt.Total += rec.Amount
		default:
			s.RawCount++
			s.RawTotal += rec.Amount
		}
	}

	for _, it := range items {
		s.Items = append(s.Items, *it)
	}
	sort.Slice(s.Items, func(i, j int) bool {
		return strings.ToLower(s.Items[i].Item) < strings.ToLower(s.Items[j].Item)
	})
	for _, p := range players {
		s.Players = append(s.Players, *p)
	}
	sort.Slice(s.Players, func(i, j int) bool { return s.Players[i].Player < s.Players[j].Player })
	for _, tt := range tags {
		s.Tags = append(s.Tags, *tt)
	}
	sort.Slice(s.Tags, func(i, j int) bool { return s.Tags[i].Tag < s.Tags[j].Tag })
	return s
}

// Write prints the summary as aligned text tables.
func Write(w io.Writer, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if s.Records == 0 {
		fmt.Fprintln(tw, "No transactions.")
		return tw.Flush()
	}

	fmt.Fprintf(tw, "Transactions:\t%d\n", s.Records)
	fmt.Fprintf(tw, "Period:\t%s to %s\n", s.From.Format(time.DateOnly), s.To.Format(time.DateOnly))
	fmt.Fprintf(tw, "Net:\t%+d\n", s.Net)

	if len(s.Items) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "ITEM\tSOLD\tEARNED\tAVG SELL\tBOUGHT\tSPENT\tAVG BUY\tNET")
		for _, it := range s.Items {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%d\t%d\t%s\t%+d\n",
				it.Item, it.Sold, it.Earned, it.AvgSellPrice().StringFixed(2),
				it.Bought, it.Spent, it.AvgBuyPrice().StringFixed(2), it.Net())
		}
	}

	if len(s.Players) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "PLAYER\tRECEIVED\tSENT\tNET")
		for _, p := range s.Players {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%+d\n", p.Player, p.Received, p.Sent, p.Net())
		}
	}

	if len(s.Tags) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "BONUS/FEE\tCOUNT\tTOTAL")
		for _, t := range s.Tags {
			fmt.Fprintf(tw, "%s\t%d\t%+d\n", t.Tag, t.Count, t.Total)
		}
	}

	if s.RawCount > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "Unrecognized:\t%d\t%+d\n", s.RawCount, s.RawTotal)
	}
	return tw.Flush()
}
