package emcweb

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/emcshop-dev/emcshop/internal/model"
	"github.com/emcshop-dev/emcshop/internal/scribe"
)

// PageParser turns one transaction page response body into a Page.
type PageParser interface {
	ParsePage(r io.Reader) (*model.Page, error)
}

type pageJSON struct {
	Balance      *int              `json:"balance"`
	Page         int               `json:"page"`
	TotalPages   int               `json:"total_pages"`
	Transactions []json.RawMessage `json:"transactions"`
}

type transactionJSON struct {
	TS          string `json:"ts"`
	Description string `json:"description"`
	Amount      *int   `json:"amount"`
	Balance     *int   `json:"balance"`
}

// JSONParser parses the JSON form of the transaction history page.
// Transactions that cannot be read are logged and left out of the page.
type JSONParser struct {
	Scribes *scribe.Registry // nil = scribe.DefaultRegistry()
	Logger  zerolog.Logger
}

// ParsePage decodes one page.
func (p *JSONParser) ParsePage(r io.Reader) (*model.Page, error) {
	var doc pageJSON
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding transaction page: %w", err)
	}
	if doc.TotalPages < 0 || doc.Page < 0 {
		return nil, fmt.Errorf("invalid page numbering: page %d of %d", doc.Page, doc.TotalPages)
	}

	scribes := p.Scribes
	if scribes == nil {
		scribes = scribe.DefaultRegistry()
	}

	page := &model.Page{
		Number:     doc.Page,
		TotalPages: doc.TotalPages,
		Balance:    doc.Balance,
	}
	for i, raw := range doc.Transactions {
		rec, err := parseTransaction(raw)
		if err != nil {
			p.Logger.Warn().Err(err).Int("page", doc.Page).Int("index", i).Msg("skipping unreadable transaction")
			continue
		}

		detail, err := scribes.Classify(rec.Description)
		if err != nil {
			p.Logger.Warn().Err(err).Str("description", rec.Description).Msg("scribe failed")
		}
		rec.Detail = detail
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

func parseTransaction(raw json.RawMessage) (model.Record, error) {
	var tx transactionJSON
	if err := json.Unmarshal(raw, &tx); err != nil {
		return model.Record{}, fmt.Errorf("decoding transaction: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, tx.TS)
	if err != nil {
		return model.Record{}, fmt.Errorf("parsing timestamp %q: %w", tx.TS, err)
	}
	if tx.Amount == nil || tx.Balance == nil {
		return model.Record{}, fmt.Errorf("transaction at %s is missing amount or balance", tx.TS)
	}
	return model.Record{
		Time:        ts,
		Description: tx.Description,
		Amount:      *tx.Amount,
		Balance:     *tx.Balance,
	}, nil
}
