package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emcshop-dev/emcshop/internal/id"
	"github.com/emcshop-dev/emcshop/internal/model"
)

// Header is the CSV header for history.csv.
const Header = "ts,kind,amount,balance,customer,owner,player,item,quantity,reason,tag,note,description,fingerprint"

const (
	numFields   = 14
	tsFormat    = time.RFC3339Nano
	colTS       = 0
	colKind     = 1
	colAmount   = 2
	colBalance  = 3
	colCustomer = 4
	colOwner    = 5
	colPlayer   = 6
	colItem     = 7
	colQuantity = 8
	colReason   = 9
	colTag      = 10
	colNote     = 11
	colDesc     = 12
	colFP       = 13
)

// ReadRecords reads all records from a history.csv reader.
func ReadRecords(r io.Reader) ([]model.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading history CSV: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	// Skip header row.
	var records []model.Record
	for i, row := range rows[1:] {
		rec, err := UnmarshalRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteRecords writes records to a history.csv writer (including header).
func WriteRecords(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, rec := range records {
		if err := cw.Write(MarshalRecord(rec)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalRecord converts a Record to a CSV row.
func MarshalRecord(rec model.Record) []string {
	row := make([]string, numFields)
	row[colTS] = rec.Time.Format(tsFormat)
	row[colKind] = string(rec.Kind())
	row[colAmount] = strconv.Itoa(rec.Amount)
	row[colBalance] = strconv.Itoa(rec.Balance)

	switch d := rec.Detail.(type) {
	case model.ShopTrade:
		row[colCustomer] = d.Customer
		row[colOwner] = d.Owner
		row[colItem] = d.Item
		row[colQuantity] = strconv.Itoa(d.Quantity)
	case model.Payment:
		row[colPlayer] = d.Player
		row[colReason] = d.Reason
	case model.BonusFee:
		row[colTag] = string(d.Tag)
		row[colNote] = d.Note
	}

	row[colDesc] = rec.Description
	row[colFP] = id.FormatFingerprint(id.Fingerprint(rec))
	return row
}

// UnmarshalRecord converts a CSV row to a Record.
func UnmarshalRecord(row []string) (model.Record, error) {
	if len(row) != numFields {
		return model.Record{}, fmt.Errorf("expected %d fields, got %d", numFields, len(row))
	}

	ts, err := time.Parse(tsFormat, row[colTS])
	if err != nil {
		return model.Record{}, fmt.Errorf("parsing ts %q: %w", row[colTS], err)
	}

	amount, err := strconv.Atoi(row[colAmount])
	if err != nil {
		return model.Record{}, fmt.Errorf("parsing amount %q: %w", row[colAmount], err)
	}

	balance, err := strconv.Atoi(row[colBalance])
	if err != nil {
		return model.Record{}, fmt.Errorf("parsing balance %q: %w", row[colBalance], err)
	}

	if _, err := id.ParseFingerprint(row[colFP]); err != nil {
		return model.Record{}, fmt.Errorf("parsing fingerprint: %w", err)
	}

	rec := model.Record{
		Time:        ts,
		Description: row[colDesc],
		Amount:      amount,
		Balance:     balance,
	}

	switch model.Kind(row[colKind]) {
	case model.KindShop:
		qty, err := strconv.Atoi(row[colQuantity])
		if err != nil {
			return model.Record{}, fmt.Errorf("parsing quantity %q: %w", row[colQuantity], err)
		}
		rec.Detail = model.ShopTrade{
			Customer: row[colCustomer],
			Owner:    row[colOwner],
			Item:     row[colItem],
			Quantity: qty,
		}
	case model.KindPayment:
		rec.Detail = model.Payment{Player: row[colPlayer], Reason: row[colReason]}
	case model.KindBonusFee:
		rec.Detail = model.BonusFee{Tag: model.BonusTag(row[colTag]), Note: row[colNote]}
	case model.KindRaw:
		rec.Detail = model.Raw{}
	default:
		return model.Record{}, fmt.Errorf("unknown kind %q", row[colKind])
	}

	return rec, nil
}
