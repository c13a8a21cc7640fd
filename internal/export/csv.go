package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"spendlog/internal/core"
	"spendlog/internal/wire"
)

// CSV column order. The header is part of the format.
const (
	colIcon = iota
	colTitle
	colAmount
	colCategory
	colTimestamp
	colNote
	colCount
)

const csvHeader = "icon,title,amount,category,timestamp,note"

// CSV renders the records as comma-separated rows under a fixed header.
// Every field is double-quoted except amount; commas inside the note are
// replaced with semicolons before quoting. Rows are newline-joined with no
// trailing newline.
func CSV(records []core.Record) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	for _, rec := range records {
		b.WriteString("\n")
		b.WriteString(quote(rec.Icon))
		b.WriteString(",")
		b.WriteString(quote(rec.Title))
		b.WriteString(",")
		b.WriteString(strconv.FormatInt(rec.Amount, 10))
		b.WriteString(",")
		b.WriteString(quote(rec.Category))
		b.WriteString(",")
		b.WriteString(quote(wire.FormatTimestamp(rec.Timestamp)))
		b.WriteString(",")
		b.WriteString(quote(strings.ReplaceAll(rec.Note, ",", ";")))
	}
	return b.String()
}

// quote wraps a field in double quotes, escaping embedded quotes.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ParseCSV reads the CSV format back into records, assigning fresh ids.
// Errors name the offending row.
func ParseCSV(r io.Reader) ([]core.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = colCount

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if strings.Join(header, ",") != csvHeader {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(header, ","))
	}

	var out []core.Record
	for rowNum := 2; ; rowNum++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}

		amount, err := core.ParseAmount(row[colAmount])
		if err != nil {
			return nil, fmt.Errorf("row %d: amount %q: %w", rowNum, row[colAmount], err)
		}
		ts, err := wire.ParseTimestamp(row[colTimestamp])
		if err != nil {
			return nil, fmt.Errorf("row %d: timestamp %q: %w", rowNum, row[colTimestamp], err)
		}

		out = append(out, core.Record{
			ID:        core.NewID(),
			Icon:      row[colIcon],
			Title:     row[colTitle],
			Amount:    amount,
			Category:  row[colCategory],
			Timestamp: ts,
			Note:      row[colNote],
		})
	}
	return out, nil
}
