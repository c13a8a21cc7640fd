// Package wire transcodes between the remote parser's JSON objects and
// domain records. Decoding is strict about field presence and types so that
// malformed model output is rejected with a precise reason instead of
// producing half-filled records.
package wire

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"spendlog/internal/core"
)

// TimestampLayout is the exchange layout for timestamps: minute precision
// with an explicit zone offset.
const TimestampLayout = "2006-01-02T15:04Z07:00"

// Mode controls how unparseable timestamps are handled.
type Mode int

const (
	// Lenient substitutes the current instant when the timestamp does not
	// parse. Matches the historical ingestion behavior.
	Lenient Mode = iota
	// Strict rejects the object with a corrupted-kind error.
	Strict
)

// Object is the wire shape of a single record. All fields except note are
// required on decode.
type Object struct {
	Icon      string  `json:"icon"`
	Title     string  `json:"title"`
	Amount    int64   `json:"amount"`
	Category  string  `json:"category"`
	Timestamp string  `json:"timestamp"`
	Note      *string `json:"note,omitempty"`
}

// Codec decodes wire objects into records and encodes records back.
// The zero value is a lenient codec using the wall clock.
type Codec struct {
	Mode Mode

	// Now supplies the lenient-mode fallback instant. Defaults to time.Now.
	Now func() time.Time
}

var requiredFields = []string{"icon", "title", "amount", "category", "timestamp"}

// Decode converts one raw wire object into a record, assigning a fresh id.
// Failures are *DecodeError values classifying the first offending field;
// a failed decode never yields a partial record.
func (c *Codec) Decode(raw json.RawMessage) (core.Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return core.Record{}, corrupted("not a JSON object")
	}

	for _, name := range requiredFields {
		v, ok := fields[name]
		if !ok {
			return core.Record{}, missingField(name)
		}
		if isNull(v) {
			return core.Record{}, valueMissing(name)
		}
	}

	rec := core.Record{ID: core.NewID()}
	var err error
	if rec.Icon, err = decodeString(fields, "icon"); err != nil {
		return core.Record{}, err
	}
	if rec.Title, err = decodeString(fields, "title"); err != nil {
		return core.Record{}, err
	}
	if rec.Amount, err = decodeAmount(fields["amount"]); err != nil {
		return core.Record{}, err
	}
	if rec.Category, err = decodeString(fields, "category"); err != nil {
		return core.Record{}, err
	}

	tsRaw, err := decodeString(fields, "timestamp")
	if err != nil {
		return core.Record{}, err
	}
	rec.Timestamp, err = c.decodeTimestamp(tsRaw)
	if err != nil {
		return core.Record{}, err
	}

	if v, ok := fields["note"]; ok && !isNull(v) {
		if rec.Note, err = decodeString(fields, "note"); err != nil {
			return core.Record{}, err
		}
	}
	return rec, nil
}

// Encode maps a record back to its wire shape. An empty note is omitted.
func (c *Codec) Encode(rec core.Record) Object {
	obj := Object{
		Icon:      rec.Icon,
		Title:     rec.Title,
		Amount:    rec.Amount,
		Category:  rec.Category,
		Timestamp: rec.Timestamp.Format(TimestampLayout),
	}
	if rec.Note != "" {
		note := rec.Note
		obj.Note = &note
	}
	return obj
}

// FormatTimestamp renders an instant in the exchange layout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses an exchange-layout timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

func (c *Codec) decodeTimestamp(s string) (time.Time, error) {
	ts, err := ParseTimestamp(strings.TrimSpace(s))
	if err == nil {
		return ts, nil
	}
	if c.Mode == Strict {
		return time.Time{}, corrupted("timestamp does not match layout " + TimestampLayout)
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return now().In(core.Zone()).Truncate(time.Minute), nil
}

func decodeString(fields map[string]json.RawMessage, name string) (string, error) {
	var s string
	if err := json.Unmarshal(fields[name], &s); err != nil {
		return "", typeMismatch(name, "expected string")
	}
	return s, nil
}

func decodeAmount(raw json.RawMessage) (int64, error) {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return 0, typeMismatch("amount", "expected integer")
	}
	v, err := n.Int64()
	if err != nil {
		return 0, typeMismatch("amount", "expected integer, got "+n.String())
	}
	return v, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
