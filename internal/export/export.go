// Package export renders record sequences into the shareable plain-text
// and CSV formats, and reads the CSV format back in.
package export

import (
	"strings"

	"spendlog/internal/core"
)

// textTimeLayout is the compact stamp used in the plain-text format.
const textTimeLayout = "060102 1504"

// separator between plain-text fields (fullwidth vertical bar).
const separator = "｜"

// Text renders one line per record in input order:
// <icon><title>｜<category>｜$<amount>｜<yyMMdd HHmm>.
// Lines are newline-joined with no trailing newline.
func Text(records []core.Record) string {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		var b strings.Builder
		b.WriteString(rec.Icon)
		b.WriteString(rec.Title)
		b.WriteString(separator)
		b.WriteString(rec.Category)
		b.WriteString(separator)
		b.WriteString(core.FormatAmount(rec.Amount))
		b.WriteString(separator)
		b.WriteString(rec.Timestamp.In(core.Zone()).Format(textTimeLayout))
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}
