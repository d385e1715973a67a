package format

import (
	"fmt"
	"html"
	"html/template"

	"github.com/shopspring/decimal"

	"tradedesk/internal/pkg/convert"
)

// Sign is the three-way classification of a PnL value. SignUnknown marks
// values that could not be converted.
type Sign int

const (
	SignUnknown Sign = iota
	SignNeutral
	SignPositive
	SignNegative
)

func (s Sign) String() string {
	switch s {
	case SignNeutral:
		return "neutral"
	case SignPositive:
		return "positive"
	case SignNegative:
		return "negative"
	default:
		return "unknown"
	}
}

// Color is the presentation hint for the sign.
func (s Sign) Color() string {
	switch s {
	case SignPositive:
		return "green"
	case SignNegative:
		return "red"
	default:
		return ""
	}
}

func (s Sign) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Sign) UnmarshalText(b []byte) error {
	switch string(b) {
	case "neutral":
		*s = SignNeutral
	case "positive":
		*s = SignPositive
	case "negative":
		*s = SignNegative
	default:
		*s = SignUnknown
	}
	return nil
}

// Classify returns the sign class of v.
func Classify(v float64) Sign {
	switch {
	case v > 0:
		return SignPositive
	case v < 0:
		return SignNegative
	default:
		return SignNeutral
	}
}

type PNL struct {
	Value float64 `json:"value"`
	Text  string  `json:"text"`
	Sign  Sign    `json:"sign"`
}

func (p PNL) Valid() bool { return p.Sign != SignUnknown }

// HTML wraps the text in a coloured span for positive and negative values.
func (p PNL) HTML() template.HTML {
	color := p.Sign.Color()
	if color == "" {
		return template.HTML(html.EscapeString(p.Text))
	}
	return template.HTML(fmt.Sprintf(`<span style="color:%s">%s</span>`, color, html.EscapeString(p.Text)))
}

// PNL formats v with two decimals and the currency suffix. Positive values
// get a leading "+". Numeric strings are accepted.
func (f *Formatter) PNL(v any) PNL {
	val, ok := convert.Float64(v)
	if !ok {
		return PNL{Text: NotAvailable, Sign: SignUnknown}
	}
	sign := Classify(val)
	fixed := twoDecimals(val)
	prefix := ""
	switch {
	case sign == SignPositive:
		prefix = "+"
	case sign == SignNegative && fixed == "0.00":
		prefix = "-"
	}
	return PNL{Value: val, Text: fmt.Sprintf("%s%s %s", prefix, fixed, f.currency), Sign: sign}
}

// Money formats an unsigned display amount such as a balance: "1234.50 USDT".
func (f *Formatter) Money(v any) string {
	val, ok := convert.Float64(v)
	if !ok {
		return NotAvailable
	}
	return twoDecimals(val) + " " + f.currency
}

// Number formats a plain quantity or price without trailing zeros.
func (f *Formatter) Number(v any) string {
	val, ok := convert.Float64(v)
	if !ok {
		return NotAvailable
	}
	return decimal.NewFromFloat(val).String()
}

func twoDecimals(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsZero() {
		return "0.00"
	}
	return d.StringFixed(2)
}
