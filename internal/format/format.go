// Package format renders raw account values for display: epoch-millisecond
// timestamps in a fixed zone and signed currency amounts.
package format

import (
	"time"
)

const (
	InvalidTime  = "Invalid Time"
	NotAvailable = "N/A"

	DefaultLayout   = "02 Jan 2006 03:04:05 PM"
	DefaultCurrency = "USDT"
)

// IST is UTC+05:30, the zone the dashboard has always displayed.
var IST = time.FixedZone("IST", 5*3600+30*60)

// Formatter carries the display settings. The zero value is not usable; use New or Default.
type Formatter struct {
	loc      *time.Location
	layout   string
	currency string
}

func New(loc *time.Location, layout, currency string) *Formatter {
	if loc == nil {
		loc = IST
	}
	if layout == "" {
		layout = DefaultLayout
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Formatter{loc: loc, layout: layout, currency: currency}
}

var std = New(IST, DefaultLayout, DefaultCurrency)

// Default returns the IST / USDT formatter.
func Default() *Formatter { return std }

func (f *Formatter) Location() *time.Location { return f.loc }
func (f *Formatter) Currency() string         { return f.currency }

// FormatTimestamp formats with the default formatter.
func FormatTimestamp(v any) string { return std.Timestamp(v) }

// FormatPNL formats with the default formatter.
func FormatPNL(v any) PNL { return std.PNL(v) }
