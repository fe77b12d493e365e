package model

import (
	"encoding/json"
	"time"
)

const (
	compactDateLayout = "20060102"
	isoDateLayout     = "2006-01-02"
)

// Date is a calendar date without time of day
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in t's location
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

// ParseDate parses YYYY-MM-DD
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(isoDateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// ParseCompactDate parses the authority's YYYYMMDD form
func ParseCompactDate(s string) (Date, error) {
	t, err := time.Parse(compactDateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// Compact renders YYYYMMDD, or an empty string for the zero date
func (d Date) Compact() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(compactDateLayout)
}

// ISO renders YYYY-MM-DD
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(isoDateLayout)
}

func (d Date) String() string {
	return d.ISO()
}

// MarshalJSON renders YYYY-MM-DD, or null for the zero date
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.ISO())
}

// UnmarshalJSON accepts YYYY-MM-DD, YYYYMMDD or null
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		parsed, err = ParseCompactDate(s)
		if err != nil {
			return NewValidationError("date", s, "format", "expected YYYY-MM-DD")
		}
	}
	*d = parsed
	return nil
}
