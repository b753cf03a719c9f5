package core

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// USDateLayout is the canonical storage format for expense dates.
	USDateLayout = "01/02/2006"
	// ISODateLayout is the canonical storage format for trip dates.
	ISODateLayout = "2006-01-02"
)

var (
	usDatePattern  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	isoDatePattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
)

// Date is a calendar day at midnight UTC.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate is the single date parser for record dates. It tries MM/DD/YYYY
// first, then YYYY-MM-DD, and reports false for anything else, including
// days that do not exist in the calendar.
func ParseDate(s string) (Date, bool) {
	s = strings.TrimSpace(s)
	if m := usDatePattern.FindStringSubmatch(s); m != nil {
		return dateFromParts(m[3], m[1], m[2])
	}
	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		return dateFromParts(m[1], m[2], m[3])
	}
	return Date{}, false
}

func dateFromParts(year, month, day string) (Date, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return Date{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return Date{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 {
		return Date{}, false
	}
	date := NewDate(y, m, d)
	if date.Time.Day() != d {
		// rolled over into the next month
		return Date{}, false
	}
	return date, true
}

// IsEmpty returns true if the date is zero, which filters treat as an absent bound.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// FormatUS renders MM/DD/YYYY.
func (d Date) FormatUS() string {
	return d.Format(USDateLayout)
}

// FormatISO renders YYYY-MM-DD.
func (d Date) FormatISO() string {
	return d.Format(ISODateLayout)
}
