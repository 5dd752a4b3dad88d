package pricing

import "time"

type fixedHoliday struct {
	month time.Month
	day   int
	label string
}

var fixedHolidays = []fixedHoliday{
	{time.January, 1, "New Year's Day"},
	{time.May, 1, "International Workers' Day"},
	{time.December, 25, "Christmas Day"},
	{time.December, 26, "Boxing Day"},
}

// easterHolidays are offsets in days from Easter Sunday.
var easterHolidays = []struct {
	offset int
	label  string
}{
	{-2, "Good Friday"},
	{0, "Easter Sunday"},
	{1, "Easter Monday"},
}

// EasterSunday returns the Gregorian Easter date for the given year
// (anonymous Gregorian computus).
func EasterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// HolidayOn returns the label of the holiday falling on the calendar date of t, if any.
// The date is taken in t's own location.
func HolidayOn(t time.Time) (string, bool) {
	for _, h := range fixedHolidays {
		if t.Month() == h.month && t.Day() == h.day {
			return h.label, true
		}
	}

	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	easter := EasterSunday(t.Year())
	for _, h := range easterHolidays {
		if easter.AddDate(0, 0, h.offset).Equal(date) {
			return h.label, true
		}
	}
	return "", false
}
