package interest

import "time"

// Date truncates t to its calendar date in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func StartOfYear(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func EndOfYear(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

func DaysInYear(year int) int {
	return ActualDays(StartOfYear(year), StartOfYear(year+1))
}

// ActualDays is the number of calendar days from start to end.
func ActualDays(start, end time.Time) int {
	return int(Date(end).Sub(Date(start)).Hours() / 24)
}

// MinDate returns the earliest of the given dates, ignoring nils.
func MinDate(first time.Time, others ...*time.Time) time.Time {
	m := first
	for _, o := range others {
		if o != nil && o.Before(m) {
			m = *o
		}
	}
	return m
}
