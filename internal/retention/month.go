package retention

import "time"

// month is a civil year/month pair in UTC.
type month struct {
	year int
	mon  time.Month
}

// monthOf returns the civil month containing t.
func monthOf(t time.Time) month {
	u := t.UTC()
	return month{year: u.Year(), mon: u.Month()}
}

// start returns the first instant of the month.
func (m month) start() time.Time {
	return time.Date(m.year, m.mon, 1, 0, 0, 0, 0, time.UTC)
}

// next returns the following month, carrying December into the next
// year.
func (m month) next() month {
	if m.mon == time.December {
		return month{year: m.year + 1, mon: time.January}
	}
	return month{year: m.year, mon: m.mon + 1}
}

// after reports whether m is a later calendar month than other.
func (m month) after(other month) bool {
	if m.year != other.year {
		return m.year > other.year
	}
	return m.mon > other.mon
}

// closer reports whether a is strictly nearer to anchor than b,
// measured in whole seconds. A tie is not closer.
func closer(anchor, a, b time.Time) bool {
	return absSeconds(anchor.Sub(a)) < absSeconds(anchor.Sub(b))
}

func absSeconds(d time.Duration) int64 {
	if d < 0 {
		d = -d
	}
	return int64(d / time.Second)
}
