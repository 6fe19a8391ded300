package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthOf_NormalizesToUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	// 23:30 EST on Jan 31 is already February in UTC.
	m := monthOf(time.Date(2026, time.January, 31, 23, 30, 0, 0, est))
	assert.Equal(t, month{year: 2026, mon: time.February}, m)
}

func TestMonthStart(t *testing.T) {
	m := monthOf(time.Date(2014, time.July, 19, 22, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2014, time.July, 1, 0, 0, 0, 0, time.UTC), m.start())
}

func TestMonthNext(t *testing.T) {
	tests := []struct {
		name string
		in   month
		want month
	}{
		{"mid-year", month{2014, time.June}, month{2014, time.July}},
		{"december carries into next year", month{2014, time.December}, month{2015, time.January}},
		{"february", month{2016, time.February}, month{2016, time.March}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.next())
		})
	}
}

func TestMonthAfter(t *testing.T) {
	assert.True(t, month{2015, time.January}.after(month{2014, time.December}))
	assert.True(t, month{2014, time.July}.after(month{2014, time.June}))
	assert.False(t, month{2014, time.June}.after(month{2014, time.June}))
	assert.False(t, month{2014, time.June}.after(month{2015, time.January}))
}

func TestCloser(t *testing.T) {
	anchor := time.Date(2014, time.June, 1, 0, 0, 0, 0, time.UTC)

	// Strictly nearer wins, regardless of side.
	assert.True(t, closer(anchor, anchor.Add(time.Hour), anchor.Add(-2*time.Hour)))
	assert.True(t, closer(anchor, anchor.Add(-time.Hour), anchor.Add(2*time.Hour)))

	// Equal distance is not closer; the comparison is strict.
	assert.False(t, closer(anchor, anchor.Add(time.Hour), anchor.Add(-time.Hour)))
	assert.False(t, closer(anchor, anchor.Add(time.Hour), anchor.Add(time.Hour)))

	// Distances compare in whole seconds; sub-second differences vanish.
	assert.False(t, closer(anchor, anchor.Add(time.Second), anchor.Add(1500*time.Millisecond)))
	assert.True(t, closer(anchor, anchor.Add(900*time.Millisecond), anchor.Add(time.Second)))
}
