// Package stay converts arrival and departure timestamps into a billable night count.
//
// A night block runs from 12:01 to 11:00 the next calendar day. Arrivals before
// 12:01 are billed from the previous day, departures after 11:00 are billed to the
// following day.
package stay

import (
	"math"
	"time"

	"github.com/garyjia/travel-backoffice/internal/domain/errs"
)

const (
	checkInHour     = 12
	checkInMinute   = 1
	checkOutHour    = 11
	checkOutMinute  = 0
	nightBlockHours = 23
)

var (
	checkInOffset  = checkInHour*time.Hour + checkInMinute*time.Minute
	checkOutOffset = checkOutHour*time.Hour + checkOutMinute*time.Minute
	nightBlock     = nightBlockHours * time.Hour
)

// Period is the stay of one comparison group
type Period struct {
	Arrival   time.Time `json:"arrival"`
	Departure time.Time `json:"departure"`
	Nights    int       `json:"nights"`
}

// NewPeriod computes the nights for a stay and rejects stays worth zero nights
func NewPeriod(arrival, departure time.Time) (Period, error) {
	p := Period{Arrival: arrival, Departure: departure, Nights: Nights(arrival, departure)}
	if p.Nights <= 0 {
		return Period{}, errs.Validation("stay", "departure must be after arrival")
	}
	return p, nil
}

// IsSet reports whether the period holds a valid night count
func (p Period) IsSet() bool {
	return p.Nights > 0
}

// Nights returns the billable night count, or 0 when the interval is not positive.
// Calendar arithmetic happens in each timestamp's own location.
func Nights(arrival, departure time.Time) int {
	if arrival.IsZero() || departure.IsZero() || !departure.After(arrival) {
		return 0
	}

	start := normalizeArrival(arrival)
	end := normalizeDeparture(departure)

	diff := end.Sub(start)
	if diff <= 0 {
		return 0
	}

	return int(math.Round(float64(diff) / float64(nightBlock)))
}

// normalizeArrival moves early arrivals back one day and pins the time to 12:01
func normalizeArrival(t time.Time) time.Time {
	y, m, d := t.Date()
	if timeOfDay(t) < checkInOffset {
		d--
	}
	return time.Date(y, m, d, checkInHour, checkInMinute, 0, 0, t.Location())
}

// normalizeDeparture moves late departures forward one day and pins the time to 11:00
func normalizeDeparture(t time.Time) time.Time {
	y, m, d := t.Date()
	if timeOfDay(t) > checkOutOffset {
		d++
	}
	return time.Date(y, m, d, checkOutHour, checkOutMinute, 0, 0, t.Location())
}

func timeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}
