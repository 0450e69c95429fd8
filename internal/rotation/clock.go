package rotation

import "time"

// Clock divides time into fixed periods starting at a UTC hour. Each
// period is one content generation; generation n starts at Origin+n*Period.
type Clock struct {
	Origin time.Time
	Period time.Duration
}

func NewClock(hour int, period time.Duration) Clock {
	if period <= 0 {
		period = 24 * time.Hour
	}
	hour = ((hour % 24) + 24) % 24
	return Clock{
		Origin: time.Date(1970, 1, 1, hour, 0, 0, 0, time.UTC),
		Period: period,
	}
}

func (c Clock) Generation(t time.Time) int64 {
	d := t.Sub(c.Origin)
	gen := int64(d / c.Period)
	if d < 0 && d%c.Period != 0 {
		gen--
	}
	return gen
}

// Start returns when the generation begins.
func (c Clock) Start(gen int64) time.Time {
	return c.Origin.Add(time.Duration(gen) * c.Period)
}

// Next returns the start of the generation after the one containing t.
func (c Clock) Next(t time.Time) time.Time {
	return c.Start(c.Generation(t) + 1)
}
