package order

import (
	"fmt"
	"time"
)

// DefaultTimeFormat prints order times as month/day/year with a 12 hour clock.
const DefaultTimeFormat = "1/2/2006, 3:04:05 PM"

// Clock stamps orders in the shop's local time.
type Clock struct {
	Location *time.Location
	Layout   string
	Now      func() time.Time
}

// NewClock resolves zone (an IANA name, empty for the host zone).
func NewClock(zone, layout string) (Clock, error) {
	c := Clock{Layout: layout}
	if zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return Clock{}, fmt.Errorf("order: load timezone %q: %w", zone, err)
		}
		c.Location = loc
	}
	return c, nil
}

// Stamp formats the current time.
func (c Clock) Stamp() string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	t := now()
	if c.Location != nil {
		t = t.In(c.Location)
	}
	layout := c.Layout
	if layout == "" {
		layout = DefaultTimeFormat
	}
	return t.Format(layout)
}
