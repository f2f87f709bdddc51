package listview

import "time"

// Decorator adds a behavior to a constructed list
type Decorator func(*Model) *Model

// With applies decorators in order
func With(m *Model, decorators ...Decorator) *Model {
	for _, d := range decorators {
		if next := d(m); next != nil {
			m = next
		}
	}
	return m
}

// Centered makes ScrollTo center its target
func Centered() Decorator {
	return func(m *Model) *Model {
		m.center = true
		return m
	}
}

// Throttled drops wheel scroll events that arrive within d of the previous one
func Throttled(d time.Duration) Decorator {
	return func(m *Model) *Model {
		m.throttle = d
		return m
	}
}

// WithClock replaces the time source used for throttling
func WithClock(now func() time.Time) Decorator {
	return func(m *Model) *Model {
		m.now = now
		return m
	}
}
