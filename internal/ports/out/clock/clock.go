package clock

import "time"

// Clock supplies the timestamps that order attendance (joined_at) and
// drive event completion.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }
