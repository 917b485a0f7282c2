package clock

import "time"

// Precision is the resolution of every timestamp the service hands out.
// Postgres timestamptz keeps microseconds, so truncating here means a record
// orders the same way before and after a round trip through any backend.
const Precision = time.Microsecond

// SystemClock returns wall-clock time in UTC at Precision.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC().Truncate(Precision) }
