package escrow

import "time"

// Clock supplies the single trusted time source for every time-gated
// precondition. The engine never reads wall-clock time directly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
