package escrow

import "time"

// DefaultGracePeriod is the auto-approval window after delivery.
const DefaultGracePeriod = 7 * 24 * time.Hour

// deliveryOpen reports whether delivery is still accepted: now <= deadline.
func deliveryOpen(now, deadline time.Time) bool {
	return !now.After(deadline)
}

// deadlinePassed reports whether the hard deadline elapsed: now > deadline.
func deadlinePassed(now, deadline time.Time) bool {
	return now.After(deadline)
}

// graceElapsed reports whether the auto-approval grace period elapsed:
// now >= deliveredAt + grace.
func graceElapsed(now, deliveredAt time.Time, grace time.Duration) bool {
	return !now.Before(deliveredAt.Add(grace))
}
