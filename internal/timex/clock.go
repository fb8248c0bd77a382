package timex

import "time"

// Clock abstracts the wall clock so expiry and sync timestamps can be tested.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Layout is how instants are persisted in the local store.
const Layout = time.RFC3339Nano

// Format renders t in UTC using Layout.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse reads an instant written by Format.
func Parse(s string) (time.Time, error) {
	return time.Parse(Layout, s)
}
