package ports

import "time"

// Clock abstracts "now" so due-date arithmetic and retry exhaustion can be
// driven deterministically in tests.
type Clock interface {
	Now() time.Time
}
