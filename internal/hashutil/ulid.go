package hashutil

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/oklog/ulid/v2"
)

// IDGenerator mints lexicographically time-ordered ULIDs (spec §4.1).
// The clock is injectable so tests can pin "now" and assert ordering
// deterministically, the same seam the teacher's codebase keeps open via
// benbjohnson/clock in its indexing pipelines.
type IDGenerator struct {
	clock clock.Clock
	mu    sync.Mutex
	entropy io.Reader
}

// NewIDGenerator returns a generator using the real wall clock.
func NewIDGenerator() *IDGenerator {
	return NewIDGeneratorWithClock(clock.New())
}

// NewIDGeneratorWithClock returns a generator using the given clock, for tests.
func NewIDGeneratorWithClock(c clock.Clock) *IDGenerator {
	return &IDGenerator{
		clock:   c,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// New mints a new 26-character Crockford base32 ULID. Calls within the same
// millisecond receive a monotonically incrementing random tail, per the
// ulid.Monotonic contract (rollover-safe).
func (g *IDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(g.clock.Now()), g.entropy)
	return id.String()
}

// Valid reports whether s parses as a well-formed ULID.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
