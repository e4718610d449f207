package runner

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator generates journal ids and attempt ids.
// Implemented by UUIDv7Generator, ULIDGenerator and FixedGenerator.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7 (36 characters).
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ULIDGenerator generates monotonic ULIDs (26 characters, Crockford base32).
// Ids generated within the same millisecond still sort in generation order.
//
// Thread-safety: ULIDGenerator is safe for concurrent use via internal mutex.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewULIDGenerator creates a ULID generator backed by crypto/rand.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Generate returns the next ULID.
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// NewIDGenerator returns the generator for a scheme name: "uuid" (default)
// or "ulid".
func NewIDGenerator(scheme string) (IDGenerator, error) {
	switch scheme {
	case "", "uuid", "uuidv7":
		return UUIDv7Generator{}, nil
	case "ulid":
		return NewULIDGenerator(), nil
	default:
		return nil, &RunError{
			Code:    ErrCodeInvalidOption,
			Message: "unknown id scheme " + scheme,
		}
	}
}

// FixedGenerator returns predetermined ids for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("journal-1", "attempt-1", "attempt-2")
//	gen.Generate() // "journal-1"
//	gen.Generate() // "attempt-1"
//	gen.Generate() // "attempt-2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, to catch test misconfiguration.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
