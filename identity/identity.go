// Package identity mints human-readable display names for new connections.
// Names carry no uniqueness guarantee; collisions are tolerated everywhere.
package identity

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var adjectives = []string{
	"Swift", "Brave", "Clever", "Mighty", "Gentle",
	"Silent", "Golden", "Cosmic", "Lucky", "Wild",
}

var nouns = []string{
	"Falcon", "Tiger", "Panda", "Otter", "Raven",
	"Dolphin", "Badger", "Phoenix", "Wolf", "Lynx",
}

// Generator produces display names from a fixed word-pair pool plus a
// numeric suffix in [0,100).
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator backed by the given source. Tests inject a
// seeded source for deterministic output.
func NewGenerator(src rand.Source) *Generator {
	return &Generator{
		rng: rand.New(src),
	}
}

// Default returns a generator seeded from the wall clock.
func Default() *Generator {
	return NewGenerator(rand.NewSource(time.Now().UnixNano()))
}

// Generate returns a fresh display name such as "SwiftFalcon42".
func (g *Generator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	adjective := adjectives[g.rng.Intn(len(adjectives))]
	noun := nouns[g.rng.Intn(len(nouns))]
	suffix := g.rng.Intn(100)

	return fmt.Sprintf("%s%s%d", adjective, noun, suffix)
}
