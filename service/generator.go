package service

import (
	"math"
	"math/rand/v2"

	"github.com/beka-birhanu/claw-arbiter/model"
	"github.com/google/uuid"
)

// Layout constants.
const (
	defaultNegativeCount = 4
	defaultPositiveCount = 2

	layoutSize      = 240.0 // side of the square layout region
	placementMargin = 10.0  // distance kept from the region edge
	minSeparation   = 35.0  // minimum distance between two placed objects

	maxPlacementAttempts = 500 // candidates drawn before the separation is relaxed
)

// Generator produces random, well-separated object layouts.
// It is not safe for concurrent use.
type Generator struct {
	catalog       Catalog
	rng           *rand.Rand
	negativeCount int
	positiveCount int
	separation    float64
}

// GeneratorOption customises a Generator.
type GeneratorOption func(*Generator)

// WithCounts sets how many objects of each kind a layout holds.
func WithCounts(negative, positive int) GeneratorOption {
	return func(g *Generator) {
		g.negativeCount = negative
		g.positiveCount = positive
	}
}

// WithSeparation overrides the minimum pairwise distance.
func WithSeparation(d float64) GeneratorOption {
	return func(g *Generator) {
		g.separation = d
	}
}

// NewGenerator creates a generator sampling from catalog. A nil rng is
// replaced with a randomly seeded one.
func NewGenerator(catalog Catalog, rng *rand.Rand, opts ...GeneratorOption) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	g := &Generator{
		catalog:       catalog,
		rng:           rng,
		negativeCount: defaultNegativeCount,
		positiveCount: defaultPositiveCount,
		separation:    minSeparation,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Counts returns the number of negative and positive objects per layout.
func (g *Generator) Counts() (negative, positive int) {
	return g.negativeCount, g.positiveCount
}

// Generate returns a fresh layout: negative objects first, then positive.
func (g *Generator) Generate() []model.WorldObject {
	placed := make([]model.Point, 0, g.negativeCount+g.positiveCount)
	objects := make([]model.WorldObject, 0, g.negativeCount+g.positiveCount)

	for _, group := range []struct {
		kind    model.Kind
		entries []CatalogEntry
		count   int
	}{
		{model.KindNegative, g.catalog.Negative, g.negativeCount},
		{model.KindPositive, g.catalog.Positive, g.positiveCount},
	} {
		for _, entry := range g.sample(group.entries, group.count) {
			p := g.place(placed)
			placed = append(placed, p)
			objects = append(objects, model.WorldObject{
				ID:        uuid.NewString(),
				Kind:      group.kind,
				Label:     entry.Label,
				Magnitude: entry.Magnitude,
				X:         p.X,
				Y:         p.Y,
			})
		}
	}
	return objects
}

// sample picks count distinct entries uniformly without replacement. When
// the catalog is smaller than count every entry is used once.
func (g *Generator) sample(entries []CatalogEntry, count int) []CatalogEntry {
	if count > len(entries) {
		count = len(entries)
	}
	picked := make([]CatalogEntry, 0, count)
	for _, idx := range g.rng.Perm(len(entries))[:count] {
		picked = append(picked, entries[idx])
	}
	return picked
}

// place rejection-samples a point at least the separation away from every
// point in placed. After maxPlacementAttempts misses the separation is
// halved; once it falls below one unit the last candidate is accepted.
func (g *Generator) place(placed []model.Point) model.Point {
	span := layoutSize - 2*placementMargin
	threshold := g.separation
	for {
		var candidate model.Point
		for range maxPlacementAttempts {
			candidate = model.Point{
				X: g.rng.Float64()*span + placementMargin,
				Y: g.rng.Float64()*span + placementMargin,
			}
			if farEnough(candidate, placed, threshold) {
				return candidate
			}
		}
		threshold /= 2
		if threshold < 1 {
			return candidate
		}
	}
}

func farEnough(p model.Point, placed []model.Point, threshold float64) bool {
	for _, q := range placed {
		if distance(p, q) < threshold {
			return false
		}
	}
	return true
}

func distance(a, b model.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
