package features

import (
	"math/rand/v2"
	"sync"

	"audio-analyzer/pkg/models"
)

// Labeler assigns the speaker and sentiment columns of a segment.
//
// No classifier exists behind these columns. RandomLabeler, the default,
// draws both labels uniformly at random and ignores the audio.
type Labeler interface {
	Label(segment int, samples []float64) (speaker, sentiment string)
}

// RandomLabeler draws a speaker from models.Speakers and a sentiment from
// models.Sentiments, independently for every segment.
type RandomLabeler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomLabeler returns a labeler backed by the global random source.
func NewRandomLabeler() *RandomLabeler {
	return &RandomLabeler{}
}

// NewSeededLabeler returns a labeler with a reproducible sequence.
func NewSeededLabeler(seed uint64) *RandomLabeler {
	return &RandomLabeler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *RandomLabeler) Label(_ int, _ []float64) (string, string) {
	speaker := models.Speakers[l.intN(len(models.Speakers))]
	sentiment := models.Sentiments[l.intN(len(models.Sentiments))]
	return speaker, sentiment
}

func (l *RandomLabeler) intN(n int) int {
	if l.rng == nil {
		return rand.IntN(n)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.IntN(n)
}

// FixedLabeler returns the same labels for every segment.
type FixedLabeler struct {
	Speaker   string
	Sentiment string
}

func (l FixedLabeler) Label(_ int, _ []float64) (string, string) {
	return l.Speaker, l.Sentiment
}
