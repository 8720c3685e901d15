package randutil

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float64() float64
}

// Locked is a Source safe for use from several goroutines.
type Locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSource returns a seeded Source. A zero seed draws from the wall clock.
func NewSource(seed int64) *Locked {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Locked{r: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

// Float64 returns the next uniform float in [0, 1).
func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// Clamp bounds num to [min, max].
func Clamp(num, min, max float64) float64 {
	return math.Max(min, math.Min(max, num))
}

// Range returns a uniform value in [min, max).
func Range(src Source, min, max float64) float64 {
	return min + src.Float64()*(max-min)
}

// Floor returns floor(Range(min, max)) as an int.
func Floor(src Source, min, max float64) int {
	return int(math.Floor(Range(src, min, max)))
}

// Choice picks one element of items uniformly. items must not be empty.
func Choice[T any](src Source, items []T) T {
	i := int(math.Floor(src.Float64() * float64(len(items))))
	if i >= len(items) {
		i = len(items) - 1
	}
	return items[i]
}

// Hex returns a random uppercase hex code in [0, max) padded to width digits.
func Hex(src Source, max float64, width int) string {
	return fmt.Sprintf("%0*X", width, Floor(src, 0, max))
}
