package upstream

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Strategy selects one target from the currently healthy set.
type Strategy interface {
	Next(targets []string) string
	Name() string
}

// NewStrategy creates a selection strategy by name
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case "round-robin", "round_robin", "":
		return &roundRobin{}, nil
	case "random":
		return &random{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}, nil
	case "least-connections", "least_connections":
		return NewLeastConnections(), nil
	default:
		return nil, fmt.Errorf("unknown load balancing strategy: %s", name)
	}
}

type roundRobin struct {
	mu      sync.Mutex
	current int
}

func (r *roundRobin) Next(targets []string) string {
	if len(targets) == 0 {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	target := targets[r.current%len(targets)]
	r.current++

	return target
}

func (r *roundRobin) Name() string { return "round_robin" }

type random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *random) Next(targets []string) string {
	if len(targets) == 0 {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return targets[r.rng.Intn(len(targets))]
}

func (r *random) Name() string { return "random" }

// LeastConnections tracks in-flight requests per target and picks the
// least busy one. Callers must pair Acquire with Release.
type LeastConnections struct {
	mu       sync.Mutex
	inFlight map[string]int
}

func NewLeastConnections() *LeastConnections {
	return &LeastConnections{inFlight: make(map[string]int)}
}

func (l *LeastConnections) Next(targets []string) string {
	if len(targets) == 0 {
		return ""
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	selected := targets[0]
	for _, target := range targets[1:] {
		if l.inFlight[target] < l.inFlight[selected] {
			selected = target
		}
	}

	return selected
}

func (l *LeastConnections) Acquire(target string) {
	l.mu.Lock()
	l.inFlight[target]++
	l.mu.Unlock()
}

func (l *LeastConnections) Release(target string) {
	l.mu.Lock()
	if l.inFlight[target] > 0 {
		l.inFlight[target]--
	}
	l.mu.Unlock()
}

func (l *LeastConnections) Name() string { return "least_connections" }
