package upstream

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"
)

// TargetStatus is the probe history for one upstream target.
type TargetStatus struct {
	Target       string    `json:"target"`
	Healthy      bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastSuccess  time.Time `json:"last_success,omitempty"`
	FailureCount int       `json:"failure_count"`
}

// ProberConfig holds health prober settings
type ProberConfig struct {
	Endpoint    string        // Probe path (default: "/health")
	Interval    time.Duration // How often to probe (default: 10s)
	Timeout     time.Duration // Per-probe timeout (default: 5s)
	MaxFailures int           // Consecutive failures before unhealthy (default: 3)
}

// Prober periodically probes upstream targets and maintains the set of
// healthy ones. Targets start healthy so a cold start never rejects
// traffic before the first probe completes.
type Prober struct {
	mu      sync.RWMutex
	targets []string
	status  map[string]*TargetStatus
	healthy []string

	endpoint    string
	interval    time.Duration
	timeout     time.Duration
	maxFailures int

	stopOnce sync.Once
	stop     chan struct{}
}

func NewProber(targets []string, cfg ProberConfig) *Prober {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "/health"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}

	p := &Prober{
		targets:     targets,
		status:      make(map[string]*TargetStatus),
		healthy:     append([]string(nil), targets...),
		endpoint:    cfg.Endpoint,
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		maxFailures: cfg.MaxFailures,
		stop:        make(chan struct{}),
	}

	for _, target := range targets {
		p.status[target] = &TargetStatus{Target: target, Healthy: true, LastCheck: time.Now()}
	}

	return p
}

// Start begins periodic probing until Stop is called
func (p *Prober) Start() {
	go func() {
		p.probeAll()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.probeAll()
			case <-p.stop:
				return
			}
		}
	}()
}

func (p *Prober) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Prober) probeAll() {
	var wg sync.WaitGroup

	for _, target := range p.targets {
		wg.Add(1)
		go func(t string) {
			defer wg.Done()
			p.probe(t)
		}(target)
	}

	wg.Wait()
	p.refreshHealthy()
}

func (p *Prober) probe(target string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target+p.endpoint, nil)
	if err != nil {
		p.record(target, false)
		return
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		p.record(target, false)
		return
	}
	defer resp.Body.Close()

	p.record(target, resp.StatusCode >= 200 && resp.StatusCode < 400)
}

func (p *Prober) record(target string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := p.status[target]
	status.LastCheck = time.Now()

	if ok {
		status.LastSuccess = time.Now()
		status.FailureCount = 0
		if !status.Healthy {
			log.Printf("Upstream %s recovered", target)
			status.Healthy = true
		}
		return
	}

	status.FailureCount++
	if status.Healthy && status.FailureCount >= p.maxFailures {
		log.Printf("Upstream %s marked unhealthy after %d failed probes", target, status.FailureCount)
		status.Healthy = false
	}
}

func (p *Prober) refreshHealthy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	healthy := make([]string, 0, len(p.targets))
	for _, target := range p.targets {
		if p.status[target].Healthy {
			healthy = append(healthy, target)
		}
	}

	p.healthy = healthy
}

// Healthy returns a copy of the currently healthy target list
func (p *Prober) Healthy() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	targets := make([]string, len(p.healthy))
	copy(targets, p.healthy)

	return targets
}

// Status returns a snapshot of all target statuses
func (p *Prober) Status() []TargetStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]TargetStatus, 0, len(p.targets))
	for _, target := range p.targets {
		out = append(out, *p.status[target])
	}

	return out
}
