// Package metrics keeps running poll statistics per operator.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pannnnl/hkbus-eta/internal/models"
)

// running holds Welford's online mean/variance state, so no samples are stored
type running struct {
	count int
	mean  float64
	m2    float64
}

func (r *running) observe(v float64) {
	r.count++
	delta := v - r.mean
	r.mean += delta / float64(r.count)
	r.m2 += delta * (v - r.mean)
}

// stdDev is the population standard deviation, 0 below two samples
func (r *running) stdDev() float64 {
	if r.count < 2 {
		return 0
	}
	return math.Sqrt(r.m2 / float64(r.count))
}

type operatorStats struct {
	latency  running
	failures int
	last     time.Time
}

// PollLatency tracks how long ETA polls take per operator
type PollLatency struct {
	mu  sync.Mutex
	ops map[models.Operator]*operatorStats
}

func NewPollLatency() *PollLatency {
	return &PollLatency{ops: make(map[models.Operator]*operatorStats)}
}

// Observe records one poll. Failed polls count towards failures only.
func (p *PollLatency) Observe(op models.Operator, took time.Duration, at time.Time, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.ops[op]
	if !ok {
		s = &operatorStats{}
		p.ops[op] = s
	}
	s.last = at
	if err != nil {
		s.failures++
		return
	}
	s.latency.observe(float64(took) / float64(time.Millisecond))
}

// LatencySummary is the JSON view of one operator's statistics
type LatencySummary struct {
	Operator models.Operator `json:"operator"`
	Polls    int             `json:"polls"`
	Failures int             `json:"failures"`
	MeanMs   float64         `json:"meanMs"`
	StdDevMs float64         `json:"stdDevMs"`
	LastPoll time.Time       `json:"lastPoll"`
}

// Summary returns statistics for every operator seen, ordered by operator
func (p *PollLatency) Summary() []LatencySummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]LatencySummary, 0, len(p.ops))
	for op, s := range p.ops {
		out = append(out, LatencySummary{
			Operator: op,
			Polls:    s.latency.count,
			Failures: s.failures,
			MeanMs:   math.Round(s.latency.mean*10) / 10,
			StdDevMs: math.Round(s.latency.stdDev()*10) / 10,
			LastPoll: s.last,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operator < out[j].Operator })
	return out
}
