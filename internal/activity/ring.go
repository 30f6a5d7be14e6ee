package activity

import "github.com/bnema/afkguard/internal/domain"

// ring is a fixed-capacity sample buffer that evicts the oldest entry.
type ring struct {
	buf   []domain.Sample
	start int
	n     int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]domain.Sample, capacity)}
}

func (r *ring) push(s domain.Sample) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = s
		r.n++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) last() (domain.Sample, bool) {
	if r.n == 0 {
		return domain.Sample{}, false
	}
	return r.buf[(r.start+r.n-1)%len(r.buf)], true
}

func (r *ring) snapshot() []domain.Sample {
	out := make([]domain.Sample, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func (r *ring) len() int {
	return r.n
}

func (r *ring) clear() {
	r.start = 0
	r.n = 0
}

// resize keeps the newest samples that fit the new capacity.
func (r *ring) resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == len(r.buf) {
		return
	}
	samples := r.snapshot()
	if len(samples) > capacity {
		samples = samples[len(samples)-capacity:]
	}
	r.buf = make([]domain.Sample, capacity)
	r.start = 0
	r.n = copy(r.buf, samples)
}
