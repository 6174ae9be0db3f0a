package app

// RSSIRing keeps the most recent RSSI samples of the tracked signal.
type RSSIRing struct {
	buf  []float64
	next int
	full bool
}

func NewRSSIRing(capacity int) *RSSIRing {
	return &RSSIRing{buf: make([]float64, capacity)}
}

func (r *RSSIRing) Push(v float64) {
	r.buf[r.next] = v
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// Values returns the samples oldest first.
func (r *RSSIRing) Values() []float64 {
	if !r.full {
		if r.next == 0 {
			return nil
		}
		return append([]float64(nil), r.buf[:r.next]...)
	}
	out := make([]float64, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// Last returns the newest sample, or 0 when empty.
func (r *RSSIRing) Last() float64 {
	switch {
	case r.next > 0:
		return r.buf[r.next-1]
	case r.full:
		return r.buf[len(r.buf)-1]
	}
	return 0
}

func (r *RSSIRing) Len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Reset drops every sample.
func (r *RSSIRing) Reset() {
	r.next = 0
	r.full = false
}
