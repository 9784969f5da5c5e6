package telemetry

// DefaultWindowSize is the default Window capacity: six minutes of
// samples at 5 Hz. Analysis only reads the most recent samples, so a
// bounded window is observably equivalent to unbounded retention.
const DefaultWindowSize = 1800

// Window is a rolling buffer of the most recent telemetry samples.
// When full, appending overwrites the oldest sample. It also tracks
// the total number of samples ever appended, which drives the
// tactical-suggestion cadence gate.
//
// Window is not safe for concurrent use. The session registry
// serializes all access.
type Window struct {
	buf        []Sample
	head, tail int64
	total      int64
}

// NewWindow creates a Window retaining at most size samples.
// If size <= 0 it uses DefaultWindowSize.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{buf: make([]Sample, size)}
}

// Append adds a sample, evicting the oldest if the window is full.
func (w *Window) Append(s Sample) {
	w.buf[w.tail%int64(len(w.buf))] = s
	w.tail++
	if w.tail-w.head > int64(len(w.buf)) {
		w.head = w.tail - int64(len(w.buf))
	}
	w.total++
}

// Len returns the number of samples currently retained.
func (w *Window) Len() int {
	return int(w.tail - w.head)
}

// Total returns the number of samples appended since creation,
// including evicted ones.
func (w *Window) Total() int64 {
	return w.total
}

// Tail returns up to the last n samples in arrival order.
func (w *Window) Tail(n int) []Sample {
	if n > w.Len() {
		n = w.Len()
	}
	if n <= 0 {
		return nil
	}
	out := make([]Sample, 0, n)
	for i := w.tail - int64(n); i < w.tail; i++ {
		out = append(out, w.buf[i%int64(len(w.buf))])
	}
	return out
}

// Means computes the mean of the last n samples across the five
// tactical dimensions. ok is false when the window is empty.
func (w *Window) Means(n int) (m Means, ok bool) {
	recent := w.Tail(n)
	if len(recent) == 0 {
		return Means{}, false
	}
	for _, s := range recent {
		m.Positive += s.Happy
		m.Engagement += s.Engagement
		m.Stress += s.Stress
		m.Confidence += s.Confidence
		m.Attention += s.Attention
	}
	c := float64(len(recent))
	m.Positive /= c
	m.Engagement /= c
	m.Stress /= c
	m.Confidence /= c
	m.Attention /= c
	return m, true
}
