package domain

// WindowSize is the number of latency samples kept per service.
const WindowSize = 10

// Window is a fixed-capacity ring of the most recent latency points.
// It is a value type: assigning a Window copies it, so pushing onto a copy
// never changes the history of the service it was copied from.
type Window struct {
	buf  [WindowSize]LatencyPoint
	head int // next write position
	n    int
}

// NewWindow builds a window from chronological points, keeping the last WindowSize.
func NewWindow(points ...LatencyPoint) Window {
	var w Window
	if len(points) > WindowSize {
		points = points[len(points)-WindowSize:]
	}
	for _, p := range points {
		w.Push(p)
	}
	return w
}

// Push appends p, evicting the oldest point once the window is full.
func (w *Window) Push(p LatencyPoint) {
	w.buf[w.head] = p
	w.head = (w.head + 1) % WindowSize
	if w.n < WindowSize {
		w.n++
	}
}

func (w Window) Len() int { return w.n }

// At returns the i-th point, oldest first.
func (w Window) At(i int) LatencyPoint {
	start := (w.head - w.n + WindowSize) % WindowSize
	return w.buf[(start+i)%WindowSize]
}

func (w Window) Last() (LatencyPoint, bool) {
	if w.n == 0 {
		return LatencyPoint{}, false
	}
	return w.At(w.n - 1), true
}

// Points returns a chronological copy of the window.
func (w Window) Points() []LatencyPoint {
	out := make([]LatencyPoint, w.n)
	for i := range out {
		out[i] = w.At(i)
	}
	return out
}

// Values returns the latency values, oldest first.
func (w Window) Values() []float64 {
	out := make([]float64, w.n)
	for i := range out {
		out[i] = w.At(i).Value
	}
	return out
}

func (w Window) Equal(o Window) bool {
	if w.n != o.n {
		return false
	}
	for i := 0; i < w.n; i++ {
		a, b := w.At(i), o.At(i)
		if a.Value != b.Value || !a.At.Equal(b.At) {
			return false
		}
	}
	return true
}

type LatencyStats struct {
	Avg, Min, Max float64
}

// Stats summarizes the window. ok is false when it holds no points.
func (w Window) Stats() (s LatencyStats, ok bool) {
	if w.n == 0 {
		return s, false
	}

	var sum float64
	s.Min, s.Max = w.At(0).Value, w.At(0).Value
	for i := 0; i < w.n; i++ {
		v := w.At(i).Value
		sum += v
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}
	s.Avg = sum / float64(w.n)

	return s, true
}
