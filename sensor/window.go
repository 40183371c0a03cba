package sensor

import "github.com/gammazero/deque"

// Window is a sliding window over the most recent samples.
type Window struct {
	values deque.Deque[float32]
	size   int
}

func NewWindow(size int) *Window {
	w := &Window{size: max(size, 1)}
	w.values.Grow(w.size)
	return w
}

// Push adds v, dropping the oldest sample once the window is full.
func (w *Window) Push(v float32) {
	w.values.PushBack(v)
	for w.values.Len() > w.size {
		w.values.PopFront()
	}
}

func (w *Window) Full() bool {
	return w.values.Len() == w.size
}

func (w *Window) Len() int {
	return w.values.Len()
}

// Average of the samples held, 0 when empty.
func (w *Window) Average() float32 {
	n := w.values.Len()
	if n == 0 {
		return 0
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += w.values.At(i)
	}
	return sum / float32(n)
}
