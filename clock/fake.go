package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced clock. Pending timers are kept sorted by
// wake time and fired in order by Advance.
type Fake struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	pending []*fakeTimer
}

type fakeTimer struct {
	clock  *Fake
	wake   time.Time
	period time.Duration
	ch     chan time.Time
	fn     func()
}

var (
	_ Clock  = (*Fake)(nil)
	_ Timer  = (*fakeTimer)(nil)
	_ Ticker = fakeTicker{}
)

func NewFake() *Fake {
	f := &Fake{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	t := &fakeTimer{clock: f, ch: make(chan time.Time, 1)}
	f.schedule(t, d)
	return t.ch
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{clock: f, fn: fn}
	f.schedule(t, d)
	return t
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	t := &fakeTimer{clock: f, period: d, ch: make(chan time.Time, 1)}
	f.schedule(t, d)
	return fakeTicker{t}
}

func (f *Fake) schedule(t *fakeTimer, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.wake = f.now.Add(d)
	f.insert(t)
	f.cond.Broadcast()
}

// insert keeps f.pending ordered by wake time; equal wake times keep
// insertion order. Caller holds f.mu.
func (f *Fake) insert(t *fakeTimer) {
	i := sort.Search(len(f.pending), func(i int) bool {
		return f.pending[i].wake.After(t.wake)
	})
	f.pending = append(f.pending, nil)
	copy(f.pending[i+1:], f.pending[i:])
	f.pending[i] = t
}

// remove reports whether t was pending. Caller holds f.mu.
func (f *Fake) remove(t *fakeTimer) bool {
	for i, p := range f.pending {
		if p == t {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves the clock forward by d, firing every timer that falls
// due on the way in wake order. Callbacks run synchronously.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	for len(f.pending) > 0 && !f.pending[0].wake.After(target) {
		t := f.pending[0]
		f.pending = f.pending[1:]
		f.now = t.wake
		if t.period > 0 {
			t.wake = t.wake.Add(t.period)
			f.insert(t)
		}
		now := f.now
		f.mu.Unlock()

		if t.fn != nil {
			t.fn()
		} else {
			select {
			case t.ch <- now:
			default:
			}
		}

		f.mu.Lock()
	}
	f.now = target
	f.mu.Unlock()
}

// Pending returns the number of scheduled timers and tickers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// BlockUntil waits until at least n timers are scheduled.
func (f *Fake) BlockUntil(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.pending) < n {
		f.cond.Wait()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.clock.remove(t)
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

// fakeTicker adapts a periodic fakeTimer to Ticker.
type fakeTicker struct {
	*fakeTimer
}

func (t fakeTicker) Stop() { t.fakeTimer.Stop() }

func (t *fakeTimer) Reset(d time.Duration) {
	f := t.clock
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remove(t)
	t.period = d
	t.wake = f.now.Add(d)
	f.insert(t)
	f.cond.Broadcast()
}
