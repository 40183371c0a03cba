package platform

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/gammazero/deque"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"lautenbacher.net/gowave/sensor"
	"lautenbacher.net/gowave/util"
)

const (
	maxSensorHistory = 120
	sparkWidth       = 40
	viewerTitle      = " GOWAVE Sensor Viewer "
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

type sensorStats struct {
	min    float64
	max    float64
	mean   float64
	median float64
	stdDev float64
}

// sensorHistory keeps the most recent velocity and temperature values.
type sensorHistory struct {
	mu       sync.Mutex
	velocity deque.Deque[float64]
	tempF    deque.Deque[float64]
}

func newSensorHistory() *sensorHistory {
	h := &sensorHistory{}
	h.velocity.Grow(maxSensorHistory)
	h.tempF.Grow(maxSensorHistory)
	return h
}

func pushBounded(q *deque.Deque[float64], v float64) {
	if q.Len() == maxSensorHistory {
		q.PopFront()
	}
	q.PushBack(v)
}

func (h *sensorHistory) Add(r sensor.Reading) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r.HasVelocity {
		pushBounded(&h.velocity, float64(r.Velocity))
	}
	pushBounded(&h.tempF, float64(r.TempF))
}

// Lines renders stats and a sparkline for both series.
func (h *sensorHistory) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	vel := snapshot(&h.velocity)
	temp := snapshot(&h.tempF)
	return []string{
		fmt.Sprintf("[yellow]Vel [rad/s][-] %s", formatStats(calculateStats(vel))),
		" [green]" + sparkline(vel, sparkWidth) + "[-]",
		fmt.Sprintf("[yellow]Temp [F]   [-] %s", formatStats(calculateStats(temp))),
		" [red]" + sparkline(temp, sparkWidth) + "[-]",
	}
}

func snapshot(q *deque.Deque[float64]) []float64 {
	data := make([]float64, q.Len())
	for i := range q.Len() {
		data[i] = q.At(i)
	}
	return data
}

func formatStats(s sensorStats) string {
	return fmt.Sprintf("[%6.2f|%6.2f|%6.2f] σ %5.2f", s.min, s.mean, s.max, s.stdDev)
}

// sparkline scales the last width values between their min and max.
func sparkline(data []float64, width int) string {
	if len(data) > width {
		data = data[len(data)-width:]
	}
	if len(data) == 0 {
		return strings.Repeat(" ", width)
	}
	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var buf strings.Builder
	top := len(sparkLevels) - 1
	for _, v := range data {
		idx := 0
		if hi > lo {
			idx = int(math.Round((v - lo) / (hi - lo) * float64(top)))
		}
		buf.WriteRune(sparkLevels[util.Clamp(idx, 0, top)])
	}
	buf.WriteString(strings.Repeat(" ", width-len(data)))
	return buf.String()
}

func calculateStats(data []float64) sensorStats {
	if len(data) == 0 {
		return sensorStats{}
	}

	var sum float64
	min, max := data[0], data[0]
	for _, v := range data {
		min = math.Min(min, v)
		max = math.Max(max, v)
		sum += v
	}
	mean := sum / float64(len(data))

	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2.0
	} else {
		median = sorted[mid]
	}

	var sumOfSquares float64
	for _, v := range data {
		sumOfSquares += (v - mean) * (v - mean)
	}

	return sensorStats{
		min:    min,
		max:    max,
		mean:   mean,
		median: median,
		stdDev: math.Sqrt(sumOfSquares / float64(len(data))),
	}
}

// SensorViewer is a standalone TUI showing the auxiliary display and
// the sensor history on real hardware.
type SensorViewer struct {
	tuiApp   *tview.Application
	view     *tview.TextView
	aux      *textBuffer
	history  *sensorHistory
	ossignal chan os.Signal
	done     chan struct{}
}

func NewSensorViewer(aux *textBuffer, ossignal chan os.Signal) *SensorViewer {
	return &SensorViewer{
		tuiApp:   tview.NewApplication(),
		aux:      aux,
		history:  newSensorHistory(),
		ossignal: ossignal,
		done:     make(chan struct{}),
	}
}

// Start runs the TUI until Stop is called.
func (sv *SensorViewer) Start() {
	defer close(sv.done)
	sv.setupUI()
	if err := sv.tuiApp.Run(); err != nil {
		slog.Error("Error running SensorViewer TUI", "error", err)
		sv.ossignal <- os.Interrupt
	}
}

func (sv *SensorViewer) Stop() {
	sv.tuiApp.Stop()
	<-sv.done
}

// Update records r and schedules a redraw. Safe for concurrent use.
func (sv *SensorViewer) Update(r sensor.Reading) {
	sv.history.Add(r)
	text := strings.Join(append(sv.aux.Lines(), sv.history.Lines()...), "\n")
	sv.tuiApp.QueueUpdateDraw(func() {
		sv.view.SetText(text)
	})
}

func (sv *SensorViewer) setupUI() {
	sv.view = tview.NewTextView()
	sv.view.SetDynamicColors(true)
	sv.view.SetTextAlign(tview.AlignLeft)
	sv.view.SetBackgroundColor(tcell.ColorDarkSlateGray)
	sv.view.SetBorder(true).SetTitle(viewerTitle).SetTitleColor(tcell.ColorLightBlue)

	intro := tview.NewTextView()
	intro.SetBorder(true).SetTitle(" GOWAVE ").SetTitleColor(tcell.ColorLightBlue)
	intro.SetText("Displaying real sensor values.\nHit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload config file and restart")
	intro.SetTextAlign(tview.AlignCenter)
	intro.SetDynamicColors(true)
	intro.SetBackgroundColor(tcell.ColorDarkSlateGray)

	layout := tview.NewFlex().SetDirection(tview.FlexRow)
	layout.AddItem(intro, 4, 1, false)
	layout.AddItem(sv.view, lcdRows+6, 1, true)

	sv.tuiApp.SetRoot(layout, true).SetFocus(sv.view)
	sv.tuiApp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q', 'Q':
			sv.ossignal <- os.Interrupt
			return nil
		case 'r', 'R':
			sv.ossignal <- syscall.SIGHUP
			return nil
		}
		return event
	})
}
