// Package progress reports upload completion to the operator. The transfer
// loop talks only to the Sink capability; rendering is a side concern that
// must never slow the hot path down.
package progress

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/term"

	"github.com/Yarik9008/GroundLinkMonitorClient/internal/logging"
)

// Sink accepts monotonically increasing byte counts from the transfer loop.
// Implementations must not block: Add is called after every queued chunk.
type Sink interface {
	Add(n int64)
}

// Nop is the default Sink when progress reporting is disabled.
type Nop struct{}

func (Nop) Add(int64) {}

// Tracker counts transferred bytes for one logical upload. Safe for the
// transfer loop and the reporter goroutine to share.
type Tracker struct {
	total    int64
	sent     atomic.Int64
	start    time.Time
	filename string
}

// NewTracker creates a tracker for a file of the given total size.
func NewTracker(filename string, total int64) *Tracker {
	return &Tracker{
		total:    total,
		start:    time.Now(),
		filename: filename,
	}
}

// Add records n more bytes handed to the transport.
func (t *Tracker) Add(n int64) {
	t.sent.Add(n)
}

// Seed sets the byte count to the server-reported resume offset, so the bar
// reflects completion of the whole file rather than of the remainder.
func (t *Tracker) Seed(n int64) {
	t.sent.Store(n)
}

// Sent returns the current byte count.
func (t *Tracker) Sent() int64 {
	return t.sent.Load()
}

// Total returns the declared file size.
func (t *Tracker) Total() int64 {
	return t.total
}

// Percent returns completion in [0, 100].
func (t *Tracker) Percent() float64 {
	if t.total <= 0 {
		return 100
	}
	return float64(t.sent.Load()) / float64(t.total) * 100
}

// Elapsed returns time since the tracker was created.
func (t *Tracker) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Reporter renders a ticker-driven console bar from a Tracker. The bar is
// drawn only when stdout is a terminal; progress is still logged otherwise.
type Reporter struct {
	tracker     *Tracker
	ticker      *time.Ticker
	done        chan struct{}
	showConsole bool
	barWidth    int
}

// NewReporter creates a progress reporter over tracker.
func NewReporter(tracker *Tracker) *Reporter {
	showConsole := term.IsTerminal(int(os.Stdout.Fd()))

	barWidth := 30
	if showConsole {
		// Leave room for percentage, byte counts, rate and ETA.
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 80 {
			barWidth = min(w-60, 50)
		}
	}

	return &Reporter{
		tracker:     tracker,
		ticker:      time.NewTicker(1 * time.Second),
		done:        make(chan struct{}),
		showConsole: showConsole,
		barWidth:    barWidth,
	}
}

// Start begins progress reporting
func (r *Reporter) Start() {
	go r.reportLoop()
}

// Stop stops progress reporting
func (r *Reporter) Stop() {
	r.ticker.Stop()
	close(r.done)
	if r.showConsole {
		fmt.Println() // Print newline after progress bar
	}
}

// reportLoop runs the progress reporting loop
func (r *Reporter) reportLoop() {
	var lastSent int64
	lastUpdate := time.Now()

	// For calculating moving average speed
	const speedWindowSize = 5
	speedHistory := make([]float64, 0, speedWindowSize)

	for {
		select {
		case <-r.ticker.C:
			r.update(&lastSent, &lastUpdate, &speedHistory)
		case <-r.done:
			return
		}
	}
}

// update recomputes the rate window and redraws the bar
func (r *Reporter) update(lastSent *int64, lastUpdate *time.Time, speedHistory *[]float64) {
	now := time.Now()
	sent := r.tracker.Sent()

	// Current speed since the last tick, in MB/s
	timeDiff := now.Sub(*lastUpdate).Seconds()
	byteDiff := sent - *lastSent
	currentSpeed := float64(byteDiff) / 1024 / 1024 / timeDiff

	*speedHistory = append(*speedHistory, currentSpeed)
	if len(*speedHistory) > 5 { // speedWindowSize
		*speedHistory = (*speedHistory)[1:] // Remove oldest entry
	}

	var avgSpeed float64
	for _, s := range *speedHistory {
		avgSpeed += s
	}
	if len(*speedHistory) > 0 {
		avgSpeed /= float64(len(*speedHistory))
	}

	// Calculate ETA
	var eta string
	if avgSpeed > 0.1 { // Only show ETA if speed is reasonable
		remainingBytes := r.tracker.Total() - sent
		remainingTime := float64(remainingBytes) / (avgSpeed * 1024 * 1024)

		switch {
		case remainingTime < 60:
			eta = fmt.Sprintf("%.0f sec", remainingTime)
		case remainingTime < 3600:
			eta = fmt.Sprintf("%.1f min", remainingTime/60)
		default:
			eta = fmt.Sprintf("%.1f hr", remainingTime/3600)
		}
	} else {
		eta = "calculating..."
	}

	// Log progress periodically (every 10 seconds)
	if int(r.tracker.Elapsed().Seconds())%10 == 0 {
		logging.LogUploadProgress(r.tracker.filename, sent, r.tracker.Total(), avgSpeed)
	}

	if r.showConsole {
		r.draw(sent, avgSpeed, eta)
	}

	// Update for next iteration
	*lastSent = sent
	*lastUpdate = now
}

// draw renders the progress bar line in place
func (r *Reporter) draw(sent int64, avgSpeed float64, eta string) {
	percent := r.tracker.Percent()
	bar := renderBar(percent, r.barWidth)

	fmt.Printf("\r[%s] %.1f%% (%.2f/%.2f MB) at %.2f MB/s ETA: %s",
		bar,
		percent,
		float64(sent)/1024/1024,
		float64(r.tracker.Total())/1024/1024,
		avgSpeed,
		eta)
}

// renderBar builds a fixed-width bar for the given completion percentage.
func renderBar(percent float64, width int) string {
	completed := int(float64(width) * percent / 100)
	if completed > width {
		completed = width
	}
	if completed < 0 {
		completed = 0
	}
	return strings.Repeat("█", completed) + strings.Repeat("░", width-completed)
}
