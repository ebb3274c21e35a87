// Package progress drives a terminal spinner for cmd/dupsentry while a
// scan is in flight. The core entry points are single blocking calls with
// no per-file progress hook, so this animates an indeterminate spinner on
// a ticker rather than a determinate bar keyed to a known total.
package progress

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Spinner wraps an indeterminate progress bar animated by a background
// ticker, since the scan it decorates exposes no per-file callback.
type Spinner struct {
	bar  *progressbar.ProgressBar
	stop chan struct{}
	done chan struct{}
}

// NewSpinner builds a spinner labeled with label, writing to stderr so it
// never contaminates a piped stdout report.
func NewSpinner(label string) *Spinner {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Spinner{bar: bar, stop: make(chan struct{}), done: make(chan struct{})}
}

// Start begins animating the spinner until Stop is called.
func (s *Spinner) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.bar.Add(1)
			}
		}
	}()
}

// Stop halts the animation and clears the spinner from the terminal.
func (s *Spinner) Stop() {
	close(s.stop)
	<-s.done
	s.bar.Finish()
	s.bar.Clear()
}
