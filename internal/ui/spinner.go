package ui

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner is a caller-visible progress indicator that updates on a
// fixed time interval, independent of whatever work is in flight. It
// writes to stderr and degrades to a single status line when stderr is
// not a terminal.
type Spinner struct {
	message string
	out     *termenv.Output
	tty     bool

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSpinner creates a spinner with the given status message.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		out:     termenv.NewOutput(os.Stderr),
		tty:     term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// Start begins the spinner. Start on a running spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.done = make(chan struct{})

	if !s.tty {
		fmt.Fprintf(os.Stderr, "%s...\n", s.message)
		return
	}

	s.out.HideCursor()
	s.wg.Add(1)
	go s.spin(s.done)
}

func (s *Spinner) spin(done chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			fmt.Fprintf(os.Stderr, "\r%s %s", RenderAccent(spinnerFrames[frame%len(spinnerFrames)]), s.message)
			frame++
		}
	}
}

// Stop halts the spinner and clears its line. Stop on a stopped
// spinner is a no-op.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false

	if !s.tty {
		return
	}

	close(s.done)
	s.wg.Wait()
	fmt.Fprintf(os.Stderr, "\r%s\r", spaces(len(s.message)+2))
	s.out.ShowCursor()
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
