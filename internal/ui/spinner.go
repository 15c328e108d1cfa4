package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// SimpleSpinner animates a one-line wait on stdout without a bubbletea
// program. Used before the session UI owns the terminal.
type SimpleSpinner struct {
	label   string
	frames  []string
	period  time.Duration
	done    chan struct{}
	stopped bool
}

// NewConnectionSpinner builds a globe-style spinner for dial/handshake
// waits.
func NewConnectionSpinner(label string) *SimpleSpinner {
	return &SimpleSpinner{
		label:  label,
		frames: spinner.Globe.Frames,
		period: 180 * time.Millisecond,
		done:   make(chan struct{}),
	}
}

func (s *SimpleSpinner) Start() {
	go func() {
		ticker := time.NewTicker(s.period)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Printf("\r%s %s", SpinnerStyle.Render(s.frames[i%len(s.frames)]), s.label)
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop clears the spinner line. Safe to call after Error.
func (s *SimpleSpinner) Stop() {
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.done)
	fmt.Print("\r\033[K")
}

// Error stops the spinner and leaves a styled failure line behind.
func (s *SimpleSpinner) Error(message string) {
	s.Stop()
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), message)
}
