package features

import (
	"fmt"
	"time"
)

// Window is the half-open interval [Start, End) a feature record covers.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns the window of the given width ending at now.
func NewWindow(sizeMinutes int, now time.Time) (Window, error) {
	if sizeMinutes <= 0 {
		return Window{}, fmt.Errorf("%w: got %d", ErrInvalidWindow, sizeMinutes)
	}
	return Window{
		Start: now.Add(-time.Duration(sizeMinutes) * time.Minute),
		End:   now,
	}, nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}
