package series

import (
	"fmt"

	"github.com/cryoclim/shelfmelt/pkg/calendar"
)

// WindowError reports an unusable running-window configuration.
type WindowError struct {
	Length int
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("running window length %d must be a positive odd integer", e.Length)
}

// Window configures a centered running window. Length must be odd so the
// window is symmetric; windows are grouped by summer and never cross a
// summer boundary.
type Window struct {
	Length int
	Split  calendar.SplitMonth
}

// Side returns the number of days on each side of the center.
func (w Window) Side() int {
	return (w.Length - 1) / 2
}

func (w Window) validate() error {
	if w.Length < 1 || w.Length%2 == 0 {
		return &WindowError{Length: w.Length}
	}
	return nil
}

// RunningMean computes the centered running mean of s under w. The first and
// last Side days of every summer have no full window and are NoData; a
// window containing any NoData input is NoData. Nothing is extrapolated or
// wrapped across summer boundaries.
func RunningMean(s Series, w Window) (Series, error) {
	if err := w.validate(); err != nil {
		return Series{}, err
	}

	out := s.Copy()
	side := w.Side()
	for _, slice := range out.BySummer(w.Split) {
		src := make([]float64, len(slice.Values))
		copy(src, slice.Values)
		for i := range slice.Values {
			if i < side || i >= len(src)-side {
				slice.Values[i] = NoData
				continue
			}
			sum := 0.0
			ok := true
			for j := i - side; j <= i+side; j++ {
				if IsNoData(src[j]) {
					ok = false
					break
				}
				sum += src[j]
			}
			if !ok {
				slice.Values[i] = NoData
				continue
			}
			slice.Values[i] = sum / float64(w.Length)
		}
	}
	return out, nil
}
