// Package walkforward runs rolling-window re-optimization studies and
// scores how well optimized strategy parameters generalize out of
// sample.
package walkforward

import (
	"fmt"
	"time"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
)

// Window is one in-sample/out-of-sample span. The out-of-sample range
// starts exactly where the in-sample range ends; end bounds are
// exclusive.
type Window struct {
	Index            int       `json:"index"`
	InSampleStart    time.Time `json:"in_sample_start"`
	InSampleEnd      time.Time `json:"in_sample_end"`
	OutOfSampleStart time.Time `json:"out_of_sample_start"`
	OutOfSampleEnd   time.Time `json:"out_of_sample_end"`
}

// GenerateWindows lays rolling windows over [start, end). Each window
// covers inSampleDays then outOfSampleDays; the next window starts
// stepDays after the previous one. Generation stops once a full window
// no longer fits before end. Windows overlap when stepDays is smaller
// than inSampleDays.
func GenerateWindows(start, end time.Time, inSampleDays, outOfSampleDays, stepDays int) ([]Window, error) {
	if inSampleDays <= 0 || outOfSampleDays <= 0 || stepDays <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("window days must be positive, got in_sample=%d out_of_sample=%d step=%d",
				inSampleDays, outOfSampleDays, stepDays))
	}

	var windows []Window
	for cursor := start; ; cursor = cursor.AddDate(0, 0, stepDays) {
		isEnd := cursor.AddDate(0, 0, inSampleDays)
		oosEnd := isEnd.AddDate(0, 0, outOfSampleDays)
		if oosEnd.After(end) {
			break
		}
		windows = append(windows, Window{
			Index:            len(windows),
			InSampleStart:    cursor,
			InSampleEnd:      isEnd,
			OutOfSampleStart: isEnd,
			OutOfSampleEnd:   oosEnd,
		})
	}

	if len(windows) == 0 {
		return nil, core.WrapError(core.ErrNoWindows,
			fmt.Errorf("range %s to %s is too short for a %d+%d day window",
				start.Format("2006-01-02"), end.Format("2006-01-02"), inSampleDays, outOfSampleDays))
	}
	return windows, nil
}
