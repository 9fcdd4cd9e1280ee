package monitor

import (
	"pnt-integrity-alerts/internal/buffers"
)

// mofN debounces per-sample detections with an M-of-N rule: the filtered
// alarm is raised only once at least minDetections of the last sampleWindow
// samples tripped. The raw per-sample decision is surfaced separately as the
// spoofing flag. Monitors that embed it run the base pipeline first and hand
// the outcome to apply.
type mofN struct {
	minDetections int
	detections    *buffers.FifoRunningSum
	spoofingFlag  bool
}

func newMofN(minDetections, sampleWindow int) (*mofN, error) {
	if minDetections < 1 {
		return nil, &ConfigError{Field: "min_detections", Reason: "must be at least 1", Value: minDetections}
	}
	if sampleWindow < minDetections {
		return nil, &ConfigError{
			Field:  "sample_window",
			Reason: "must be at least as long as min_detections",
			Value:  sampleWindow,
		}
	}

	window, err := buffers.NewFifoRunningSum(sampleWindow)
	if err != nil {
		return nil, err
	}
	return &mofN{minDetections: minDetections, detections: window}, nil
}

// apply folds the raw outcome of one update into the detection window and
// rewrites the monitor's alarm to the filtered decision. Rejected and
// pending outcomes pass through without touching the window.
func (f *mofN) apply(c *core, raw Outcome) Outcome {
	if !raw.Decided() {
		return raw
	}

	flag := raw.Alarm()
	f.spoofingFlag = flag

	if flag {
		f.detections.Append(1)
	} else {
		f.detections.Append(0)
	}

	filtered := f.detections.Sum() >= float64(f.minDetections)
	c.alarm = filtered

	if filtered {
		return OutcomeAlarm
	}
	return OutcomeNominal
}

func (f *mofN) reset() {
	f.detections.Reset()
	f.spoofingFlag = false
}

// status decorates a base snapshot with the raw per-sample flag.
func (f *mofN) status(base Status) Status {
	flag := f.spoofingFlag
	base.SpoofingFlag = &flag
	return base
}
