package stats

import (
	"fmt"
	"math"
)

// Wheeler's scaling constants for an individuals chart and its moving-range chart.
const (
	naturalLimitFactor = 2.66
	rangeLimitFactor   = 3.268
	shiftRun           = 8
)

// SignalKind classifies an implausible movement in a change series.
type SignalKind string

const (
	// JumpAbove is a period change above the upper natural process limit.
	JumpAbove SignalKind = "jump_above"
	// JumpBelow is a period change below the lower natural process limit.
	JumpBelow SignalKind = "jump_below"
	// StepJump is a change that differs from its predecessor by more than the upper range limit.
	StepJump SignalKind = "step_jump"
	// SustainedShift is a run of changes on one side of the average, i.e. steady settlement or heave.
	SustainedShift SignalKind = "sustained_shift"
)

// XmRResult holds the natural process limits of a period-change series.
type XmRResult struct {
	Average     float64   `json:"average"`
	AmR         float64   `json:"average_moving_range"`
	UNPL        float64   `json:"upper_natural_process_limit"`
	LNPL        float64   `json:"lower_natural_process_limit"`
	URL         float64   `json:"upper_range_limit"`
	Values      []float64 `json:"values"`
	MovingRange []float64 `json:"moving_ranges"`
	Signals     []Signal  `json:"signals"`
}

// Signal is one flagged position of a change series.
type Signal struct {
	Index int        `json:"index"`
	File  string     `json:"file,omitempty"`
	Kind  SignalKind `json:"kind"`
	Value float64    `json:"value"`
	Limit float64    `json:"limit"`
}

// Describe renders the signal for reports.
func (s Signal) Describe() string {
	switch s.Kind {
	case JumpAbove:
		return fmt.Sprintf("change %.4f above upper limit %.4f", s.Value, s.Limit)
	case JumpBelow:
		return fmt.Sprintf("change %.4f below lower limit %.4f", s.Value, s.Limit)
	case StepJump:
		return fmt.Sprintf("change moved by %.4f from the previous reading, range limit %.4f", s.Value, s.Limit)
	case SustainedShift:
		return fmt.Sprintf("%d consecutive changes on one side of the average %.4f", shiftRun, s.Limit)
	}
	return string(s.Kind)
}

// CalculateXmR computes the limits of values and flags implausible changes. files, when
// given, names the snapshot each value came from and is copied onto the signals.
// Limits are not clamped at zero: measurement changes may be negative.
func CalculateXmR(values []float64, files []string) XmRResult {
	if len(values) == 0 {
		return XmRResult{}
	}

	result := XmRResult{
		Values:  values,
		Average: Mean(values),
	}

	// 1. Moving ranges between consecutive changes
	if len(values) > 1 {
		result.MovingRange = make([]float64, len(values)-1)
		for i := 1; i < len(values); i++ {
			result.MovingRange[i-1] = math.Abs(values[i] - values[i-1])
		}
		result.AmR = Mean(result.MovingRange)
	}

	// 2. Limits
	result.UNPL = result.Average + naturalLimitFactor*result.AmR
	result.LNPL = result.Average - naturalLimitFactor*result.AmR
	result.URL = rangeLimitFactor * result.AmR

	// 3. Signals
	fileAt := func(i int) string {
		if i < len(files) {
			return files[i]
		}
		return ""
	}
	result.Signals = append(result.Signals, limitSignals(result, fileAt)...)
	result.Signals = append(result.Signals, rangeSignals(result, fileAt)...)
	result.Signals = append(result.Signals, shiftSignals(result, fileAt)...)
	return result
}

func limitSignals(r XmRResult, fileAt func(int) string) []Signal {
	var out []Signal
	for i, v := range r.Values {
		switch {
		case v > r.UNPL:
			out = append(out, Signal{Index: i, File: fileAt(i), Kind: JumpAbove, Value: v, Limit: r.UNPL})
		case v < r.LNPL:
			out = append(out, Signal{Index: i, File: fileAt(i), Kind: JumpBelow, Value: v, Limit: r.LNPL})
		}
	}
	return out
}

// rangeSignals flags the later reading of each moving range above the range limit.
func rangeSignals(r XmRResult, fileAt func(int) string) []Signal {
	if r.AmR == 0 {
		return nil
	}
	var out []Signal
	for i, mr := range r.MovingRange {
		if mr > r.URL {
			out = append(out, Signal{Index: i + 1, File: fileAt(i + 1), Kind: StepJump, Value: mr, Limit: r.URL})
		}
	}
	return out
}

// shiftSignals flags the position where a run of shiftRun changes on one side of the
// average completes. A longer run is reported once.
func shiftSignals(r XmRResult, fileAt func(int) string) []Signal {
	if len(r.Values) < shiftRun {
		return nil
	}
	var out []Signal
	side, run := 0, 0
	for i, v := range r.Values {
		cur := 0
		if v > r.Average {
			cur = 1
		} else if v < r.Average {
			cur = -1
		}
		if cur != 0 && cur == side {
			run++
		} else {
			side, run = cur, 1
		}
		if cur != 0 && run == shiftRun {
			out = append(out, Signal{Index: i, File: fileAt(i), Kind: SustainedShift, Value: v, Limit: r.Average})
		}
	}
	return out
}
