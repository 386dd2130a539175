package compression

import (
	"fmt"
	"math"
	"sort"
)

// Schedule is a pure function from training progress to hyperparameters.
type Schedule interface {
	Evaluate(st State) Hyperparameters
}

// ScheduleFunc adapts a function to Schedule.
type ScheduleFunc func(st State) Hyperparameters

// Evaluate calls f.
func (f ScheduleFunc) Evaluate(st State) Hyperparameters {
	return f(st)
}

// Constant returns a schedule that always yields values.
func Constant(values Hyperparameters) Schedule {
	frozen := values.Clone()
	return ScheduleFunc(func(State) Hyperparameters {
		return frozen.Clone()
	})
}

// Combine merges several schedules; later schedules win on key collisions.
func Combine(schedules ...Schedule) Schedule {
	return ScheduleFunc(func(st State) Hyperparameters {
		out := Hyperparameters{}
		for _, s := range schedules {
			for k, v := range s.Evaluate(st) {
				out[k] = v
			}
		}
		return out
	})
}

// epochProgress returns fractional epochs elapsed. With stepsPerEpoch > 0
// the intra-epoch step interpolates between epochs; that requires the
// StepReset policy so that Step counts within the current epoch.
func epochProgress(st State, stepsPerEpoch int) float64 {
	p := float64(st.Epoch)
	if stepsPerEpoch > 0 {
		p += math.Min(float64(st.Step), float64(stepsPerEpoch)) / float64(stepsPerEpoch)
	}
	return p
}

// rampFraction maps progress into [0, 1] between begin and end.
func rampFraction(progress float64, begin, end int) float64 {
	if end <= begin {
		if progress >= float64(begin) {
			return 1
		}
		return 0
	}
	f := (progress - float64(begin)) / float64(end-begin)
	return math.Max(0, math.Min(1, f))
}

// LinearRamp moves Key linearly from Start to End between BeginEpoch and
// EndEpoch, then freezes at End.
type LinearRamp struct {
	Key           string
	Start, End    float64
	BeginEpoch    int
	EndEpoch      int
	StepsPerEpoch int
}

// Evaluate implements Schedule.
func (r LinearRamp) Evaluate(st State) Hyperparameters {
	f := rampFraction(epochProgress(st, r.StepsPerEpoch), r.BeginEpoch, r.EndEpoch)
	return Hyperparameters{r.Key: r.Start + (r.End-r.Start)*f}
}

// PolynomialRamp moves Key from Start to End following f^Power (or
// 1-(1-f)^Power when Concave), then freezes at End.
type PolynomialRamp struct {
	Key           string
	Start, End    float64
	BeginEpoch    int
	EndEpoch      int
	Power         float64
	Concave       bool
	StepsPerEpoch int
}

// Evaluate implements Schedule.
func (r PolynomialRamp) Evaluate(st State) Hyperparameters {
	f := rampFraction(epochProgress(st, r.StepsPerEpoch), r.BeginEpoch, r.EndEpoch)
	power := r.Power
	if power <= 0 {
		power = 1
	}
	var g float64
	if r.Concave {
		g = 1 - math.Pow(1-f, power)
	} else {
		g = math.Pow(f, power)
	}
	return Hyperparameters{r.Key: r.Start + (r.End-r.Start)*g}
}

// ExponentialRamp interpolates the complement (1 - value) geometrically,
// so density decays exponentially from 1-Start to 1-End. It degrades to a
// linear ramp when either complement is not positive.
type ExponentialRamp struct {
	Key        string
	Start, End float64
	BeginEpoch int
	EndEpoch   int
}

// Evaluate implements Schedule.
func (r ExponentialRamp) Evaluate(st State) Hyperparameters {
	f := rampFraction(float64(st.Epoch), r.BeginEpoch, r.EndEpoch)
	a, b := 1-r.Start, 1-r.End
	if a <= 0 || b <= 0 {
		return Hyperparameters{r.Key: r.Start + (r.End-r.Start)*f}
	}
	return Hyperparameters{r.Key: 1 - a*math.Pow(b/a, f)}
}

// MultiStep yields Values[i] where i is the number of Epochs boundaries
// already reached. len(Values) must be len(Epochs)+1.
type MultiStep struct {
	Key    string
	Epochs []int
	Values []float64
}

// NewMultiStep validates and creates a MultiStep schedule.
func NewMultiStep(key string, epochs []int, values []float64) (MultiStep, error) {
	if len(values) != len(epochs)+1 {
		return MultiStep{}, fmt.Errorf("multistep %q: need %d values for %d boundaries, got %d",
			key, len(epochs)+1, len(epochs), len(values))
	}
	if !sort.IntsAreSorted(epochs) {
		return MultiStep{}, fmt.Errorf("multistep %q: epochs must be ascending: %v", key, epochs)
	}
	return MultiStep{
		Key:    key,
		Epochs: append([]int(nil), epochs...),
		Values: append([]float64(nil), values...),
	}, nil
}

// Evaluate implements Schedule.
func (m MultiStep) Evaluate(st State) Hyperparameters {
	i := sort.Search(len(m.Epochs), func(i int) bool { return m.Epochs[i] > st.Epoch })
	return Hyperparameters{m.Key: m.Values[i]}
}

// StepRamp moves Key linearly from Start to End between BeginStep and
// EndStep of the step counter, then freezes at End.
type StepRamp struct {
	Key        string
	Start, End float64
	BeginStep  int
	EndStep    int
}

// Evaluate implements Schedule.
func (r StepRamp) Evaluate(st State) Hyperparameters {
	f := rampFraction(float64(st.Step), r.BeginStep, r.EndStep)
	return Hyperparameters{r.Key: r.Start + (r.End-r.Start)*f}
}
