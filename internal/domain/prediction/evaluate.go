package prediction

import (
	"math"
	"time"
)

const (
	// ProbabilityFloor is the smallest reported probability; anything lower is reported as 0.
	ProbabilityFloor = 0.001
	// LogisticSteepness scales the gap before the logistic transform.
	LogisticSteepness = 5.0
	horizonYearDays   = 365.0
)

type Verdict string

const (
	VerdictNoChance         Verdict = "🔧 No Chance"
	VerdictLikelyWinner     Verdict = "🏅 Likely Winner"
	VerdictTopThree         Verdict = "🥈 Top 3 Potential"
	VerdictNeedsImprovement Verdict = "🔧 Needs Improvement"
)

// VerdictFor maps a win probability onto the verdict table.
func VerdictFor(prob float64) Verdict {
	switch {
	case prob < ProbabilityFloor:
		return VerdictNoChance
	case prob >= 0.75:
		return VerdictLikelyWinner
	case prob >= 0.3:
		return VerdictTopThree
	default:
		return VerdictNeedsImprovement
	}
}

// HorizonDays counts whole days from now until target, rounding toward negative infinity.
// Both are compared as wall-clock times in the target's zone.
func HorizonDays(target, now time.Time) int {
	diff := wallClock(target).Sub(wallClock(now.In(target.Location())))
	return int(math.Floor(diff.Hours() / 24))
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Weights returns the blend weights for the model and the baseline time together with
// the horizon clamped at zero.
func Weights(horizon int) (wModel, wToday float64, clamped int) {
	if horizon < 0 {
		return 0, 1, 0
	}
	wModel = math.Min(math.Max(float64(horizon)/horizonYearDays, 0), 1)
	return wModel, 1 - wModel, horizon
}

// WinProbability applies the logistic transform to the gap against the benchmark.
func WinProbability(gap float64) float64 {
	raw := 1 / (1 + math.Exp(LogisticSteepness*gap))
	if raw < ProbabilityFloor {
		return 0
	}
	return raw
}

type EvaluateParams struct {
	Input         Input
	PredictedTime float64
	Target        time.Time
	Now           time.Time
	Benchmark     float64
}

// Evaluate blends the model prediction with the submitted time and derives the verdict.
func Evaluate(params EvaluateParams) Output {
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	wModel, wToday, horizon := Weights(HorizonDays(params.Target, now))
	adjusted := wModel*params.PredictedTime + wToday*params.Input.TodayTime
	gap := adjusted - params.Benchmark
	prob := WinProbability(gap)

	return Output{
		AdjustedTime: Round(adjusted, 4),
		Benchmark:    params.Benchmark,
		Gap:          Round(gap, 4),
		Probability:  prob,
		Verdict:      VerdictFor(prob),
		HorizonDays:  horizon,
		Timestamp:    now.UTC(),
	}
}

func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
