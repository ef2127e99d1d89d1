package quality

import (
	"math"
	"time"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
)

// trendDeadBand is the minimum half-over-half move (in score points) that counts as a direction
const trendDeadBand = 1.0

// ComputeTrend aggregates an ascending history into avg/min/max and a direction.
// Direction compares the mean of the newer half against the older half.
func ComputeTrend(table string, metric contracts.MetricName, since time.Time, history []contracts.QualityMetric) *contracts.Trend {
	trend := &contracts.Trend{
		TableName:  table,
		MetricName: metric,
		Since:      since,
		Count:      len(history),
		Direction:  contracts.TrendStable,
	}
	if len(history) == 0 {
		return trend
	}

	sum := 0.0
	trend.Min = math.Inf(1)
	trend.Max = math.Inf(-1)
	for _, m := range history {
		sum += m.MetricValue
		trend.Min = math.Min(trend.Min, m.MetricValue)
		trend.Max = math.Max(trend.Max, m.MetricValue)
	}
	trend.Avg = math.Round(sum/float64(len(history))*100) / 100

	if len(history) < 2 {
		return trend
	}

	half := len(history) / 2
	older := mean(history[:half])
	newer := mean(history[len(history)-half:])
	switch {
	case newer-older > trendDeadBand:
		trend.Direction = contracts.TrendImproving
	case older-newer > trendDeadBand:
		trend.Direction = contracts.TrendDeclining
	}
	return trend
}

func mean(ms []contracts.QualityMetric) float64 {
	sum := 0.0
	for _, m := range ms {
		sum += m.MetricValue
	}
	return sum / float64(len(ms))
}
