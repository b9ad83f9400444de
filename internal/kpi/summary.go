package kpi

import (
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"treblereport/domain/dataset"
)

// Summary describes one KPI column across all months of the report
type Summary struct {
	Metric string        `json:"metric"`
	Months int           `json:"months"`
	Mean   dataset.Value `json:"mean"`
	Median dataset.Value `json:"median"`
	Min    dataset.Value `json:"min"`
	Max    dataset.Value `json:"max"`
	StdDev dataset.Value `json:"std_dev"`
	// Slope is the least-squares change per month, fitted over month position
	Slope dataset.Value `json:"slope"`
}

// Summarize computes cross-month statistics for every KPI column. Unknown months are skipped;
// a metric with no known month reports Unknown everywhere.
func Summarize(records []dataset.MonthlyKPIRecord) []Summary {
	out := make([]Summary, 0, len(dataset.KPINames))
	for _, name := range dataset.KPINames {
		var xs, ys []float64
		for i, rec := range records {
			if v := rec.Metric(name); v.Valid {
				xs = append(xs, float64(i))
				ys = append(ys, v.V)
			}
		}
		out = append(out, summarize(name, xs, ys))
	}
	return out
}

func summarize(name string, xs, ys []float64) Summary {
	s := Summary{
		Metric: name,
		Months: len(ys),
		Mean:   dataset.Unknown(),
		Median: dataset.Unknown(),
		Min:    dataset.Unknown(),
		Max:    dataset.Unknown(),
		StdDev: dataset.Unknown(),
		Slope:  Slope(xs, ys),
	}
	if len(ys) == 0 {
		return s
	}

	data := stats.Float64Data(ys)
	s.Mean = known(data.Mean())
	s.Median = known(data.Median())
	s.Min = known(data.Min())
	s.Max = known(data.Max())
	s.StdDev = known(data.StandardDeviation())
	return s
}

// Slope fits y = a + b·x and returns b. It needs at least two points with distinct x.
func Slope(xs, ys []float64) dataset.Value {
	if len(xs) < 2 || len(xs) != len(ys) {
		return dataset.Unknown()
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return dataset.Known(beta)
}

func known(v float64, err error) dataset.Value {
	if err != nil {
		return dataset.Unknown()
	}
	return dataset.Known(v)
}
