package results

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/replay/internal/models"
)

// seriesPalette cycles across models on the comparison chart.
var seriesPalette = []string{
	"2563eb", // blue-600
	"dc2626", // red-600
	"16a34a", // green-600
	"9333ea", // purple-600
	"ea580c", // orange-600
	"0891b2", // cyan-600
}

// RenderChart renders a PNG comparing each model's portfolio value over the
// range. Models with fewer than two completed days are left off the chart.
func (s *Service) RenderChart(ctx context.Context, startDate, endDate, modelFilter string) ([]byte, error) {
	ranges, err := s.RangeResults(ctx, startDate, endDate, modelFilter)
	if err != nil {
		return nil, err
	}

	var series []chart.Series
	for i, rr := range ranges {
		if len(rr.DailyPortfolioValues) < 2 {
			continue
		}

		xValues := make([]time.Time, len(rr.DailyPortfolioValues))
		yValues := make([]float64, len(rr.DailyPortfolioValues))
		for j, p := range rr.DailyPortfolioValues {
			t, err := time.Parse(models.DateFormat, p.Date)
			if err != nil {
				return nil, fmt.Errorf("bad date in equity curve: %w", err)
			}
			xValues[j] = t
			yValues[j] = p.PortfolioValue
		}

		series = append(series, chart.TimeSeries{
			Name: rr.Model,
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex(seriesPalette[i%len(seriesPalette)]),
				StrokeWidth: 2.0,
			},
			XValues: xValues,
			YValues: yValues,
		})
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("not enough completed trading days to chart: %w", models.ErrNotFound)
	}

	graph := chart.Chart{
		Title:  "Portfolio Value by Model",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 02")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.0f", f)
				}
				return ""
			},
		},
		Series: series,
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}
