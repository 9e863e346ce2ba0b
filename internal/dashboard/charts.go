package dashboard

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
	"scdash/internal/forecast"
	"scdash/pkg/contracts/domain"
)

const (
	chartWidth  = "900px"
	chartHeight = "420px"
)

func initOpts(title string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle: title,
		Width:     chartWidth,
		Height:    chartHeight,
	})
}

func groupAxis(groups []Group) ([]string, []float64) {
	keys := make([]string, len(groups))
	values := make([]float64, len(groups))
	for i, g := range groups {
		keys[i], values[i] = g.Key, g.Value
	}
	return keys, values
}

func barChart(title, series string, groups []Group) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(title),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	keys, values := groupAxis(groups)
	data := make([]opts.BarData, len(values))
	for i, v := range values {
		data[i] = opts.BarData{Value: v}
	}
	bar.SetXAxis(keys).AddSeries(series, data)
	return bar
}

func delayHeatmap(p PivotTable) *charts.HeatMap {
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		initOpts("Delay heatmap"),
		charts.WithTitleOpts(opts.Title{Title: "Delay Heatmap (1=Delayed)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: p.Columns, SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: p.Rows, SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			InRange:    &opts.VisualMapInRange{Color: []string{"#1a9850", "#fee08b", "#d73027"}},
		}),
	)

	var data []opts.HeatMapData
	for i := range p.Rows {
		for j := range p.Columns {
			if v := p.Cells[i][j]; v != nil {
				data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, *v}})
			}
		}
	}
	hm.SetXAxis(p.Columns).AddSeries(domain.ColDelayedShipment, data)
	return hm
}

func lineChart(title string, keys []string, series map[string][]float64, order []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		initOpts(title),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(keys)
	for _, name := range order {
		values := series[name]
		data := make([]opts.LineData, len(values))
		for i, v := range values {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(name, data)
	}
	return line
}

// DashboardCharts builds the dashboard charts for e: revenue by product
// type, mean lead time by location, the delay heatmap and, when shipment
// dates exist, the revenue trend.
func DashboardCharts(e *dataprocessing.EnrichedTable) ([]components.Charter, error) {
	out := []components.Charter{
		barChart("Total Revenue by Product Type", domain.ColTotalRevenue,
			SumBy(e, domain.ColProductType, domain.ColTotalRevenue)),
		barChart("Average Lead Time by Location", domain.ColLeadTime,
			MeanBy(e, domain.ColLocation, domain.ColLeadTime)),
		delayHeatmap(Pivot(e, domain.ColLocation, domain.ColProductType, domain.ColDelayedShipment)),
	}

	trend, err := RevenueTrend(e)
	if err != nil {
		return nil, err
	}
	if trend != nil {
		keys, values := groupAxis(trend)
		out = append(out, lineChart("Revenue Trend Over Time", keys,
			map[string][]float64{domain.ColTotalRevenue: values}, []string{domain.ColTotalRevenue}))
	}
	return out, nil
}

// ForecastCharts builds the training history and true-vs-predicted charts
// of a forecast run.
func ForecastCharts(r *forecast.Report) []components.Charter {
	var out []components.Charter

	if n := len(r.History.Loss); n > 0 {
		epochs := make([]string, n)
		for i := range epochs {
			epochs[i] = fmt.Sprint(i + 1)
		}
		series := map[string][]float64{"train": r.History.Loss}
		order := []string{"train"}
		if len(r.History.ValLoss) > 0 {
			series["val"] = r.History.ValLoss
			order = append(order, "val")
		}
		out = append(out, lineChart("Training History (MSE)", epochs, series, order))
	}

	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		initOpts("True vs Predicted"),
		charts.WithTitleOpts(opts.Title{Title: "True vs Predicted Sales"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "True Sales"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Predicted Sales"}),
	)
	data := make([]opts.ScatterData, len(r.Pairs))
	for i, p := range r.Pairs {
		data[i] = opts.ScatterData{Value: []interface{}{p.Actual, p.Predicted}}
	}
	sc.AddSeries("test", data)
	return append(out, sc)
}

// RenderCharts writes a standalone HTML page holding the given charts.
func RenderCharts(w io.Writer, title string, cs ...components.Charter) error {
	page := components.NewPage()
	page.PageTitle = title
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(cs...)
	if err := page.Render(w); err != nil {
		return apperrors.NewIOError("cannot render charts", err)
	}
	return nil
}
