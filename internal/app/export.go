package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"

	"propwatch/internal/storage"
)

// Export renders the latest payload's band outputs as CSV and/or a PNG bar
// chart.
func (a *App) Export(_ context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	payload, err := storage.NewFilePayloadStore(a.Config.Propagation.OutputPath).LoadPayload()
	if err != nil {
		return err
	}

	rows := a.bandRows(payload)
	a.Logger.Info().Int("bands", len(rows)).Str("timestamp", payload.TimestampUTC).Msg("exporting band outputs")

	if opts.CSVPath != "" {
		if err := writeBandsCSV(opts.CSVPath, payload.TimestampUTC, rows); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeBandsPNG(opts.PNGPath, payload.TimestampUTC, rows, a.Config.Export.ChartWidth, a.Config.Export.ChartHeight); err != nil {
			return err
		}
	}

	return nil
}

type bandRow struct {
	category string
	band     string
	storage.CategoryPayload
}

func (a *App) bandRows(p storage.Payload) []bandRow {
	var rows []bandRow
	for _, cat := range categoryRows(p) {
		for _, band := range a.bandOrder(cat.name) {
			if _, ok := cat.cat.Bands[band]; ok {
				rows = append(rows, bandRow{category: cat.name, band: band, CategoryPayload: cat.cat})
			}
		}
	}
	return rows
}

func writeBandsCSV(path, timestamp string, rows []bandRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp_utc", "category", "status", "band", "score", "paths", "tx", "rx", "median_snr_db", "js8_paths", "ft8_paths"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		out := row.Bands[row.band]
		median := ""
		if out.MedianSNRdB != nil {
			median = formatFloat(*out.MedianSNRdB, 1)
		}
		record := []string{
			timestamp,
			row.category,
			row.Status,
			row.band,
			strconv.Itoa(out.Score),
			strconv.Itoa(out.Paths),
			formatFloat(out.TX, 2),
			formatFloat(out.RX, 2),
			median,
			strconv.Itoa(out.JS8Paths),
			strconv.Itoa(out.FT8Paths),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeBandsPNG(path, timestamp string, rows []bandRow, width, height int) error {
	if len(rows) == 0 {
		return errors.New("payload has no bands to chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	bars := make([]chart.Value, 0, len(rows))
	for _, row := range rows {
		bars = append(bars, chart.Value{
			Label: row.category + " " + row.band,
			Value: float64(row.Bands[row.band].Score),
		})
	}

	graph := chart.BarChart{
		Title:    "Band scores " + timestamp,
		Width:    width,
		Height:   height,
		BarWidth: max(8, width/(2*len(bars))),
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			Name:  "Score",
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Bars: bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
