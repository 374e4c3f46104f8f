package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"propwatch/internal/storage"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	Bands bool
	Out   io.Writer
}

// Show prints the latest payload as a table.
func (a *App) Show(_ context.Context, opts ShowOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	payload, err := storage.NewFilePayloadStore(a.Config.Propagation.OutputPath).LoadPayload()
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "no payload found; run `propwatch once` first")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "As of %s (window %d min)\n\n", payload.TimestampUTC, payload.WindowMinutes)

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Path\tStatus\tScore\tConfidence\tVARA\tRecords\tExplain")
	for _, row := range categoryRows(payload) {
		fmt.Fprintf(writer, "%s\t%s\t%d\t%s\t%s (%d)\t%d\t%s\n",
			row.name,
			row.cat.Status,
			row.cat.Score,
			row.cat.Confidence,
			row.cat.VaraClass,
			row.cat.VaraScore,
			row.cat.Records,
			sanitizeInline(row.cat.Explain),
		)
	}
	writer.Flush()

	if opts.Bands {
		fmt.Fprintln(out)
		writer = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Path\tBand\tScore\tPaths\tTX\tRX\tMedian SNR\tJS8\tFT8")
		for _, row := range categoryRows(payload) {
			for _, band := range a.bandOrder(row.name) {
				bo, ok := row.cat.Bands[band]
				if !ok {
					continue
				}
				fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%d\t%d\n",
					row.name, band, bo.Score, bo.Paths,
					formatFloat(bo.TX, 2), formatFloat(bo.RX, 2),
					formatMedian(bo.MedianSNRdB),
					bo.JS8Paths, bo.FT8Paths,
				)
			}
		}
		writer.Flush()
	}

	up := payload.Sources.Upstream
	last := "never"
	if up.LastFetchUTC != nil {
		last = *up.LastFetchUTC
	}
	fmt.Fprintf(out, "\nUpstream ok=%t last_fetch=%s requests_last_hour=%d\n", up.OK, last, up.RequestsLastHour)
	if payload.Sources.Notes != "" {
		fmt.Fprintf(out, "Notes: %s\n", sanitizeInline(payload.Sources.Notes))
	}
	return nil
}

type categoryRow struct {
	name string
	cat  storage.CategoryPayload
}

func categoryRows(p storage.Payload) []categoryRow {
	return []categoryRow{{name: "nvis", cat: p.NVIS}, {name: "mainland", cat: p.Mainland}}
}

func (a *App) bandOrder(category string) []string {
	if category == "nvis" {
		return a.engine.NVIS.BandOrder
	}
	return a.engine.MainlandPath.BandOrder
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

func formatFloat(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func formatMedian(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatFloat(*v, 1)
}
