package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/evcraddock/listing-tracker/internal/listing"
	"github.com/evcraddock/listing-tracker/internal/market"
	"github.com/evcraddock/listing-tracker/internal/pipeline"
)

// printJSON marshals v as indented JSON and writes it to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printReports prints one line of counts per processed day.
func printReports(w io.Writer, reports []*pipeline.Report) error {
	if isJSON() {
		if reports == nil {
			reports = []*pipeline.Report{}
		}
		return printJSON(w, reports)
	}
	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, "No days processed.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "DAY\tACTIVE\tNEW\tRELISTED\tOFF MARKET\tNEWLY OFF\tDUPLICATES\tSKIPPED\tDELIVERED"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, r := range reports {
		s := r.Summary
		if _, err := fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.Day, s.Active, s.New, s.Relisted, s.OffMarket, s.NewlyOffMarket,
			sumCounts(r.Duplicates), sumCounts(r.Skipped), yesNo(r.Delivered)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}
	return nil
}

// printSnapshot prints a day's records with a status breakdown.
func printSnapshot(w io.Writer, day int, records []listing.Record) error {
	if isJSON() {
		return printJSON(w, map[string]any{"day": day, "properties": records})
	}
	if _, err := fmt.Fprintf(w, "Day %d\n\n", day); err != nil {
		return err
	}
	return printRecordTable(w, records)
}

// printRecordTable prints records as a formatted table.
func printRecordTable(w io.Writer, records []listing.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No properties found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ADDRESS\tMARKET\tSOURCE\tPRICE\tBED\tBATH\tSQFT\tSTATUS"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(tw, "-------\t------\t------\t-----\t---\t----\t----\t------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	counts := make(map[listing.Status]int)
	for _, r := range records {
		counts[r.Status]++
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t$%s\t%d\t%g\t%s\t%s\n",
			truncate(r.Address, 40), orDash(r.Market), orDash(string(r.Source)), formatPrice(r.Price),
			r.NumBeds, r.NumBaths, formatPrice(r.SquareFeet), orDash(string(r.Status))); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	_, err := fmt.Fprintf(w, "\nTotal: %d properties (%d active, %d off market)\n",
		len(records), counts[listing.StatusActive], counts[listing.StatusOffMarket])
	return err
}

// printMarkets prints the market catalog.
func printMarkets(w io.Writer, markets []market.Market) error {
	if isJSON() {
		return printJSON(w, markets)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "MARKET\tLATITUDE\tLONGITUDE"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, m := range markets {
		if _, err := fmt.Fprintf(tw, "%s\t%.4f\t%.4f\n", m.Name, m.Latitude, m.Longitude); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}
	_, err := fmt.Fprintf(w, "\nTotal: %d markets\n", len(markets))
	return err
}

// formatPrice formats a whole number with thousands separators.
func formatPrice(n int64) string {
	s := fmt.Sprintf("%d", n)

	// Add commas
	if len(s) <= 3 {
		return s
	}

	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)

	return strings.Join(parts, ",")
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func sumCounts(m map[listing.Source]int) int {
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}
