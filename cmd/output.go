package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/site-analysis/internal/analysis"
	"github.com/sells-group/site-analysis/internal/noise"
	"github.com/sells-group/site-analysis/internal/sector"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var titleCase = cases.Title(language.English)

// writeOutput encodes v in format. table renders the table format.
func writeOutput(out io.Writer, format string, v any, table func(io.Writer)) error {
	switch strings.ToLower(format) {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "output: encode json")
	case formatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "output: encode yaml")
		}
		return eris.Wrap(enc.Close(), "output: close yaml")
	case formatTable, "":
		table(out)
		return nil
	default:
		return eris.Errorf("output: unknown format %q (want table, json, or yaml)", format)
	}
}

// displayLabel renders a label for humans, e.g. WATER as "Water".
func displayLabel(l sector.Label) string {
	return titleCase.String(strings.ToLower(string(l)))
}

// formatView writes the sectors and merged arcs of a view classification.
func formatView(out io.Writer, r *sector.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Site:\t%s\n", r.Center)
	_, _ = fmt.Fprintf(w, "Radius:\t%.1f m\n\n", r.Radius)

	_, _ = fmt.Fprintln(w, "SECTOR\tFROM\tTO\tLABEL\tGREEN\tWATER\tCITY\tOPEN")
	_, _ = fmt.Fprintln(w, "------\t----\t--\t-----\t-----\t-----\t----\t----")
	for _, s := range r.Sectors {
		_, _ = fmt.Fprintf(w, "%d\t%.1f\t%.1f\t%s\t%.2f\t%.2f\t%.2f\t%.2f\n",
			s.Index, s.StartDeg, s.EndDeg, displayLabel(s.Label),
			s.Scores.Green, s.Scores.Water, s.Scores.City, s.Scores.Open)
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "ARC\tFROM\tTO\tWIDTH\tLABEL\tSCORE")
	_, _ = fmt.Fprintln(w, "---\t----\t--\t-----\t-----\t-----")
	for i, a := range r.MergedArcs {
		_, _ = fmt.Fprintf(w, "%d\t%.1f\t%.1f\t%.1f\t%s\t%.2f\n",
			i, a.StartDeg, a.EndDeg, a.Width(), displayLabel(a.Label), a.MeanScore)
	}
	writeWarnings(w, r.Warnings)
	_ = w.Flush()
}

// formatNoise writes the grid and level summary of a noise map.
func formatNoise(out io.Writer, r *noise.Result) {
	s := r.Summary()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Site:\t%s\n", r.Center)
	_, _ = fmt.Fprintf(w, "Radius:\t%.1f m\n", r.Radius)
	_, _ = fmt.Fprintf(w, "Grid:\t%d x %d at %.1f m\n", r.Rows, r.Cols, r.Resolution)
	_, _ = fmt.Fprintf(w, "Min level:\t%.1f dB\n", s.MinDB)
	_, _ = fmt.Fprintf(w, "Max level:\t%.1f dB\n", s.MaxDB)
	_, _ = fmt.Fprintf(w, "Mean level:\t%.1f dB\n", s.MeanDB)
	_, _ = fmt.Fprintf(w, "Shielded cells:\t%d of %d\n", s.Shielded, s.Cells)
	writeWarnings(w, r.Warnings)
	_ = w.Flush()
}

// formatReports writes one line per analyzed site.
func formatReports(out io.Writer, reports []analysis.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SITE\tX\tY\tRADIUS\tVIEW\tMAX_DB\tMEAN_DB\tERROR")
	_, _ = fmt.Fprintln(w, "----\t-\t-\t------\t----\t------\t-------\t-----")
	for _, r := range reports {
		view, maxDB, meanDB := "", "", ""
		if r.View != nil {
			view = arcSummary(r.View.MergedArcs)
		}
		if r.NoiseSummary != nil {
			maxDB = fmt.Sprintf("%.1f", r.NoiseSummary.MaxDB)
			meanDB = fmt.Sprintf("%.1f", r.NoiseSummary.MeanDB)
		}
		_, _ = fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%.0f\t%s\t%s\t%s\t%s\n",
			r.Site.ID, r.Site.Center.X, r.Site.Center.Y, r.Site.Radius,
			view, maxDB, meanDB, r.Error)
	}
	_ = w.Flush()
}

// arcSummary lists arcs as "Water 90°, Open 270°".
func arcSummary(arcs []sector.MergedArc) string {
	parts := make([]string, len(arcs))
	for i, a := range arcs {
		parts[i] = fmt.Sprintf("%s %.0f°", displayLabel(a.Label), a.Width())
	}
	return strings.Join(parts, ", ")
}

func writeWarnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	for _, msg := range warnings {
		_, _ = fmt.Fprintf(w, "warning:\t%s\n", msg)
	}
}
