package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/minesite-cli/internal/config"
	"github.com/sells-group/minesite-cli/internal/emit"
	"github.com/sells-group/minesite-cli/internal/gazetteer"
	"github.com/sells-group/minesite-cli/internal/matcher"
	"github.com/sells-group/minesite-cli/internal/model"
	"github.com/sells-group/minesite-cli/internal/pipeline"
	"github.com/sells-group/minesite-cli/internal/store"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Resolve downloaded filings to mine coordinates",
	Long: "Walks a downloaded EDGAR tree, extracts literal coordinates or fuzzy-matches mine names " +
		"against a gazetteer, and writes one GeoJSON feature per located filing.",
	RunE: runSites,
}

func init() {
	f := sitesCmd.Flags()
	f.String("edgar-root", "", "root of the downloaded EDGAR tree (default from config)")
	f.String("gazetteer", "", "gazetteer file or URL (csv, tsv, json, geojson, kml, yaml, xlsx, shp, zip)")
	f.Int("limit", 0, "process at most this many filings (0 = all)")
	f.Float64("threshold", 0, "minimum name similarity for a fuzzy match (default from config)")
	f.String("similarity", "", "similarity function: levenshtein or exact")
	f.Int("max-window", 0, "longest candidate phrase in words (default from config)")
	f.String("geojson-output", "", "GeoJSON output path (default from config)")
	f.String("html-output", "", "write an interactive HTML map to this path")
	f.Bool("jurisdiction-filter", false, "drop gazetteer matches outside the filing's inferred jurisdiction")
	f.Bool("no-store", false, "do not record the run in the store")
	rootCmd.AddCommand(sitesCmd)
}

// applySitesFlags overlays explicitly set flags on the configured defaults.
func applySitesFlags(cmd *cobra.Command, sc *config.SitesConfig) {
	f := cmd.Flags()
	if f.Changed("edgar-root") {
		sc.EdgarRoot, _ = f.GetString("edgar-root")
	}
	if f.Changed("gazetteer") {
		sc.Gazetteer, _ = f.GetString("gazetteer")
	}
	if f.Changed("limit") {
		sc.Limit, _ = f.GetInt("limit")
	}
	if f.Changed("threshold") {
		sc.SimilarityThreshold, _ = f.GetFloat64("threshold")
	}
	if f.Changed("similarity") {
		sc.Similarity, _ = f.GetString("similarity")
	}
	if f.Changed("max-window") {
		sc.MaxWindow, _ = f.GetInt("max-window")
	}
	if f.Changed("geojson-output") {
		sc.GeoJSONOutput, _ = f.GetString("geojson-output")
	}
	if f.Changed("html-output") {
		sc.HTMLOutput, _ = f.GetString("html-output")
	}
	if f.Changed("jurisdiction-filter") {
		sc.JurisdictionFilter, _ = f.GetBool("jurisdiction-filter")
	}
}

// pipelineOptions maps the sites configuration onto a pipeline run.
func pipelineOptions(sc config.SitesConfig) pipeline.Options {
	return pipeline.Options{
		EdgarRoot: sc.EdgarRoot,
		Gazetteer: sc.Gazetteer,
		Limit:     sc.Limit,
		Matcher: matcher.Options{
			Threshold:    sc.SimilarityThreshold,
			MaxWindow:    sc.MaxWindow,
			Similarity:   sc.Similarity,
			Jurisdiction: sc.JurisdictionFilter,
		},
		Emit: emit.Options{
			GeoJSONPath: sc.GeoJSONOutput,
			Map: emit.MapOptions{
				Path:    sc.HTMLOutput,
				TileURL: sc.TileURL,
			},
		},
	}
}

func runSites(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	applySitesFlags(cmd, &cfg.Sites)
	if err := cfg.Validate("sites"); err != nil {
		return err
	}

	var st store.Store
	if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck
		st = s
	}

	p := pipeline.New(st, &gazetteer.Loader{Sources: initSources()})
	res, err := p.Run(ctx, pipelineOptions(cfg.Sites))
	if err != nil {
		return err
	}

	formatSummary(os.Stdout, res.RunID, res.Summary)
	return nil
}

// formatSummary prints per-method totals and the files written.
func formatSummary(out io.Writer, runID string, s model.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if runID != "" {
		_, _ = fmt.Fprintf(w, "run:\t%s\n", runID)
	}
	_, _ = fmt.Fprintf(w, "filings:\t%d\n", s.Filings)
	_, _ = fmt.Fprintf(w, "%s:\t%d\n", model.MethodExplicit, s.Explicit)
	_, _ = fmt.Fprintf(w, "%s:\t%d\n", model.MethodFuzzyMatch, s.FuzzyMatch)
	_, _ = fmt.Fprintf(w, "%s:\t%d\n", model.MethodUnresolved, s.Unresolved)
	if s.GeoJSON != "" {
		_, _ = fmt.Fprintf(w, "geojson:\t%s\n", s.GeoJSON)
	}
	if s.HTMLMap != "" {
		_, _ = fmt.Fprintf(w, "map:\t%s\n", s.HTMLMap)
	}
	_ = w.Flush()
}
