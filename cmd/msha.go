package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/minesite-cli/internal/msha"
)

var mshaCmd = &cobra.Command{
	Use:   "msha",
	Short: "Download MSHA Mine Data Retrieval System datasets",
}

var mshaEndpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List dataset endpoints published in the DOL catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		agency, _ := cmd.Flags().GetString("agency")
		if agency == "" {
			agency = cfg.MSHA.Agency
		}
		client := msha.NewClient(initHTTP(cfg.EDGAR.UserAgent, nil), msha.Options{
			BaseURL:    cfg.MSHA.BaseURL,
			CatalogURL: cfg.MSHA.CatalogURL,
		})
		rows, err := client.Endpoints(cmd.Context(), agency)
		if err != nil {
			return err
		}
		formatEndpoints(os.Stdout, rows)
		return nil
	},
}

var mshaDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download one or more MSHA datasets in offset-paged JSON chunks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		f := cmd.Flags()
		if f.Changed("api-key") {
			cfg.MSHA.APIKey, _ = f.GetString("api-key")
		}
		if f.Changed("chunk-size") {
			cfg.MSHA.ChunkSize, _ = f.GetInt("chunk-size")
		}
		if err := cfg.Validate("msha"); err != nil {
			return err
		}

		endpoints, _ := f.GetStringArray("endpoint")
		if len(endpoints) == 0 {
			return eris.New("msha: at least one --endpoint is required")
		}
		filter, err := loadFilter(cmd)
		if err != nil {
			return err
		}
		rawParams, _ := f.GetStringArray("param")
		params, err := parseParams(rawParams)
		if err != nil {
			return err
		}

		agency, _ := f.GetString("agency")
		if agency == "" {
			agency = cfg.MSHA.Agency
		}
		dest, _ := f.GetString("dest")
		if dest == "" {
			dest = cfg.MSHA.DataDir
		}
		limit, _ := f.GetInt("limit")
		offset, _ := f.GetInt("offset")
		noMeta, _ := f.GetBool("no-metadata")
		overwrite, _ := f.GetBool("overwrite")

		st, err := initStore(ctx)
		if err != nil {
			zap.L().Warn("download ledger unavailable", zap.Error(err))
		} else {
			defer st.Close() //nolint:errcheck
		}

		headers := map[string]string{"X-API-KEY": cfg.MSHA.APIKey, "Accept": "application/json"}
		client := msha.NewClient(initHTTP(cfg.EDGAR.UserAgent, headers), msha.Options{
			BaseURL:    cfg.MSHA.BaseURL,
			CatalogURL: cfg.MSHA.CatalogURL,
			Ledger:     st,
		})

		for _, endpoint := range endpoints {
			paths, err := client.DownloadDataset(ctx, msha.DatasetOptions{
				Agency:      agency,
				Endpoint:    endpoint,
				Dest:        dest,
				Limit:       limit,
				Offset:      offset,
				ChunkSize:   cfg.MSHA.ChunkSize,
				Filter:      filter,
				ExtraParams: params,
				NoMetadata:  noMeta,
				Overwrite:   overwrite,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s/%s: saved %d chunk(s)\n", agency, endpoint, len(paths))
			for _, p := range paths {
				fmt.Printf("  %s\n", p)
			}
		}
		return nil
	},
}

// loadFilter reads the filter_object payload from --filter-json or
// --filter-file. The two are mutually exclusive.
func loadFilter(cmd *cobra.Command) (json.RawMessage, error) {
	inline, _ := cmd.Flags().GetString("filter-json")
	file, _ := cmd.Flags().GetString("filter-file")
	if inline != "" && file != "" {
		return nil, eris.New("msha: use either --filter-json or --filter-file, not both")
	}
	var data []byte
	switch {
	case inline != "":
		data = []byte(inline)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, eris.Wrap(err, "msha: read filter file")
		}
		data = b
	default:
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, eris.New("msha: filter is not valid JSON")
	}
	return json.RawMessage(data), nil
}

// parseParams turns repeated KEY=VALUE flags into a map.
func parseParams(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, eris.Errorf("msha: invalid --param %q, expected KEY=VALUE", kv)
		}
		out[k] = v
	}
	return out, nil
}

// formatEndpoints writes catalog rows with the agency and endpoint columns
// first.
func formatEndpoints(out io.Writer, rows []msha.Endpoint) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(out, "No endpoints found.")
		return
	}
	var extra []string
	for k := range rows[0] {
		if k != "agency" && k != "endpoint" {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := append([]string{"AGENCY", "ENDPOINT"}, upper(extra)...)
	_, _ = fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, r := range rows {
		cells := []string{r["agency"], r.Name()}
		for _, k := range extra {
			cells = append(cells, r[k])
		}
		_, _ = fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()
}

func upper(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToUpper(s)
	}
	return out
}

func init() {
	mshaEndpointsCmd.Flags().String("agency", "", "agency abbreviation (default from config, \"msha\")")

	f := mshaDownloadCmd.Flags()
	f.String("api-key", "", "DOL open data API key (default from config or DOL_API_KEY)")
	f.String("agency", "", "agency abbreviation (default from config, \"msha\")")
	f.StringArray("endpoint", nil, "dataset endpoint name (repeatable)")
	f.Int("limit", 1000, "maximum records per endpoint (0 = all)")
	f.Int("offset", 0, "starting record offset")
	f.Int("chunk-size", 0, "records per request (default from config)")
	f.String("dest", "", "download directory (default from config)")
	f.String("filter-json", "", "JSON passed as the filter_object parameter")
	f.String("filter-file", "", "file containing the filter_object JSON")
	f.StringArray("param", nil, "additional query parameter KEY=VALUE (repeatable)")
	f.Bool("no-metadata", false, "skip dataset and chunk metadata files")
	f.Bool("overwrite", false, "rewrite chunks that already exist")

	mshaCmd.AddCommand(mshaEndpointsCmd)
	mshaCmd.AddCommand(mshaDownloadCmd)
	rootCmd.AddCommand(mshaCmd)
}
