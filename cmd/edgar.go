package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/minesite-cli/internal/edgar"
)

var edgarCmd = &cobra.Command{
	Use:   "edgar",
	Short: "Search and download SEC EDGAR mining disclosures",
}

var edgarSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "List documents matching an EDGAR full-text search",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("edgar"); err != nil {
			return err
		}
		client := edgar.NewClient(initHTTP(cfg.EDGAR.UserAgent, nil), edgarOptions(nil))
		docs, err := client.Search(cmd.Context(), edgarSearchOptions(cmd))
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Fprintln(os.Stderr, "No documents matched the query.")
			return nil
		}
		formatDocuments(os.Stdout, docs)
		return nil
	},
}

var edgarDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Search EDGAR and download matching documents with metadata sidecars",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("edgar"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			zap.L().Warn("download ledger unavailable", zap.Error(err))
		} else {
			defer st.Close() //nolint:errcheck
		}

		client := edgar.NewClient(initHTTP(cfg.EDGAR.UserAgent, nil), edgarOptions(st))
		opts := edgarSearchOptions(cmd)
		fmt.Fprintf(os.Stderr, "Searching EDGAR for %q...\n", opts.Query)
		docs, err := client.Search(ctx, opts)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Fprintln(os.Stderr, "No documents matched the query.")
			return nil
		}

		dest, _ := cmd.Flags().GetString("dest")
		if dest == "" {
			dest = cfg.EDGAR.DataDir
		}
		noMeta, _ := cmd.Flags().GetBool("no-metadata")
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		fmt.Fprintf(os.Stderr, "Found %d documents. Downloading to %s ...\n", len(docs), dest)
		paths, err := client.DownloadAll(ctx, docs, edgar.DownloadOptions{
			Dest:       dest,
			NoMetadata: noMeta,
			Overwrite:  overwrite,
		})
		if err != nil {
			return err
		}
		for i, p := range paths {
			fmt.Printf("%s <- %s\n", p, docs[i].URL)
		}
		fmt.Printf("Saved %d documents.\n", len(paths))
		return nil
	},
}

func edgarOptions(l edgar.Ledger) edgar.Options {
	return edgar.Options{
		SearchURL:   cfg.EDGAR.SearchURL,
		ArchivesURL: cfg.EDGAR.ArchivesURL,
		Concurrency: cfg.EDGAR.Concurrency,
		Ledger:      l,
	}
}

func edgarSearchOptions(cmd *cobra.Command) edgar.SearchOptions {
	f := cmd.Flags()
	query, _ := f.GetString("query")
	if query == "" {
		query = cfg.EDGAR.Query
	}
	limit, _ := f.GetInt("limit")
	forms, _ := f.GetStringSlice("forms")
	filter, _ := f.GetString("description-filter")
	dateRange, _ := f.GetString("date-range")
	start, _ := f.GetInt("start")
	return edgar.SearchOptions{
		Query:             query,
		Limit:             limit,
		Forms:             forms,
		DescriptionFilter: filter,
		Start:             start,
		DateRange:         dateRange,
	}
}

// formatDocuments writes a tabular list of search results to out.
func formatDocuments(out io.Writer, docs []edgar.Document) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CIK\tACCESSION\tFORM\tTYPE\tCOMPANY\tFILE")
	_, _ = fmt.Fprintln(w, "---\t---------\t----\t----\t-------\t----")
	for _, d := range docs {
		company := ""
		if len(d.CompanyNames) > 0 {
			company = d.CompanyNames[0]
		}
		if len(company) > 30 {
			company = company[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", d.CIK, d.Adsh, d.Form, d.FileType, company, d.FileName)
	}
	_ = w.Flush()
}

func init() {
	for _, c := range []*cobra.Command{edgarSearchCmd, edgarDownloadCmd} {
		f := c.Flags()
		f.String("query", "", "full-text search query (default from config, \"S-K 1300\")")
		f.Int("limit", 10, "maximum number of documents")
		f.StringSlice("forms", nil, "restrict to form types (e.g. 10-K,EX-96)")
		f.String("description-filter", "", "keep documents whose description, type, or extension contains this substring")
		f.String("date-range", "all", "EDGAR filed date range (all, today, 10d, 1m, 3m, 1y, custom)")
		f.Int("start", 0, "result index to start from")
	}
	edgarDownloadCmd.Flags().String("dest", "", "download directory (default from config)")
	edgarDownloadCmd.Flags().Bool("no-metadata", false, "skip writing .metadata.json sidecars")
	edgarDownloadCmd.Flags().Bool("overwrite", false, "re-download files that already exist")

	edgarCmd.AddCommand(edgarSearchCmd)
	edgarCmd.AddCommand(edgarDownloadCmd)
	rootCmd.AddCommand(edgarCmd)
}
