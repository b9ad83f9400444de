package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"treblereport/adapters/excel"
	"treblereport/domain/dataset"
	"treblereport/internal/months"
	"treblereport/internal/report"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "treblereport",
		Short: "Monthly reports over messaging-platform CSV/XLSX exports",
	}

	rootCmd.AddCommand(
		newColumnsCmd(),
		newMonthsCmd(),
		newReportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadFlags are the decode options shared by every command
type loadFlags struct {
	encoding    string
	delimiter   string
	sheet       string
	fixMojibake bool
}

func (f *loadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.encoding, "encoding", "utf-8", "Text encoding: utf-8, latin-1, cp1252, utf-16")
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "auto", "Delimiter: auto, ',', ';', tab, '|'")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Workbook sheet (default: first sheet)")
	cmd.Flags().BoolVar(&f.fixMojibake, "fix-mojibake", true, "Repair double-encoded text in headers and cells")
}

func (f *loadFlags) load(path string) (*dataset.Table, error) {
	enc, err := excel.ParseEncoding(f.encoding)
	if err != nil {
		return nil, err
	}
	delim, err := excel.ParseDelimiter(f.delimiter)
	if err != nil {
		return nil, err
	}
	return excel.ReadFile(path, excel.LoadOptions{
		Delimiter:   delim,
		Encoding:    enc,
		Sheet:       f.sheet,
		FixMojibake: f.fixMojibake,
	})
}

// monthFlags select the date column(s) and parse mode
type monthFlags struct {
	dateColumn     string
	fallbackColumn string
	mode           string
	pattern        string
	strictRange    bool
}

func (f *monthFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dateColumn, "date-column", "", "Column holding the date (default: first suggested date column)")
	cmd.Flags().StringVar(&f.fallbackColumn, "fallback-column", "", "Column used when the date column does not parse")
	cmd.Flags().StringVar(&f.mode, "mode", string(dataset.ModeAutoInfer), "Parse mode: auto, dayfirst, monthfirst, iso, slice7, regex")
	cmd.Flags().StringVar(&f.pattern, "pattern", "", "Regex with (year)(month) groups for --mode regex")
	cmd.Flags().BoolVar(&f.strictRange, "strict-month-range", false, "Reject months outside 1-12 in slice7 mode")
}

func (f *monthFlags) request(t *dataset.Table) (report.Request, error) {
	column := f.dateColumn
	if column == "" {
		candidates := months.SuggestDateColumns(t.Headers)
		if len(candidates) == 0 {
			return report.Request{}, fmt.Errorf("file has no columns")
		}
		column = candidates[0]
		fmt.Fprintf(os.Stderr, "using date column %q\n", column)
	}
	return report.Request{
		DateColumn:       column,
		FallbackColumn:   f.fallbackColumn,
		ParseMode:        f.mode,
		RegexPattern:     f.pattern,
		StrictMonthRange: f.strictRange,
	}, nil
}

func newColumnsCmd() *cobra.Command {
	var lf loadFlags

	cmd := &cobra.Command{
		Use:   "columns [file]",
		Short: "List headers with suggested date and summary columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := lf.load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d rows, %d columns\n", len(t.Rows), len(t.Headers))
			for _, h := range t.Headers {
				fmt.Fprintf(out, "  %s\n", h)
			}
			fmt.Fprintf(out, "date columns: %s\n", strings.Join(months.SuggestDateColumns(t.Headers), ", "))
			fmt.Fprintf(out, "summary columns: %s\n", strings.Join(report.DefaultSummaryColumns(t.Headers), ", "))
			return nil
		},
	}
	lf.register(cmd)
	return cmd
}

func newMonthsCmd() *cobra.Command {
	var (
		lf loadFlags
		mf monthFlags
	)

	cmd := &cobra.Command{
		Use:   "months [file]",
		Short: "Show the months available under a date column and parse mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := lf.load(args[0])
			if err != nil {
				return err
			}
			req, err := mf.request(t)
			if err != nil {
				return err
			}
			cfg, err := req.Config(report.Defaults{ParseMode: dataset.ModeAutoInfer})
			if err != nil {
				return err
			}
			ct, err := months.Canonicalize(t, cfg.Months)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d rows with a month, %d excluded\n", ct.Len(), ct.Invalid)
			for _, y := range months.Years(ct) {
				labels := []string{}
				for _, m := range months.MonthsOfYear(ct, y) {
					labels = append(labels, months.MonthLabel(m))
				}
				fmt.Fprintf(out, "%d: %s\n", y, strings.Join(labels, ", "))
			}
			return nil
		},
	}
	lf.register(cmd)
	mf.register(cmd)
	return cmd
}

func newReportCmd() *cobra.Command {
	var (
		lf        loadFlags
		mf        monthFlags
		year      int
		month     int
		columns   []string
		uniqueKey string
		rules     = map[string]*string{}
		filters   []string
		locale    string
		format    string
		outDir    string
	)

	cmd := &cobra.Command{
		Use:   "report [file]",
		Short: "Build the monthly report and optionally write the export bundle",
		Long: `Build the month summary, monthly trends and the KPI table.

Example: treblereport report export.csv --mode dayfirst --year 2024 --month 3 \
  --envios 'count:Estado del despliegue=Enviado|Entregado' --clics 'sum:clics' --out ./reportes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := lf.load(args[0])
			if err != nil {
				return err
			}
			req, err := mf.request(t)
			if err != nil {
				return err
			}
			req.Year, req.Month = year, month
			req.UniqueKeyColumn = uniqueKey
			if cmd.Flags().Changed("columns") {
				req.Columns = columns
			}
			req.RuleSpecs = map[string]string{}
			for name, spec := range rules {
				if *spec != "" {
					req.RuleSpecs[name] = *spec
				}
			}
			req.Filters, err = parseFilters(filters)
			if err != nil {
				return err
			}

			cfg, err := req.Config(report.Defaults{ParseMode: dataset.ModeAutoInfer, UniqueKeyColumn: report.DefaultUniqueKeyColumn})
			if err != nil {
				return err
			}
			res, err := report.Build(t, cfg)
			if err != nil {
				return err
			}

			f := report.NewFormatter(locale)
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			case "markdown", "md":
				fmt.Fprint(out, report.Markdown(res, f))
			default:
				return fmt.Errorf("unknown format %q (markdown, json)", format)
			}

			if outDir != "" {
				delim, err := excel.ParseDelimiter(lf.delimiter)
				if err != nil {
					return err
				}
				paths, err := excel.WriteBundle(cmd.Context(), outDir, res, f, delim)
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", p)
				}
			}
			return nil
		},
	}

	lf.register(cmd)
	mf.register(cmd)
	cmd.Flags().IntVar(&year, "year", 0, "Year to summarize (default: latest)")
	cmd.Flags().IntVar(&month, "month", 0, "Month to summarize, 1-12 (default: latest of the year)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to break down (default: well-known export columns)")
	cmd.Flags().StringVar(&uniqueKey, "unique-key", report.DefaultUniqueKeyColumn, "Column counted for unique subscribers")
	for _, name := range []string{"envios", "entregas", "clics", "avance"} {
		rules[name] = cmd.Flags().String(name, "", "Rule for "+name+": count:<column>=<v>|<v> or sum:<column>")
	}
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Keep rows where <column>=<v>|<v> (repeatable)")
	cmd.Flags().StringVar(&locale, "locale", report.DefaultLocale, "Locale for display numbers")
	cmd.Flags().StringVar(&format, "format", "markdown", "Output format: markdown, json")
	cmd.Flags().StringVar(&outDir, "out", "", "Write CSV, ZIP, XLSX and HTML exports to this directory")
	return cmd
}

func parseFilters(specs []string) (map[string][]string, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	filters := make(map[string][]string, len(specs))
	for _, spec := range specs {
		column, values, ok := strings.Cut(spec, "=")
		if !ok || strings.TrimSpace(column) == "" {
			return nil, fmt.Errorf("filter %q: expected <column>=<v>|<v>", spec)
		}
		column = strings.TrimSpace(column)
		filters[column] = append(filters[column], strings.Split(values, "|")...)
	}
	return filters, nil
}
