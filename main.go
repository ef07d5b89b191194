// wootrans translates WooCommerce product exports into WPML import files with Gemini.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/minios-linux/wootrans/columns"
	"github.com/minios-linux/wootrans/config"
	"github.com/minios-linux/wootrans/i18n"
	"github.com/minios-linux/wootrans/langmeta"
	"github.com/minios-linux/wootrans/lockfile"
	"github.com/minios-linux/wootrans/pipeline"
	"github.com/minios-linux/wootrans/reconcile"
	"github.com/minios-linux/wootrans/settings"
	"github.com/minios-linux/wootrans/translate"
	"github.com/minios-linux/wootrans/wizard"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// stdin is read by confirmation prompts.
var stdin io.Reader = os.Stdin

// numbers formats token counts with thousands separators.
var numbers = message.NewPrinter(language.English)

func formatCount(n int) string {
	return numbers.Sprintf("%d", n)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wootrans",
		Short: "Translate WooCommerce product exports for WPML import",
		Long: `wootrans translates a WooCommerce product export (CSV or XLSX) into one
WPML import file per target language using Google Gemini.

Products that already have a translation in a language (same WPML
translation group) are skipped for that language unless the language is
listed with --override.

Commands:
  translate   Translate an export (estimate, confirm, translate, write files)
  estimate    Show the per-language token and cost estimate
  status      Show which products still need a translation
  inspect     Show how the export columns are classified
  config      Manage stored settings (model, API key, batch size, ...)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", "", "Directory with .wootrans.yaml (default: the input file's directory)")

	root.AddCommand(
		newTranslateCmd(),
		newEstimateCmd(),
		newStatusCmd(),
		newInspectCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wootrans version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// Language list flag
// ---------------------------------------------------------------------------

// langList is a comma-separated language flag. Repeated flags accumulate.
type langList []langmeta.Code

var _ pflag.Value = (*langList)(nil)

func (l *langList) String() string {
	return strings.Join(langmeta.Strings(*l), ",")
}

func (l *langList) Set(s string) error {
	codes, err := langmeta.ParseList(s)
	if err != nil {
		return err
	}
	for _, c := range codes {
		if !langmeta.Contains(*l, c) {
			*l = append(*l, c)
		}
	}
	return nil
}

func (l *langList) Type() string {
	return "languages"
}

func completeLanguages(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, c := range langmeta.All() {
		out = append(out, string(c)+"\t"+langmeta.Name(c))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// ---------------------------------------------------------------------------
// translate / estimate
// ---------------------------------------------------------------------------

type translateArgs struct {
	langs, overrides langList
	meta             []string
	metaSet          bool

	apiKey, model, baseURL string
	batchSize, concurrency int
	outputDir, format      string

	yes, dryRun, incremental, verbose bool
	report                            string
}

func addRunFlags(cmd *cobra.Command, a *translateArgs) {
	cmd.Flags().Var(&a.langs, "lang", "Target languages (comma-separated, default: every language the products are not written in)")
	cmd.Flags().Var(&a.overrides, "override", "Languages to translate even when a translation exists")
	cmd.Flags().StringSliceVar(&a.meta, "meta", nil, "Meta columns to translate (default: SEO columns present in the export)")
	cmd.Flags().StringVar(&a.model, "model", "", "Gemini model (or WOOTRANS_MODEL env var)")
	cmd.Flags().StringVar(&a.apiKey, "api-key", "", "Gemini API key (or WOOTRANS_API_KEY / GEMINI_API_KEY env var)")
	cmd.Flags().IntVar(&a.batchSize, "batch-size", 0, "Products per API request (0 = configured value)")
	cmd.Flags().StringVar(&a.outputDir, "output-dir", "", "Directory for translated files and wootrans.lock")
	cmd.Flags().BoolVar(&a.incremental, "incremental", false, "Skip products unchanged since the last run (uses wootrans.lock)")
	cmd.Flags().BoolVar(&a.verbose, "verbose", false, "Enable detailed logging")

	// Hidden overrides
	cmd.Flags().StringVar(&a.baseURL, "base-url", "", "Custom API base URL")
	_ = cmd.Flags().MarkHidden("base-url")

	_ = cmd.RegisterFlagCompletionFunc("lang", completeLanguages)
	_ = cmd.RegisterFlagCompletionFunc("override", completeLanguages)
	_ = cmd.RegisterFlagCompletionFunc("model", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return translate.Models(), cobra.ShellCompDirectiveNoFileComp
	})
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate <export.csv|export.xlsx>",
		Short: "Translate a product export",
		Long: `Translate a WooCommerce product export into one WPML import file per
language.

The export is validated, the untranslated products are collected per
language, and the token cost is estimated before anything is sent for
translation. The estimate must be confirmed unless --yes is given.

Examples:
  # Translate into every language the products are missing
  wootrans translate products.csv

  # Translate into Slovenian and German, retranslating German
  wootrans translate products.csv --lang sl,de --override de

  # Only translate products changed since the last run
  wootrans translate products.csv --incremental --yes

  # Show the estimate without translating
  wootrans translate products.csv --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.metaSet = cmd.Flags().Changed("meta")
			return runPipeline(cmd.Context(), cmd.OutOrStdout(), args[0], a, pipeline.IndexResults)
		},
	}

	addRunFlags(cmd, &a)
	cmd.Flags().StringVar(&a.format, "format", "", "Output format: csv or xlsx (default: same as input)")
	cmd.Flags().IntVar(&a.concurrency, "concurrency", 0, "Languages translated at once (0 = configured value)")
	cmd.Flags().BoolVarP(&a.yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Show the estimate without translating")
	cmd.Flags().StringVar(&a.report, "report", "", "Write a JSON run report to this path")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{config.FormatCSV, config.FormatXLSX}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func newEstimateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "estimate <export.csv|export.xlsx>",
		Short: "Estimate tokens and cost per language",
		Long: `Validate the export, collect the products each language is missing, and
count the tokens of the first batch per language. Nothing is translated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.metaSet = cmd.Flags().Changed("meta")
			return runPipeline(cmd.Context(), cmd.OutOrStdout(), args[0], a, pipeline.IndexLanguages)
		},
	}

	addRunFlags(cmd, &a)
	return cmd
}

// runOptions are the values resolved from flags, environment,
// .wootrans.yaml and the settings file, in that order.
type runOptions struct {
	apiKey      string
	model       string
	batchSize   int
	concurrency int
	outputDir   string
	format      string
	prompt      string
	targets     []langmeta.Code
	overrides   []langmeta.Code
	meta        []string
	fixed       []string
}

func resolveOptions(input string, a translateArgs, st settings.Settings, proj *config.File) (runOptions, error) {
	if proj == nil {
		proj = &config.File{}
	}
	o := runOptions{
		apiKey:      settings.ResolveAPIKey(a.apiKey, st.APIKey),
		model:       settings.ResolveModel(a.model, proj.Model, st.ModelID),
		batchSize:   firstPositive(a.batchSize, proj.BatchSize, st.BatchSize, settings.DefaultBatchSize),
		concurrency: firstPositive(a.concurrency, proj.Concurrency, st.Concurrency, settings.DefaultConcurrency),
		outputDir:   firstNonEmpty(a.outputDir, proj.OutputDir, st.OutputDir, filepath.Dir(input)),
		format:      firstNonEmpty(a.format, proj.OutputFormat),
		prompt:      proj.Prompt,
		targets:     a.langs,
		overrides:   a.overrides,
		fixed:       proj.FixedColumns,
	}
	if o.model == "" {
		o.model = settings.DefaultModel
	}
	if a.batchSize < 0 || a.concurrency < 0 {
		return o, fmt.Errorf("--batch-size and --concurrency must not be negative")
	}
	o.format = strings.ToLower(o.format)
	if o.format != "" && o.format != config.FormatCSV && o.format != config.FormatXLSX {
		return o, fmt.Errorf("invalid output format %q (want %s or %s)", o.format, config.FormatCSV, config.FormatXLSX)
	}
	if len(o.targets) == 0 {
		o.targets = proj.TargetLanguages()
	}
	if len(o.overrides) == 0 {
		o.overrides = proj.OverrideLanguages()
	}
	switch {
	case a.metaSet:
		o.meta = append([]string{}, a.meta...)
	case proj.MetaColumns != nil:
		o.meta = append([]string{}, proj.MetaColumns...)
	}
	return o, nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func projectDir(input string) string {
	if rootDir != "" {
		return rootDir
	}
	return filepath.Dir(input)
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Encoding = "console"
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// runPipeline runs the pipeline steps up to and including last.
func runPipeline(ctx context.Context, out io.Writer, input string, a translateArgs, last int) error {
	if a.dryRun && last > pipeline.IndexLanguages {
		last = pipeline.IndexLanguages
	}

	st, err := settings.Load()
	if err != nil {
		return err
	}
	proj, err := config.Load(projectDir(input))
	if err != nil {
		return err
	}
	if proj != nil {
		logInfo(i18n.T("Using %s"), filepath.Join(projectDir(input), config.FileName))
	}
	opts, err := resolveOptions(input, a, st, proj)
	if err != nil {
		return err
	}

	log := newLogger(a.verbose)
	defer func() { _ = log.Sync() }()

	if path, err := translate.LoadPromptsFromDefaultLocations(); err != nil {
		logWarning(i18n.T("Could not load prompts, using built-in prompts: %v"), err)
	} else {
		log.Debug("prompts loaded", zap.String("path", path))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	var gen translate.Generator
	if opts.apiKey != "" {
		client, err := translate.NewGenAIClient(ctx, translate.ClientOptions{APIKey: opts.apiKey, BaseURL: a.baseURL})
		if err != nil {
			return err
		}
		gen = client
	}

	var lock *lockfile.LockFile
	if a.incremental {
		if lock, err = lockfile.Load(opts.outputDir); err != nil {
			return err
		}
	}

	cfg := pipeline.Config{
		Generator: gen,
		Translate: translate.Options{
			Model:        opts.model,
			BatchSize:    opts.batchSize,
			SystemPrompt: opts.prompt,
			OnProgress: func(lang langmeta.Code, done, total int) {
				logInfo("  %s: %d/%d", lang, done, total)
			},
			OnLog: func(format string, args ...any) {
				logInfo(format, args...)
			},
			OnError: func(format string, args ...any) {
				logError(format, args...)
			},
		},
		FixedColumns: opts.fixed,
		OutputDir:    opts.outputDir,
		OutputFormat: opts.format,
		Concurrency:  opts.concurrency,
		Lock:         lock,
		ReportPath:   a.report,
		Logger:       log,
	}
	p := pipeline.New(cfg, pipeline.Values{
		InputPath:    input,
		SelectedMeta: opts.meta,
		Targets:      opts.targets,
		Overrides:    opts.overrides,
	})
	w := p.Wizard()
	w.OnChange = func(i int, state wizard.StepState) {
		if state.Status == wizard.Running {
			log.Debug("step started", zap.String("step", w.Name(i)), zap.String("run_id", p.RunID()))
		}
		if a.verbose && state.Status == wizard.Success {
			logInfo(i18n.T("Step %d/%d done: %s"), i+1, w.Len(), w.Name(i))
		}
	}

	if err := p.RunUntil(ctx, pipeline.IndexLoad); err != nil {
		return err
	}
	loaded, _ := pipeline.Result[pipeline.LoadResult](p, pipeline.IndexLoad)
	if len(opts.targets) == 0 {
		targets := loaded.Summary.DefaultTargets()
		w.SetValue(func(v *pipeline.Values) { v.Targets = targets })
		logInfo(i18n.T("Target languages: %s"), strings.Join(langmeta.Strings(targets), ", "))
	}
	if lock != nil {
		pruneLock(lock, loaded.Summary)
	}

	if err := p.RunUntil(ctx, pipeline.IndexLanguages); err != nil {
		if errors.Is(err, pipeline.ErrMissingConfiguration) && opts.apiKey == "" {
			logError(i18n.T("No API key: pass --api-key, set %s, or run 'wootrans config set api-key <key>'"), settings.EnvAPIKey)
		}
		return err
	}
	est, _ := pipeline.Result[pipeline.EstimateResult](p, pipeline.IndexLanguages)
	printEstimates(out, est)

	if last <= pipeline.IndexLanguages {
		if a.dryRun {
			logInfo(i18n.T("Dry run: nothing was translated"))
		}
		return nil
	}
	if len(est.Languages()) == 0 {
		logSuccess(i18n.T("Nothing to translate"))
		return nil
	}

	in := bufio.NewReader(stdin)
	if !a.yes && !askYesNo(in, i18n.T("Proceed with the translation?")) {
		logWarning(i18n.T("Translation cancelled"))
		return nil
	}
	w.SetValue(func(v *pipeline.Values) { v.Confirmed = true })

	for {
		err := p.RunUntil(ctx, last)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			logWarning(i18n.T("Interrupted; languages completed so far keep their files"))
			return err
		}
		logError(i18n.T("Translation failed: %v"), err)
		if w.Focused() != pipeline.IndexTranslate || a.yes || !askYesNo(in, i18n.T("Retry the translation step?")) {
			return err
		}
		logInfo(i18n.T("Retrying..."))
	}

	res, _ := pipeline.Result[pipeline.ResultsResult](p, pipeline.IndexResults)
	printResults(out, res)
	return nil
}

// pruneLock drops lock entries of products no longer in the export.
func pruneLock(lock *lockfile.LockFile, sum *pipeline.Summary) {
	keys := make([]string, 0, len(sum.Partition.Source))
	for _, r := range sum.Partition.Source {
		keys = append(keys, lockfile.RowKey(reconcile.GroupKey(r), r["ID"]))
	}
	for _, lang := range lock.Languages() {
		lock.Clean(lang, keys)
	}
}

// askYesNo prints prompt and reads a y/yes answer from r.
func askYesNo(r *bufio.Reader, prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(os.Stderr)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func printEstimates(out io.Writer, est pipeline.EstimateResult) {
	fmt.Fprintf(out, "%s%s%s\n", colorBlue, i18n.T("Translation Estimate"), colorReset)
	fmt.Fprintln(out, strings.Repeat("─", 64))
	fmt.Fprintf(out, "%-6s %-12s %-8s %-8s %-12s %s\n", "Lang", "Language", "Rows", "Batches", "Tokens", "Est. cost")
	fmt.Fprintln(out, strings.Repeat("─", 64))

	for _, lang := range est.Prepared.Targets {
		e := est.Estimates[lang]
		fmt.Fprintf(out, "%-6s %-12s %-8d %-8d %-12s $%.4f\n",
			lang, langmeta.Name(lang), len(est.Prepared.Rows[lang]), e.Batches, formatCount(e.TokenCount), e.ProjectedTotal)
	}

	fmt.Fprintln(out, strings.Repeat("─", 64))
	fmt.Fprintf(out, i18n.T("Products to translate: %d, attribute names: %d")+"\n", est.Prepared.Total(), est.Prepared.Names.Len())
	fmt.Fprintf(out, i18n.T("Projected cost: $%.4f")+"\n", est.ProjectedTotal())
	for _, lang := range est.Prepared.Targets {
		if n := est.Unchanged[lang]; n > 0 {
			fmt.Fprintf(out, "  %s: %s\n", lang, fmt.Sprintf(i18n.N("%d unchanged product skipped", "%d unchanged products skipped", n), n))
		}
	}
	fmt.Fprintln(out)
}

func printResults(out io.Writer, res pipeline.ResultsResult) {
	tr := res.Translate
	fmt.Fprintf(out, "%s%s%s\n", colorBlue, i18n.T("Translation Results"), colorReset)
	fmt.Fprintln(out, strings.Repeat("─", 64))
	for _, r := range tr.Results {
		if r.Skipped {
			fmt.Fprintf(out, "%-6s %s\n", r.Language, i18n.T("nothing to translate"))
			continue
		}
		fmt.Fprintf(out, "%-6s %-8d %-12s $%.4f  %s\n",
			r.Language, r.Written, formatCount(r.Usage.InputTokens+r.Usage.OutputTokens), r.Cost, r.Path)
		if len(r.Unmatched) > 0 {
			fmt.Fprintf(out, "       "+i18n.N("%d row without a source product: %s", "%d rows without a source product: %s", len(r.Unmatched))+"\n",
				len(r.Unmatched), strings.Join(r.Unmatched, ", "))
		}
	}
	fmt.Fprintln(out, strings.Repeat("─", 64))
	fmt.Fprintf(out, i18n.N("%d language", "%d languages", tr.Totals.Languages), tr.Totals.Languages)
	fmt.Fprintf(out, ", "+i18n.N("%d product", "%d products", tr.Totals.Rows), tr.Totals.Rows)
	fmt.Fprintf(out, ", %s tokens, $%.4f\n", formatCount(tr.Totals.Usage.InputTokens+tr.Totals.Usage.OutputTokens), tr.Totals.Cost)
	if res.ReportPath != "" {
		fmt.Fprintf(out, i18n.T("Report: %s")+"\n", res.ReportPath)
	}
	logSuccess(i18n.T("Translation complete! (run %s)"), res.RunID)
}

// ---------------------------------------------------------------------------
// status (read-only: translation matrix)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var (
		langs, overrides langList
		outputDir        string
	)

	cmd := &cobra.Command{
		Use:   "status <export.csv|export.xlsx>",
		Short: "Show translation coverage of an export",
		Long: `Show, per source language, how many products still need a translation
into each target language. Makes no API calls.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.OutOrStdout(), args[0], langs, overrides, outputDir)
		},
	}

	cmd.Flags().Var(&langs, "lang", "Target languages (default: all supported)")
	cmd.Flags().Var(&overrides, "override", "Languages counted as missing for every product")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Show the wootrans.lock summary of this directory")
	_ = cmd.RegisterFlagCompletionFunc("lang", completeLanguages)
	_ = cmd.RegisterFlagCompletionFunc("override", completeLanguages)

	return cmd
}

func runStatus(out io.Writer, input string, langs, overrides []langmeta.Code, outputDir string) error {
	sum, err := pipeline.Load(input)
	if err != nil {
		return err
	}
	var targets []langmeta.Code
	if len(langs) > 0 {
		targets = langs
	}
	m := reconcile.NewMatrix(sum.Partition, targets, overrides)

	fmt.Fprintf(out, "%s%s%s\n", colorBlue, i18n.T("Translation Status"), colorReset)
	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintf(out, "  %s: %s\n", i18n.T("File"), input)
	fmt.Fprintf(out, "  %s: %d\n", i18n.T("Products"), len(sum.Partition.Source))
	fmt.Fprintf(out, "  %s: %d\n", i18n.T("Existing translations"), len(sum.Partition.Existing))

	for _, src := range m.Sources {
		name := src
		if name == "" {
			name = "?"
		} else if c, err := langmeta.Parse(src); err == nil {
			name = fmt.Sprintf("%s (%s)", src, langmeta.Name(c))
		}
		fmt.Fprintf(out, "\n%s %s: %d\n", i18n.T("Source"), name, m.Products[src])
		fmt.Fprintf(out, "%-6s %-12s %-8s %s\n", "Lang", "Language", "Missing", "Coverage")
		fmt.Fprintln(out, strings.Repeat("─", 52))
		for _, lang := range m.Targets {
			if string(lang) == src {
				continue
			}
			fmt.Fprintf(out, "%-6s %-12s %-8d %s\n", lang, langmeta.Name(lang), m.Cells[src][lang], progressBar(m.Coverage(src, lang), 20))
		}
	}

	missing := 0
	for _, n := range m.Totals {
		missing += n
	}
	fmt.Fprintln(out, strings.Repeat("─", 52))
	fmt.Fprintf(out, i18n.T("Translations missing: %d")+"\n", missing)

	if outputDir != "" {
		lock, err := lockfile.Load(outputDir)
		if err != nil {
			return err
		}
		if _, keys := lock.Stats(); keys > 0 {
			fmt.Fprintf(out, i18n.T("Lock file: %s")+"\n", lock.Summary())
		}
	}
	return nil
}

// progressBar renders a colored bar followed by the percentage.
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100

	color := colorRed
	switch {
	case percent >= 90:
		color = colorGreen
	case percent >= 50:
		color = colorYellow
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s%s%s %3d%%", color, bar, colorReset, percent)
}

// ---------------------------------------------------------------------------
// inspect (schema classification and column mappings)
// ---------------------------------------------------------------------------

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <export.csv|export.xlsx>",
		Short: "Show how the export columns are classified",
		Long: `Print the validation rule of every column, the attribute column pairs and
the meta columns, marking the ones translated by default.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), args[0])
		},
	}
	return cmd
}

func runInspect(out io.Writer, input string) error {
	sum, err := pipeline.Load(input)
	if err != nil {
		return err
	}
	header := sum.Header()

	fmt.Fprintf(out, "%s%s%s (%d)\n", colorBlue, i18n.T("Columns"), colorReset, len(header))
	fmt.Fprintf(out, "%-40s %-8s %-10s %s\n", "Column", "Kind", "Rule", "Required")
	fmt.Fprintln(out, strings.Repeat("─", 70))
	for _, r := range sum.Schema.Rules() {
		req := ""
		if r.Required {
			req = "yes"
		}
		fmt.Fprintf(out, "%-40s %-8s %-10s %s\n", r.Column, r.Kind, r.Source, req)
	}

	fmt.Fprintf(out, "\n%s%s%s (%d)\n", colorBlue, i18n.T("Attributes"), colorReset, len(sum.Attributes))
	for _, m := range sum.Attributes {
		name := "-"
		if m.NameIndex >= 0 {
			name = header[m.NameIndex]
		}
		fmt.Fprintf(out, "  %-4s %-28s %s\n", m.Number, header[m.ValueIndex], name)
	}

	defaults := sum.DefaultMeta()
	fmt.Fprintf(out, "\n%s%s%s (%d)\n", colorBlue, i18n.T("Meta columns"), colorReset, len(sum.Meta))
	for _, m := range sum.Meta {
		var marks []string
		if columns.IsWPMLInternal(m.Key) {
			marks = append(marks, "wpml")
		}
		for _, d := range defaults {
			if d == m.Key {
				marks = append(marks, "default")
			}
		}
		line := "  " + m.Key
		if len(marks) > 0 {
			line += " [" + strings.Join(marks, ", ") + "]"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

// ---------------------------------------------------------------------------
// config (stored settings)
// ---------------------------------------------------------------------------

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage stored settings",
		Long: `Show and change the settings stored in settings.json.

Keys: ` + strings.Join(settings.Keys, ", "),
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the stored settings (API key masked)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := settings.Load()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, key := range settings.Keys {
					v, _ := st.Get(key)
					if v == "" {
						v = "-"
					}
					fmt.Fprintf(out, "%-12s %s\n", key, v)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change a setting",
			Args:  cobra.ExactArgs(2),
			ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
				if len(args) == 0 {
					return settings.Keys, cobra.ShellCompDirectiveNoFileComp
				}
				return nil, cobra.ShellCompDirectiveNoFileComp
			},
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := settings.Load()
				if err != nil {
					return err
				}
				if err := st.Set(args[0], args[1]); err != nil {
					return err
				}
				if err := settings.Save(st); err != nil {
					return err
				}
				v, _ := st.Get(args[0])
				logSuccess(i18n.T("%s set to %s"), args[0], v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show the settings and prompts file paths",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				sp, err := settings.Path()
				if err != nil {
					return err
				}
				pp, err := settings.PromptsFilePath()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sp)
				fmt.Fprintln(cmd.OutOrStdout(), pp)
				return nil
			},
		},
	)

	return cmd
}
