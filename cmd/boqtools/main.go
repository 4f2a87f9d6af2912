// Command boqtools ingests, validates, categorizes, and compares BoQ
// workbooks from the command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/boqtools/boq-analyzer/internal/boq/categorize"
	"github.com/boqtools/boq-analyzer/internal/boq/column"
	"github.com/boqtools/boq-analyzer/internal/boq/compare"
	"github.com/boqtools/boq-analyzer/internal/boq/dictionary"
	"github.com/boqtools/boq-analyzer/internal/boq/header"
	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/internal/boq/notify"
	"github.com/boqtools/boq-analyzer/internal/boq/pipeline"
	"github.com/boqtools/boq-analyzer/internal/boq/row"
	"github.com/boqtools/boq-analyzer/internal/boq/sheetclass"
	"github.com/boqtools/boq-analyzer/internal/boq/xlsxsource"
	"github.com/boqtools/boq-analyzer/pkg/config"
	"github.com/boqtools/boq-analyzer/pkg/cron"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	cfg.AliasFilePath = envOr("BOQ_ALIAS_FILE", filepath.Join(os.Getenv("HOME"), ".boqtools", "canonical_aliases.json"))
	dictPath := envOr("BOQ_DICTIONARY_FILE", filepath.Join(os.Getenv("HOME"), ".boqtools", "categories.json"))

	var err error
	switch os.Args[1] {
	case "process":
		err = runProcess(ctx, cfg, dictPath, os.Args[2:])
	case "export":
		err = runExport(ctx, cfg, dictPath, os.Args[2:])
	case "list":
		err = runList(dictPath, os.Args[2:])
	case "status":
		err = runStatus(ctx, cfg, os.Args[2:])
	case "clear":
		err = runClear(dictPath)
	case "compare":
		err = runCompare(ctx, cfg, os.Args[2:])
	case "apply-review":
		err = runApplyReview(dictPath, os.Args[2:])
	case "watch":
		err = runWatch(ctx, cfg, dictPath, os.Args[2:])
	case "help", "-h", "--help":
		printHelp()
		return
	case "quit":
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}

	if err != nil {
		slog.Error("command failed", slog.String("command", os.Args[1]), slog.Any("error", err))
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`boqtools - BoQ ingestion, validation, and categorization

Usage:
  boqtools process <file.xlsx>      run the full pipeline, print a summary
  boqtools export <file.xlsx> <out> run the pipeline, write the mapping as JSON
  boqtools list                     list every learned category mapping
  boqtools status <file.xlsx>       print per-sheet processing status only
  boqtools clear                    clear the category dictionary
  boqtools compare <master> <offer> compare two workbooks' line items
  boqtools apply-review <reviewed.json> apply a reviewed review artifact and learn confirmed categories
  boqtools watch <dir> <cron-expr>   sweep a directory for workbooks on a schedule
  boqtools help                     show this message`)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadDictionary(path string) (*dictionary.CategoryDictionary, error) {
	return dictionary.Load(path)
}

func loadAliases(cfg *config.Config) (*config.CanonicalAliasTable, error) {
	return config.LoadAliasTable(cfg.AliasFilePath, cfg.BundleDir)
}

type cliObserver struct{}

func (cliObserver) OnSheetStart(name string) {
	fmt.Printf("processing sheet %q...\n", name)
}

func (cliObserver) OnSheetDone(sm model.SheetMapping) {
	fmt.Printf("  %s: status=%s confidence=%.2f errors=%d warnings=%d\n",
		sm.SheetName, sm.ProcessingStatus, sm.Confidence.Overall, sm.ErrorCount, sm.WarningCount)
}

func (cliObserver) OnFileDone(fm model.FileMapping) {
	fmt.Printf("done: global_confidence=%.2f export_ready=%v\n", fm.GlobalConfidence, fm.ExportReady)
}

func runProcess(ctx context.Context, cfg *config.Config, dictPath string, args []string) error {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	notifyEmail := fs.String("notify", "", "email a review summary to this address if the file needs attention")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: boqtools process [-notify email] <file.xlsx>")
	}

	aliases, err := loadAliases(cfg)
	if err != nil {
		return err
	}
	dict, err := loadDictionary(dictPath)
	if err != nil {
		return err
	}

	fm, err := pipeline.Run(ctx, fs.Arg(0), cfg, aliases, dict, cliObserver{}, slog.Default())
	if err != nil {
		return err
	}

	if *notifyEmail != "" && (!fm.ExportReady || len(fm.ReviewFlags) > 0) {
		n := notify.New()
		if nerr := n.NotifyFileProcessed(*notifyEmail, *fm); nerr != nil {
			slog.Warn("failed to send review notification", slog.Any("error", nerr))
		}
	}
	return nil
}

func runExport(ctx context.Context, cfg *config.Config, dictPath string, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: boqtools export <file.xlsx> <out.json>")
	}

	aliases, err := loadAliases(cfg)
	if err != nil {
		return err
	}
	dict, err := loadDictionary(dictPath)
	if err != nil {
		return err
	}

	fm, err := pipeline.Run(ctx, fs.Arg(0), cfg, aliases, dict, pipeline.NopObserver{}, slog.Default())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(fm, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(fs.Arg(1), data, 0o644); err != nil {
		return err
	}

	return writeReviewArtifact(ctx, fs.Arg(0), fs.Arg(1), cfg, aliases, dict)
}

// writeReviewArtifact re-derives each sheet's categorization results and,
// when any row needs review, writes a sibling "<out>.review.json" a
// reviewer can fill in Category on and feed back to "boqtools apply-review".
// Step A's misses are aggregated per sheet, deduplicated by description, and
// ordered by frequency descending before the artifact is rendered.
func writeReviewArtifact(ctx context.Context, sourcePath, outPath string, cfg *config.Config, aliases *config.CanonicalAliasTable, dict *dictionary.CategoryDictionary) error {
	source := xlsxsource.New()
	wb, err := source.Load(ctx, sourcePath)
	if err != nil {
		return err
	}

	var items []categorize.ReviewItem
	for _, sheet := range wb.Sheets {
		headerInfo := header.Locate(sheet, cfg)
		columns := column.Map(headerInfo.Headers, cfg, aliases)
		rows := row.Classify(sheet, columns, headerInfo.RowIndex, cfg)
		results := categorize.Categorize(sheet, columns, rows, dict, cfg)
		items = append(items, categorize.CollectReview(sheet.Name, results, dict)...)
	}

	if len(items) == 0 {
		return nil
	}

	data, err := categorize.ReviewArtifactJSON(items)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath+".review.json", data, 0o644)
}

// runApplyReview is Step D/E's CLI entry point: it reads back a review
// artifact a reviewer has filled in, applies each Description -> Category
// answer, reports coverage, then teaches every newly confirmed pair into
// the dictionary (backing it up first) before saving it.
func runApplyReview(dictPath string, args []string) error {
	fs := flag.NewFlagSet("apply-review", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: boqtools apply-review <reviewed.json>")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	reviewed, err := categorize.ParseReviewJSON(data)
	if err != nil {
		return err
	}

	results := make([]categorize.Result, len(reviewed))
	for i, rr := range reviewed {
		results[i] = categorize.Result{RowIndex: i, Description: rr.Description, NeedsReview: true}
	}
	stats, err := categorize.ApplyReview(results, reviewed)
	if err != nil {
		return err
	}
	fmt.Printf("rows_updated=%d remaining_unmatched=%d coverage_rate=%.2f\n", stats.RowsUpdated, stats.RemainingUnmatched, stats.CoverageRate)

	dict, err := loadDictionary(dictPath)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, r := range results {
		if r.Category == "" {
			continue
		}
		confirmed, err := categorize.Confirm(dict, r.Description, r.Category, now)
		if err != nil {
			return err
		}
		if confirmed.Conflict {
			fmt.Printf("conflict: %q already mapped to %q, keeping existing mapping\n", r.Description, confirmed.ExistingCategory)
		}
	}
	return dict.Save()
}

func runList(dictPath string, args []string) error {
	dict, err := loadDictionary(dictPath)
	if err != nil {
		return err
	}
	for _, m := range dict.ListMappings() {
		fmt.Printf("%-40s -> %s\n", m.Description, m.Category)
	}
	return nil
}

func runStatus(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: boqtools status <file.xlsx>")
	}

	source := xlsxsource.New()
	wb, err := source.Load(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	for _, sheet := range wb.Sheets {
		sheetType, score, _ := sheetclass.Classify(sheet, cfg)
		fmt.Printf("%-20s type=%-14s score=%.2f rows=%d cols=%d\n", sheet.Name, sheetType, score, sheet.RowCount(), sheet.ColCount())
	}
	return nil
}

func runClear(dictPath string) error {
	dict, err := loadDictionary(dictPath)
	if err != nil {
		return err
	}
	if _, err := dict.BackupCurrentFile(time.Now()); err != nil {
		return err
	}
	for _, category := range dict.Categories() {
		dict.DeleteMappings(category)
	}
	return dict.Save()
}

func runCompare(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: boqtools compare <master.xlsx> <offer.xlsx>")
	}

	aliases, err := loadAliases(cfg)
	if err != nil {
		return err
	}

	masterSheet, masterCols, masterRows, err := loadPrimarySheet(ctx, fs.Arg(0), cfg, aliases)
	if err != nil {
		return err
	}
	offerSheet, offerCols, offerRows, err := loadPrimarySheet(ctx, fs.Arg(1), cfg, aliases)
	if err != nil {
		return err
	}

	result := compare.Compare(masterSheet, masterCols, masterRows, offerSheet, offerCols, offerRows, cfg)
	for _, m := range result.Matched {
		delta := "n/a"
		if m.TotalPriceDelta != nil {
			delta = m.TotalPriceDelta.Display()
		}
		fmt.Printf("%-30s delta_total=%s (%s, confidence=%.2f)\n", m.Key.Description, delta, m.MatchMethod, m.MatchConfidence)
	}
	if len(result.UnmatchedMaster) > 0 {
		fmt.Printf("%d master rows had no offer match\n", len(result.UnmatchedMaster))
	}
	if len(result.UnmatchedOffer) > 0 {
		fmt.Printf("%d offer rows had no master match\n", len(result.UnmatchedOffer))
	}
	return nil
}

// runWatch starts a cron-scheduled directory sweep and blocks until ctx
// is cancelled (Ctrl-C or SIGTERM), then stops the scheduler gracefully.
func runWatch(ctx context.Context, cfg *config.Config, dictPath string, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	notifyEmail := fs.String("notify", "", "email a review summary for any file needing attention")
	fs.Parse(args)
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: boqtools watch [-notify email] <dir> <cron-expr>")
	}

	aliases, err := loadAliases(cfg)
	if err != nil {
		return err
	}
	dict, err := loadDictionary(dictPath)
	if err != nil {
		return err
	}

	var notifier *notify.Notifier
	if *notifyEmail != "" {
		notifier = notify.New()
	}

	sched := cron.NewScheduler(fs.Arg(0), cfg, aliases, dict, notifier, *notifyEmail, slog.Default())
	if err := sched.Start(fs.Arg(1)); err != nil {
		return err
	}

	<-ctx.Done()
	stopped := sched.Stop()
	<-stopped.Done()
	return dict.Save()
}

func loadPrimarySheet(ctx context.Context, path string, cfg *config.Config, aliases *config.CanonicalAliasTable) (model.Sheet, []model.ColumnMapping, []model.RowClassification, error) {
	source := xlsxsource.New()
	wb, err := source.Load(ctx, path)
	if err != nil {
		return model.Sheet{}, nil, nil, err
	}

	var best model.Sheet
	bestScore := -1.0
	for _, sheet := range wb.Sheets {
		_, score, _ := sheetclass.Classify(sheet, cfg)
		if score > bestScore {
			best, bestScore = sheet, score
		}
	}

	headerInfo := header.Locate(best, cfg)
	columns := column.Map(headerInfo.Headers, cfg, aliases)
	rows := row.Classify(best, columns, headerInfo.RowIndex, cfg)
	return best, columns, rows, nil
}
