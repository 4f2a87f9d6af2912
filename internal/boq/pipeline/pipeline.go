// Package pipeline wires together ingestion, classification, mapping,
// validation, categorization, and aggregation into the single entry point
// the CLI calls to process one workbook end to end.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/boqtools/boq-analyzer/internal/boq/boqerr"
	"github.com/boqtools/boq-analyzer/internal/boq/categorize"
	"github.com/boqtools/boq-analyzer/internal/boq/column"
	"github.com/boqtools/boq-analyzer/internal/boq/dictionary"
	"github.com/boqtools/boq-analyzer/internal/boq/header"
	"github.com/boqtools/boq-analyzer/internal/boq/mapping"
	"github.com/boqtools/boq-analyzer/internal/boq/model"
	"github.com/boqtools/boq-analyzer/internal/boq/row"
	"github.com/boqtools/boq-analyzer/internal/boq/sheetclass"
	"github.com/boqtools/boq-analyzer/internal/boq/validate"
	"github.com/boqtools/boq-analyzer/internal/boq/workbook"
	"github.com/boqtools/boq-analyzer/internal/boq/xlsxsource"
	"github.com/boqtools/boq-analyzer/pkg/config"
)

var tracer = otel.Tracer("github.com/boqtools/boq-analyzer/internal/boq/pipeline")

var (
	sheetsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "boq_sheets_processed_total", Help: "Sheets processed, by outcome status."},
		[]string{"status"},
	)
	processingSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "boq_file_processing_seconds", Help: "Wall-clock time to process one workbook."},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(sheetsProcessed, processingSeconds)
}

// Observer receives progress notifications as Run works through a
// workbook's sheets; a CLI or service layer implements it to report
// status without the pipeline importing any presentation concern.
type Observer interface {
	OnSheetStart(name string)
	OnSheetDone(model.SheetMapping)
	OnFileDone(model.FileMapping)
}

// NopObserver implements Observer with no-ops, for callers that don't need
// progress reporting.
type NopObserver struct{}

func (NopObserver) OnSheetStart(string)             {}
func (NopObserver) OnSheetDone(model.SheetMapping)  {}
func (NopObserver) OnFileDone(model.FileMapping)    {}

// Run ingests the workbook at path and produces its FileMapping, checking
// ctx for cancellation between sheets. aliases is only read; dict's
// usage counts are incremented by the categorization lookups.
func Run(ctx context.Context, path string, cfg *config.Config, aliases *config.CanonicalAliasTable, dict *dictionary.CategoryDictionary, obs Observer, logger *slog.Logger) (*model.FileMapping, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = NopObserver{}
	}

	ctx, span := tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(attribute.String("boq.file.path", path)))
	defer span.End()

	start := time.Now()
	fm, err := run(ctx, path, cfg, aliases, dict, obs, logger)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	processingSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return fm, err
}

func run(ctx context.Context, path string, cfg *config.Config, aliases *config.CanonicalAliasTable, dict *dictionary.CategoryDictionary, obs Observer, logger *slog.Logger) (*model.FileMapping, error) {
	if err := workbook.CheckFileSize(path, cfg); err != nil {
		return nil, err
	}

	source := xlsxsource.New()
	wb, err := source.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	info, statErr := os.Stat(path)
	var size int64
	if statErr == nil {
		size = info.Size()
	}

	meta := model.FileMetadata{Filename: path, SizeBytes: size, Format: "xlsx", Version: "1"}

	sheetMappings := make([]model.SheetMapping, 0, len(wb.Sheets))
	for _, sheet := range wb.Sheets {
		if err := ctx.Err(); err != nil {
			return nil, boqerr.Wrap(boqerr.KindCancelled, "pipeline.Run", "cancelled before processing sheet "+sheet.Name, err)
		}

		obs.OnSheetStart(sheet.Name)
		sm := processSheet(sheet, cfg, aliases, dict, logger)
		sheetsProcessed.WithLabelValues(string(sm.ProcessingStatus)).Inc()
		obs.OnSheetDone(sm)
		sheetMappings = append(sheetMappings, sm)
	}

	fm := mapping.BuildFileMapping(uuid.NewString(), meta, sheetMappings, cfg, time.Now())
	obs.OnFileDone(fm)
	return &fm, nil
}

func processSheet(sheet model.Sheet, cfg *config.Config, aliases *config.CanonicalAliasTable, dict *dictionary.CategoryDictionary, logger *slog.Logger) model.SheetMapping {
	sheetType, _, _ := sheetclass.Classify(sheet, cfg)
	headerInfo := header.Locate(sheet, cfg)
	columns := column.Map(headerInfo.Headers, cfg, aliases)
	rows := row.Classify(sheet, columns, headerInfo.RowIndex, cfg)
	issues := validate.Validate(sheet, columns, rows, "", cfg)

	if dict != nil {
		results := categorize.Categorize(sheet, columns, rows, dict, cfg)
		logger.Debug("categorized sheet", slog.String("sheet", sheet.Name), slog.Int("line_items", len(results)))
	}

	return mapping.BuildSheetMapping(sheet.Name, sheetType, headerInfo, columns, rows, issues, cfg)
}
