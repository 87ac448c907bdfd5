package reconciler

import (
	"fmt"
	"time"

	"po-reconciliation-service/internal/matcher"
	"po-reconciliation-service/internal/models"
	"po-reconciliation-service/pkg/errors"
	"po-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Config holds configuration options for the reconciliation engine
type Config struct {
	// Matching options such as city alias overrides
	Matching *matcher.Config

	// Now supplies the current time; the stock check compares expiry dates
	// against its UTC calendar day
	Now func() time.Time `json:"-"`

	// Processing options
	MaxConcurrentFiles int
	ProgressReporting  bool
}

// DefaultConfig returns a default configuration for the reconciliation engine
func DefaultConfig() *Config {
	return &Config{
		Matching:           matcher.DefaultConfig(),
		Now:                time.Now,
		MaxConcurrentFiles: 4,
		ProgressReporting:  false,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Matching == nil {
		return fmt.Errorf("matching configuration is required")
	}
	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("invalid matching configuration: %w", err)
	}
	if c.MaxConcurrentFiles <= 0 {
		return fmt.Errorf("max concurrent files must be positive, got %d", c.MaxConcurrentFiles)
	}
	return nil
}

// FixedClock returns a Now function that always reports t
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// LineResult is the reconciliation outcome of one PO line
type LineResult struct {
	Line          *models.POLine
	ProductName   string
	MaterialCodes []string
	SuppliedQty   decimal.Decimal
	Status        models.Status

	// Supply is the first matching supply record in table order, nil when Not Found
	Supply  *models.SupplyRecord
	Matches int

	// ExpiryInvalid marks a Not Found line whose expiry date is missing or unreadable
	ExpiryInvalid bool
}

// Summary provides a high-level overview of a run
type Summary struct {
	TotalLines        int                          `json:"total_lines"`
	StatusCounts      map[models.Status]int        `json:"status_counts"`
	StockCheckRows    int                          `json:"stock_check_rows"`
	OutcomeCounts     map[models.SupplyOutcome]int `json:"outcome_counts"`
	ExpiryInvalid     int                          `json:"expiry_invalid"`
	InvalidQuantities int                          `json:"invalid_quantities"`
	TotalPOQty        decimal.Decimal              `json:"total_po_qty"`
	TotalSuppliedQty  decimal.Decimal              `json:"total_supplied_qty"`
	AsOf              string                       `json:"as_of"`
}

// Result contains the complete results of one engine pass
type Result struct {
	Lines       []*LineResult
	StockChecks []*StockCheck

	// Reconciliation and Stock are the two ordered output tables
	Reconciliation *models.Table
	Stock          *models.Table

	Summary  *Summary
	Warnings []string
}

// Engine reconciles PO lines against supply records and stock on hand.
// It holds no state between runs.
type Engine struct {
	config       *Config
	preprocessor *DataPreprocessor
	logger       logger.Logger
}

// NewEngine creates a new reconciliation engine
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler", nil, err)
	}

	log := logger.GetGlobalLogger()
	return &Engine{
		config:       config,
		preprocessor: NewDataPreprocessor(log),
		logger:       log.WithComponent("reconciler"),
	}, nil
}

// Reconcile runs one synchronous pass over the inputs. It fails only when an
// input table is absent or lacks a required column.
func (e *Engine) Reconcile(inputs *Inputs) (*Result, error) {
	prepared, err := e.preprocessor.Prepare(inputs)
	if err != nil {
		return nil, err
	}

	materials := matcher.NewMaterialIndex(prepared.Mapping)
	supply := matcher.NewSupplyIndex(prepared.Supply)
	stock := matcher.NewStockIndex(prepared.Stock)
	cities := e.config.Matching.NewCityResolver()
	today := models.DayUTC(e.config.Now())

	e.logger.WithFields(logger.Fields{
		"po_lines":       len(prepared.Lines),
		"mapped_items":   materials.Len(),
		"supply_records": len(prepared.Supply),
		"stock_records":  len(prepared.Stock),
		"as_of":          today.Format("2006-01-02"),
	}).Info("Starting reconciliation")

	var tracker *logger.ProgressTracker
	if e.config.ProgressReporting {
		tracker = logger.NewProgressTracker(logger.ProgressConfig{
			Operation: "reconcile_po_lines",
			Total:     int64(len(prepared.Lines)),
			Logger:    e.logger,
		})
	}

	lines := make([]*LineResult, 0, len(prepared.Lines))
	for _, line := range prepared.Lines {
		lines = append(lines, reconcileLine(line, materials, supply))
		if tracker != nil {
			tracker.Increment()
		}
	}
	if tracker != nil {
		tracker.Complete()
	}

	evaluator := NewStockEvaluator(cities, materials, stock, today, e.logger)
	checks := evaluator.Evaluate(lines)

	result := &Result{
		Lines:          lines,
		StockChecks:    checks,
		Reconciliation: BuildReconciliationTable(inputs.PO, inputs.SR, lines),
		Stock:          BuildStockTable(inputs.PO, inputs.SR, checks),
		Warnings:       prepared.Warnings,
	}
	result.Summary = summarize(lines, checks, prepared.InvalidQuantities, today)

	e.logger.WithFields(logger.Fields{
		"fully_serviced":     result.Summary.StatusCounts[models.StatusFullyServiced],
		"partially_serviced": result.Summary.StatusCounts[models.StatusPartiallyServiced],
		"over_supplied":      result.Summary.StatusCounts[models.StatusOverSupplied],
		"not_found":          result.Summary.StatusCounts[models.StatusNotFound],
		"stock_check_rows":   result.Summary.StockCheckRows,
	}).Info("Reconciliation completed")

	return result, nil
}

// reconcileLine resolves codes for one PO line, sums matching supply and classifies it
func reconcileLine(line *models.POLine, materials *matcher.MaterialIndex, supply *matcher.SupplyIndex) *LineResult {
	result := &LineResult{
		Line:          line,
		ProductName:   materials.ProductName(line.ItemID),
		MaterialCodes: materials.MaterialCodes(line.ItemID),
		SuppliedQty:   decimal.Zero,
	}

	matches := supply.Match(line.PONumber, result.MaterialCodes)
	result.Matches = len(matches)
	if len(matches) > 0 {
		result.SuppliedQty = matcher.SumQuantity(matches)
		result.Supply = matches[0]
	}
	result.Status = ClassifyStatus(line.POQty, result.SuppliedQty, len(matches) > 0)
	return result
}

// ClassifyStatus derives the fulfillment status of a PO line
func ClassifyStatus(poQty, suppliedQty decimal.Decimal, matched bool) models.Status {
	switch {
	case !matched:
		return models.StatusNotFound
	case suppliedQty.Equal(poQty):
		return models.StatusFullyServiced
	case suppliedQty.LessThan(poQty):
		return models.StatusPartiallyServiced
	default:
		return models.StatusOverSupplied
	}
}

func summarize(lines []*LineResult, checks []*StockCheck, invalidQuantities int, today time.Time) *Summary {
	summary := &Summary{
		TotalLines:        len(lines),
		StatusCounts:      make(map[models.Status]int),
		StockCheckRows:    len(checks),
		OutcomeCounts:     make(map[models.SupplyOutcome]int),
		InvalidQuantities: invalidQuantities,
		TotalPOQty:        decimal.Zero,
		TotalSuppliedQty:  decimal.Zero,
		AsOf:              today.Format("2006-01-02"),
	}

	for _, status := range models.AllStatuses() {
		summary.StatusCounts[status] = 0
	}
	for _, outcome := range models.AllOutcomes() {
		summary.OutcomeCounts[outcome] = 0
	}

	for _, line := range lines {
		summary.StatusCounts[line.Status]++
		summary.TotalPOQty = summary.TotalPOQty.Add(line.Line.POQty)
		summary.TotalSuppliedQty = summary.TotalSuppliedQty.Add(line.SuppliedQty)
		if line.ExpiryInvalid {
			summary.ExpiryInvalid++
		}
	}
	for _, check := range checks {
		summary.OutcomeCounts[check.Outcome]++
	}

	return summary
}
