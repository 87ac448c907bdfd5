// Package reconciler matches purchase order lines against supply records and
// stock on hand.
//
// A run has two stages:
//  1. Loading: the four input files (PO lines, stock on hand, item master and
//     supply records) are read concurrently into tables
//  2. Reconciliation: a single synchronous Engine pass classifies every PO line
//     and checks stock for the lines supply did not cover
//
// The Engine can be used on its own with tables loaded elsewhere; the
// ReconciliationService adds file loading, run ids and operation logging.
//
// Example usage:
//
//	service, err := reconciler.NewReconciliationService(afero.NewOsFs(), reconciler.DefaultConfig())
//	result, err := service.ProcessReconciliation(ctx, &reconciler.ReconciliationRequest{
//		POFile:     "fresh_fr.xlsx",
//		SOHFile:    "fresh_soh.xlsx",
//		MasterFile: "master_map_item.xlsx",
//		SRFile:     "sr_data.xlsx",
//	})
package reconciler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"po-reconciliation-service/internal/parsers"
	"po-reconciliation-service/pkg/errors"
	"po-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ReconciliationRequest represents a request for reconciliation
type ReconciliationRequest struct {
	POFile     string
	SOHFile    string
	MasterFile string
	SRFile     string

	// TableConfigs overrides the default per table load configuration, keyed by table name
	TableConfigs map[string]*parsers.TableConfig
}

// Validate validates the reconciliation request
func (r *ReconciliationRequest) Validate() error {
	missing := make([]string, 0)
	for _, f := range r.files() {
		if strings.TrimSpace(f.path) == "" {
			missing = append(missing, f.table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("input file required for: %s", strings.Join(missing, ", "))
	}

	for name, config := range r.TableConfigs {
		if config == nil {
			continue
		}
		if err := config.Validate(); err != nil {
			return fmt.Errorf("invalid %s table configuration: %w", name, err)
		}
	}
	return nil
}

type inputFile struct {
	table string
	path  string
}

func (r *ReconciliationRequest) files() []inputFile {
	return []inputFile{
		{parsers.TablePO, r.POFile},
		{parsers.TableSOH, r.SOHFile},
		{parsers.TableMaster, r.MasterFile},
		{parsers.TableSR, r.SRFile},
	}
}

func (r *ReconciliationRequest) tableConfig(name string) *parsers.TableConfig {
	if config, ok := r.TableConfigs[name]; ok && config != nil {
		config.Name = name
		return config
	}
	return parsers.DefaultTableConfig(name)
}

// ReconciliationResult contains the complete results of a service run
type ReconciliationResult struct {
	*Result

	RunID       string               `json:"run_id"`
	ProcessedAt time.Time            `json:"processed_at"`
	Duration    time.Duration        `json:"duration"`
	LoadStats   []*parsers.LoadStats `json:"load_stats"`
}

// Progress tracks the steps of a service run
type Progress struct {
	RunID           string        `json:"run_id"`
	TotalSteps      int           `json:"total_steps"`
	CompletedSteps  int           `json:"completed_steps"`
	CurrentStep     string        `json:"current_step"`
	PercentComplete float64       `json:"percent_complete"`
	ElapsedTime     time.Duration `json:"elapsed_time"`
}

// ProgressCallback is called after each step of a run
type ProgressCallback func(Progress)

// Run steps reported to progress callbacks
const (
	StepLoadInputs = "load_inputs"
	StepReconcile  = "reconcile"
	StepComplete   = "complete"

	totalSteps = 3
)

// ReconciliationService loads input files and runs the engine
type ReconciliationService struct {
	loader *parsers.ConcurrentLoader
	engine *Engine
	config *Config
	logger logger.Logger

	callbacks     []ProgressCallback
	callbackMutex sync.RWMutex
}

// NewReconciliationService creates a new reconciliation service reading from fs
func NewReconciliationService(fs afero.Fs, config *Config) (*ReconciliationService, error) {
	if config == nil {
		config = DefaultConfig()
	}

	engine, err := NewEngine(config)
	if err != nil {
		return nil, err
	}

	return &ReconciliationService{
		loader: parsers.NewConcurrentLoader(parsers.NewLoader(fs), config.MaxConcurrentFiles),
		engine: engine,
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("service"),
	}, nil
}

// ProcessReconciliation loads the four inputs and reconciles them
func (rs *ReconciliationService) ProcessReconciliation(
	ctx context.Context,
	request *ReconciliationRequest,
) (*ReconciliationResult, error) {
	if request == nil {
		return nil, errors.ReconciliationError(errors.CodeMissingInput, "reconcile", nil)
	}
	if err := request.Validate(); err != nil {
		return nil, errors.ReconciliationError(errors.CodeMissingInput, "reconcile", err)
	}

	runID := uuid.NewString()
	startTime := time.Now()
	op := logger.NewOperationLogger("reconciliation", rs.logger.WithField("run_id", runID))
	notify := func(step string, completed int) {
		rs.notifyProgress(Progress{
			RunID:           runID,
			TotalSteps:      totalSteps,
			CompletedSteps:  completed,
			CurrentStep:     step,
			PercentComplete: float64(completed) / float64(totalSteps) * 100,
			ElapsedTime:     time.Since(startTime),
		})
	}

	requests := make([]parsers.LoadRequest, 0, 4)
	for _, f := range request.files() {
		requests = append(requests, parsers.LoadRequest{Path: f.path, Config: request.tableConfig(f.table)})
	}

	op.Step(StepLoadInputs, logger.Fields{"files": len(requests)})
	loaded, err := rs.loader.LoadAll(ctx, requests)
	if err != nil {
		op.Error(err)
		return nil, err
	}

	tables, err := parsers.Tables(loaded)
	if err != nil {
		op.Error(err)
		return nil, errors.InternalError(errors.CodeUnexpectedError, StepLoadInputs, err)
	}

	stats := make([]*parsers.LoadStats, 0, len(loaded))
	for _, l := range loaded {
		stats = append(stats, l.Stats)
	}

	notify(StepLoadInputs, 1)

	op.Step(StepReconcile, logger.Fields{"po_lines": tables[parsers.TablePO].Len()})
	result, err := rs.engine.Reconcile(InputsFromTables(tables))
	if err != nil {
		op.Error(err)
		return nil, err
	}

	notify(StepReconcile, 2)

	out := &ReconciliationResult{
		Result:      result,
		RunID:       runID,
		ProcessedAt: startTime,
		Duration:    time.Since(startTime),
		LoadStats:   stats,
	}

	op.Success(logger.Fields{
		"po_lines":         result.Summary.TotalLines,
		"stock_check_rows": result.Summary.StockCheckRows,
		"warnings":         len(result.Warnings),
	})
	notify(StepComplete, totalSteps)
	return out, nil
}

// AddProgressCallback registers a callback for run progress
func (rs *ReconciliationService) AddProgressCallback(callback ProgressCallback) {
	rs.callbackMutex.Lock()
	defer rs.callbackMutex.Unlock()
	rs.callbacks = append(rs.callbacks, callback)
}

func (rs *ReconciliationService) notifyProgress(progress Progress) {
	rs.callbackMutex.RLock()
	defer rs.callbackMutex.RUnlock()
	for _, callback := range rs.callbacks {
		callback(progress)
	}
}

// GetConfiguration returns the current configuration
func (rs *ReconciliationService) GetConfiguration() *Config {
	return rs.config
}
