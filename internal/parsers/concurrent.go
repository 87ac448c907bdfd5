package parsers

import (
	"context"
	"fmt"

	"po-reconciliation-service/internal/models"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
)

// LoadRequest names one file to load
type LoadRequest struct {
	Path   string
	Config *TableConfig
}

// LoadResult holds the outcome of one load
type LoadResult struct {
	Request LoadRequest
	Table   *models.Table
	Stats   *LoadStats
	Error   error
}

// ConcurrentLoader loads several files at once
type ConcurrentLoader struct {
	loader         *Loader
	maxConcurrency int
}

// NewConcurrentLoader creates a concurrent loader on top of loader
func NewConcurrentLoader(loader *Loader, maxConcurrency int) *ConcurrentLoader {
	if maxConcurrency <= 0 {
		maxConcurrency = 4 // Default concurrency
	}
	return &ConcurrentLoader{
		loader:         loader,
		maxConcurrency: maxConcurrency,
	}
}

// LoadAll loads every request and returns the results in request order. The
// returned error combines every failed load, also in request order.
func (cl *ConcurrentLoader) LoadAll(ctx context.Context, requests []LoadRequest) ([]*LoadResult, error) {
	results := make([]*LoadResult, len(requests))

	p := pool.New().WithMaxGoroutines(cl.maxConcurrency)
	for i, req := range requests {
		p.Go(func() {
			result := &LoadResult{Request: req}
			result.Table, result.Stats, result.Error = cl.loader.Load(ctx, req.Path, req.Config)
			results[i] = result
		})
	}
	p.Wait()

	var combined error
	for _, result := range results {
		if result.Error != nil {
			combined = multierr.Append(combined, result.Error)
		}
	}
	return results, combined
}

// Tables indexes successful results by table name
func Tables(results []*LoadResult) (map[string]*models.Table, error) {
	tables := make(map[string]*models.Table, len(results))
	for _, result := range results {
		if result.Error != nil || result.Table == nil {
			continue
		}
		name := result.Request.Config.Name
		if _, dup := tables[name]; dup {
			return nil, fmt.Errorf("table %s loaded twice", name)
		}
		tables[name] = result.Table
	}
	return tables, nil
}
