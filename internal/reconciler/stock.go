package reconciler

import (
	"fmt"
	"time"

	"po-reconciliation-service/internal/matcher"
	"po-reconciliation-service/internal/models"
	"po-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// StockCheck is the stock on hand verdict for a line that supply did not cover
type StockCheck struct {
	Result *LineResult

	// CityMapped is the canonical city, nil when the PO line has no city
	CityMapped    interface{}
	MaterialCodes []string

	SOHFound bool
	SOHCode  string
	SOHStock decimal.Decimal

	Outcome models.SupplyOutcome
	Message string
}

// StockEvaluator checks stock on hand for partially serviced lines and for
// unmatched lines that have not expired yet
type StockEvaluator struct {
	cities    *matcher.CityResolver
	materials *matcher.MaterialIndex
	stock     *matcher.StockIndex
	today     time.Time
	logger    logger.Logger
}

// NewStockEvaluator creates a stock evaluator. today is truncated to its UTC day.
func NewStockEvaluator(
	cities *matcher.CityResolver,
	materials *matcher.MaterialIndex,
	stock *matcher.StockIndex,
	today time.Time,
	log logger.Logger,
) *StockEvaluator {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &StockEvaluator{
		cities:    cities,
		materials: materials,
		stock:     stock,
		today:     models.DayUTC(today),
		logger:    log.WithComponent("stock"),
	}
}

// Evaluate returns a stock check for every eligible line, in line order.
// Not Found lines with a missing or unreadable expiry are skipped and flagged.
func (se *StockEvaluator) Evaluate(lines []*LineResult) []*StockCheck {
	checks := make([]*StockCheck, 0)
	for _, line := range lines {
		if !se.eligible(line) {
			continue
		}
		checks = append(checks, se.check(line))
	}
	return checks
}

// eligible reports whether a line needs a stock check
func (se *StockEvaluator) eligible(line *LineResult) bool {
	switch line.Status {
	case models.StatusPartiallyServiced:
		return true
	case models.StatusNotFound:
		expiry, err := models.ParseDate(line.Line.ExpiryDate)
		if err != nil {
			line.ExpiryInvalid = true
			se.logger.WithFields(logger.Fields{
				"po_number": models.FormatValue(line.Line.PONumber),
				"row":       line.Line.Index + 1,
				"value":     models.FormatValue(line.Line.ExpiryDate),
			}).WithError(err).Warn("Skipping stock check for line with unreadable expiry date")
			return false
		}
		return models.DayUTC(expiry).After(se.today)
	default:
		return false
	}
}

func (se *StockEvaluator) check(line *LineResult) *StockCheck {
	check := &StockCheck{
		Result:        line,
		CityMapped:    se.cities.Resolve(line.Line.City),
		MaterialCodes: se.materials.MaterialCodes(line.Line.ItemID),
		SOHStock:      decimal.Zero,
	}

	if city, ok := se.cities.ResolveString(line.Line.City); ok {
		if match, found := se.stock.Find(city, check.MaterialCodes); found {
			check.SOHFound = true
			check.SOHCode = match.Code
			check.SOHStock = match.TotalQty
		}
	}

	check.Outcome, check.Message = ClassifySupply(check.SOHFound, check.SOHStock, line.Line.POQty)
	return check
}

// ClassifySupply decides whether stock on hand covers the PO quantity
func ClassifySupply(found bool, stock, poQty decimal.Decimal) (models.SupplyOutcome, string) {
	switch {
	case !found:
		return models.OutcomeNoStockInfo, "No stock info found"
	case stock.GreaterThanOrEqual(poQty):
		return models.OutcomeFromStock, fmt.Sprintf("Can be supplied from stock (Stock: %s, PO Qty: %s)", stock, poQty)
	default:
		return models.OutcomeNotEnough, fmt.Sprintf("Not enough stock (Stock: %s, PO Qty: %s)", stock, poQty)
	}
}
