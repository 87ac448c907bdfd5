package matcher

import (
	"strings"

	"po-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// MaterialIndex resolves item ids to product names and material codes
type MaterialIndex struct {
	// products maps item key to the last non-empty product name
	products map[string]string

	// codes maps item key to its distinct material codes, primary codes first
	codes map[string][]string
}

// NewMaterialIndex builds a MaterialIndex from master mapping entries
func NewMaterialIndex(entries []*models.MappingEntry) *MaterialIndex {
	index := &MaterialIndex{
		products: make(map[string]string),
		codes:    make(map[string][]string),
	}

	primary := make(map[string][]interface{})
	secondary := make(map[string][]interface{})
	var order []string

	for _, entry := range entries {
		key := NormalizeKey(entry.ItemID)
		if IsMissingKey(key) {
			continue
		}
		if _, seen := primary[key]; !seen {
			order = append(order, key)
			primary[key] = nil
		}
		primary[key] = append(primary[key], entry.MaterialCode)
		secondary[key] = append(secondary[key], entry.MaterialCode2)

		if name := strings.TrimSpace(cast.ToString(entry.ProductName)); name != "" {
			index.products[key] = name
		}
	}

	for _, key := range order {
		values := append(append([]interface{}{}, primary[key]...), secondary[key]...)
		index.codes[key] = NormalizeCodes(values...)
	}

	return index
}

// ProductName returns the product name for an item id, or "" when unknown
func (mi *MaterialIndex) ProductName(itemID interface{}) string {
	return mi.products[NormalizeKey(itemID)]
}

// MaterialCodes returns the material codes for an item id. Unknown items have none.
func (mi *MaterialIndex) MaterialCodes(itemID interface{}) []string {
	codes := mi.codes[NormalizeKey(itemID)]
	out := make([]string, len(codes))
	copy(out, codes)
	return out
}

// Len returns the number of indexed items
func (mi *MaterialIndex) Len() int {
	return len(mi.codes)
}

type supplyEntry struct {
	record      *models.SupplyRecord
	materialKey string
}

// SupplyIndex groups supply records by PO number, keeping table order
type SupplyIndex struct {
	byPO map[string][]supplyEntry
}

// NewSupplyIndex builds a SupplyIndex from supply records
func NewSupplyIndex(records []*models.SupplyRecord) *SupplyIndex {
	index := &SupplyIndex{byPO: make(map[string][]supplyEntry)}
	for _, record := range records {
		poKey := NormalizeKey(record.PONumber)
		if IsMissingKey(poKey) {
			continue
		}
		index.byPO[poKey] = append(index.byPO[poKey], supplyEntry{
			record:      record,
			materialKey: NormalizeKey(record.MaterialCode),
		})
	}
	return index
}

// Match returns the records for a PO number whose material code is in codes,
// in supply table order. Duplicates are kept.
func (si *SupplyIndex) Match(poNumber interface{}, codes []string) []*models.SupplyRecord {
	entries := si.byPO[NormalizeKey(poNumber)]
	if len(entries) == 0 || len(codes) == 0 {
		return nil
	}

	wanted := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		wanted[code] = struct{}{}
	}

	var matches []*models.SupplyRecord
	for _, entry := range entries {
		if _, ok := wanted[entry.materialKey]; ok {
			matches = append(matches, entry.record)
		}
	}
	return matches
}

// SumQuantity adds up the quantity of the given records
func SumQuantity(records []*models.SupplyRecord) decimal.Decimal {
	total := decimal.Zero
	for _, record := range records {
		total = total.Add(record.Quantity)
	}
	return total
}

type stockEntry struct {
	city string
	qty  decimal.Decimal
}

// StockIndex groups stock on hand by material code
type StockIndex struct {
	byMaterial map[string][]stockEntry
}

// StockMatch is the result of a stock lookup
type StockMatch struct {
	Code     string
	TotalQty decimal.Decimal
	Records  int
}

// NewStockIndex builds a StockIndex from stock records
func NewStockIndex(records []*models.StockRecord) *StockIndex {
	index := &StockIndex{byMaterial: make(map[string][]stockEntry)}
	for _, record := range records {
		key := NormalizeKey(record.MaterialCode)
		if IsMissingKey(key) {
			continue
		}
		city, _ := cityName(record.City)
		index.byMaterial[key] = append(index.byMaterial[key], stockEntry{
			city: city,
			qty:  record.TotalQty,
		})
	}
	return index
}

// Find looks up stock at a city for each code in turn and returns the total for
// the first code with any matching record.
func (si *StockIndex) Find(city string, codes []string) (StockMatch, bool) {
	if strings.TrimSpace(city) == "" {
		return StockMatch{}, false
	}

	for _, code := range codes {
		match := StockMatch{Code: code, TotalQty: decimal.Zero}
		for _, entry := range si.byMaterial[code] {
			if SameCity(entry.city, city) {
				match.TotalQty = match.TotalQty.Add(entry.qty)
				match.Records++
			}
		}
		if match.Records > 0 {
			return match, true
		}
	}
	return StockMatch{}, false
}
