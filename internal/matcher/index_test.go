package matcher

import (
	"math"
	"reflect"
	"testing"

	"po-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

func createTestMappingEntries() []*models.MappingEntry {
	return []*models.MappingEntry{
		{Index: 0, ItemID: 1001.0, ProductName: "Detergent 1kg", MaterialCode: 500.0, MaterialCode2: math.NaN()},
		{Index: 1, ItemID: "1002", ProductName: "Soap Bar", MaterialCode: "600", MaterialCode2: "601.0"},
		{Index: 2, ItemID: 1002, ProductName: "Soap Bar 100g", MaterialCode: 602, MaterialCode2: 600},
		{Index: 3, ItemID: "1003", ProductName: nil, MaterialCode: nil, MaterialCode2: nil},
		{Index: 4, ItemID: nil, ProductName: "orphan", MaterialCode: 999},
	}
}

func createTestSupplyRecords() []*models.SupplyRecord {
	return []*models.SupplyRecord{
		{Index: 0, PONumber: 7001.0, MaterialCode: "500", Quantity: decimal.NewFromInt(3)},
		{Index: 1, PONumber: "7001", MaterialCode: 500.0, Quantity: decimal.NewFromInt(4)},
		{Index: 2, PONumber: "7001", MaterialCode: "999", Quantity: decimal.NewFromInt(50)},
		{Index: 3, PONumber: "7002", MaterialCode: "601", Quantity: decimal.NewFromInt(2)},
		{Index: 4, PONumber: nil, MaterialCode: "500", Quantity: decimal.NewFromInt(8)},
	}
}

func TestMaterialIndex(t *testing.T) {
	index := NewMaterialIndex(createTestMappingEntries())

	tests := []struct {
		name          string
		itemID        interface{}
		expectedName  string
		expectedCodes []string
	}{
		{"nan secondary filtered", "1001", "Detergent 1kg", []string{"500"}},
		{"float item id", 1001.0, "Detergent 1kg", []string{"500"}},
		{"primary codes first then secondary, deduplicated", "1002", "Soap Bar 100g", []string{"600", "602", "601"}},
		{"item without codes", 1003, "", []string{}},
		{"absent item", "4040", "", []string{}},
		{"missing item id", nil, "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := index.ProductName(tt.itemID); got != tt.expectedName {
				t.Errorf("ProductName() = %q, want %q", got, tt.expectedName)
			}
			if got := index.MaterialCodes(tt.itemID); !reflect.DeepEqual(got, tt.expectedCodes) {
				t.Errorf("MaterialCodes() = %v, want %v", got, tt.expectedCodes)
			}
		})
	}

	if index.Len() != 3 {
		t.Errorf("expected 3 indexed items, got %d", index.Len())
	}
}

func TestMaterialIndex_CodesAreCopies(t *testing.T) {
	index := NewMaterialIndex(createTestMappingEntries())
	codes := index.MaterialCodes("1002")
	codes[0] = "tampered"

	if got := index.MaterialCodes("1002")[0]; got != "600" {
		t.Errorf("index was mutated through returned slice: %s", got)
	}
}

func TestSupplyIndex_Match(t *testing.T) {
	index := NewSupplyIndex(createTestSupplyRecords())

	matches := index.Match("7001", []string{"500"})
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Index != 0 || matches[1].Index != 1 {
		t.Errorf("matches should keep supply table order, got %d then %d", matches[0].Index, matches[1].Index)
	}
	if total := SumQuantity(matches); !total.Equal(decimal.NewFromInt(7)) {
		t.Errorf("expected supplied 7, got %s", total)
	}

	if got := index.Match(7002, []string{"600", "601"}); len(got) != 1 {
		t.Errorf("expected secondary code match, got %d", len(got))
	}
	if got := index.Match("7001", nil); got != nil {
		t.Errorf("no codes should match nothing, got %d", len(got))
	}
	if got := index.Match("8000", []string{"500"}); got != nil {
		t.Errorf("unknown PO should match nothing, got %d", len(got))
	}
}

func TestSupplyIndex_DuplicatesCounted(t *testing.T) {
	records := []*models.SupplyRecord{
		{Index: 0, PONumber: "9", MaterialCode: "1", Quantity: decimal.NewFromInt(5)},
		{Index: 1, PONumber: "9", MaterialCode: "1", Quantity: decimal.NewFromInt(5)},
	}
	matches := NewSupplyIndex(records).Match("9", []string{"1"})

	if total := SumQuantity(matches); !total.Equal(decimal.NewFromInt(10)) {
		t.Errorf("identical records should both count, got %s", total)
	}
}

func TestStockIndex_Find(t *testing.T) {
	index := NewStockIndex([]*models.StockRecord{
		{Index: 0, City: "mumbai", MaterialCode: 500.0, TotalQty: decimal.NewFromInt(20)},
		{Index: 1, City: " MUMBAI ", MaterialCode: "500", TotalQty: decimal.NewFromInt(5)},
		{Index: 2, City: "pune", MaterialCode: "500", TotalQty: decimal.NewFromInt(100)},
		{Index: 3, City: "mumbai", MaterialCode: "601", TotalQty: decimal.NewFromInt(1)},
		{Index: 4, City: "mumbai", MaterialCode: "602", TotalQty: decimal.NewFromInt(40)},
	})

	tests := []struct {
		name      string
		city      string
		codes     []string
		wantFound bool
		wantCode  string
		wantQty   int64
	}{
		{"sums every record for the city", "Mumbai", []string{"500"}, true, "500", 25},
		{"first code with a match wins", "mumbai", []string{"601", "602"}, true, "601", 1},
		{"skips codes without a match", "mumbai", []string{"700", "602"}, true, "602", 40},
		{"other city", "pune", []string{"601"}, false, "", 0},
		{"blank city", " ", []string{"500"}, false, "", 0},
		{"no codes", "mumbai", nil, false, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, found := index.Find(tt.city, tt.codes)
			if found != tt.wantFound {
				t.Fatalf("Find() found = %v, want %v", found, tt.wantFound)
			}
			if !found {
				return
			}
			if match.Code != tt.wantCode {
				t.Errorf("Find() code = %s, want %s", match.Code, tt.wantCode)
			}
			if !match.TotalQty.Equal(decimal.NewFromInt(tt.wantQty)) {
				t.Errorf("Find() qty = %s, want %d", match.TotalQty, tt.wantQty)
			}
		})
	}
}
