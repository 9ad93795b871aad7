package pricing

import "github.com/shopspring/decimal"

// DefaultTable is the built-in airport transfer catalog, used when no
// catalog file is configured.
func DefaultTable() Table {
	return Table{
		Currency: "EUR",
		Routes: map[string]map[string]decimal.Decimal{
			"larnaca_to_nicosia": {
				"sedan":   decimal.NewFromInt(60),
				"minivan": decimal.NewFromInt(85),
				"minibus": decimal.NewFromInt(130),
			},
			"larnaca_to_limassol": {
				"sedan":   decimal.NewFromInt(75),
				"minivan": decimal.NewFromInt(100),
				"minibus": decimal.NewFromInt(150),
			},
			"larnaca_to_ayia_napa": {
				"sedan":   decimal.NewFromInt(65),
				"minivan": decimal.NewFromInt(90),
				"minibus": decimal.NewFromInt(135),
			},
			"larnaca_to_paphos": {
				"sedan":   decimal.NewFromInt(135),
				"minivan": decimal.NewFromInt(170),
			},
			"paphos_to_limassol": {
				"sedan":   decimal.NewFromInt(70),
				"minivan": decimal.NewFromInt(95),
				"minibus": decimal.NewFromInt(140),
			},
			"paphos_to_nicosia": {
				"sedan":   decimal.NewFromInt(145),
				"minivan": decimal.NewFromInt(185),
			},
		},
	}
}
