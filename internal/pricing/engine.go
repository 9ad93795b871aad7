// Package pricing is the single source of truth for what a transfer costs.
// Nothing downstream of Compute ever trusts a caller-supplied amount.
package pricing

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	TripOneWay = "one-way"
	TripReturn = "return"
)

var (
	ErrUnknownRoute           = errors.New("unknown route")
	ErrUnknownVehicleForRoute = errors.New("unknown vehicle for route")
	ErrInvalidTripType        = errors.New("invalid trip type")
)

var returnDiscountRate = decimal.New(1, -1) // 10%

type Quote struct {
	PerLeg   decimal.Decimal `json:"per_leg"`
	Legs     int             `json:"legs"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Table maps route id -> vehicle type id -> per-leg price.
type Table struct {
	Currency string
	Routes   map[string]map[string]decimal.Decimal
}

type Engine struct {
	table Table
}

func NewEngine(table Table) *Engine {
	if table.Currency == "" {
		table.Currency = "EUR"
	}
	return &Engine{table: table}
}

func (e *Engine) Currency() string {
	return e.table.Currency
}

// Compute is deterministic and performs no I/O.
func (e *Engine) Compute(routeID, vehicleTypeID, tripType string) (Quote, error) {
	var legs int
	switch tripType {
	case TripOneWay:
		legs = 1
	case TripReturn:
		legs = 2
	default:
		return Quote{}, fmt.Errorf("%w: %q", ErrInvalidTripType, tripType)
	}

	vehicles, ok := e.table.Routes[routeID]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %q", ErrUnknownRoute, routeID)
	}
	perLeg, ok := vehicles[vehicleTypeID]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %q on %q", ErrUnknownVehicleForRoute, vehicleTypeID, routeID)
	}

	subtotal := perLeg.Mul(decimal.NewFromInt(int64(legs)))
	discount := decimal.Zero
	if tripType == TripReturn {
		discount = subtotal.Mul(returnDiscountRate).Round(0)
	}

	return Quote{
		PerLeg:   perLeg,
		Legs:     legs,
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}, nil
}

type catalogFile struct {
	Currency string                          `yaml:"currency"`
	Routes   map[string]map[string]yamlPrice `yaml:"routes"`
}

type yamlPrice decimal.Decimal

func (p *yamlPrice) UnmarshalYAML(n *yaml.Node) error {
	d, err := decimal.NewFromString(n.Value)
	if err != nil {
		return fmt.Errorf("price %q at line %d: %w", n.Value, n.Line, err)
	}
	if d.IsNegative() {
		return fmt.Errorf("price %q at line %d: must not be negative", n.Value, n.Line)
	}
	*p = yamlPrice(d)
	return nil
}

// LoadTable reads a YAML catalog:
//
//	currency: EUR
//	routes:
//	  larnaca_to_nicosia:
//	    sedan: 60
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read catalog: %w", err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Table{}, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Routes) == 0 {
		return Table{}, errors.New("parse catalog: no routes")
	}

	t := Table{Currency: f.Currency, Routes: make(map[string]map[string]decimal.Decimal, len(f.Routes))}
	for route, vehicles := range f.Routes {
		t.Routes[route] = make(map[string]decimal.Decimal, len(vehicles))
		for vehicle, price := range vehicles {
			t.Routes[route][vehicle] = decimal.Decimal(price)
		}
	}
	return t, nil
}
