package testutil

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
)

// FleetCUE is a small schema whose links lead into a derived hierarchy.
//
//go:embed fleet.cue
var FleetCUE string

// Fleet returns the fleet fixture schema.
func Fleet() *schema.Schema {
	s, err := schema.LoadString(FleetCUE, "fleet.cue")
	if err != nil {
		panic(fmt.Sprintf("fleet fixture: %v", err))
	}
	return s
}

// FleetRows returns the fleet fixture rows, in load order.
func FleetRows() []Rows {
	r := ir.RecordOf
	p := ir.P
	s := func(v string) ir.Value { return ir.String(v) }
	i := func(v int64) ir.Value { return ir.Int(v) }

	return []Rows{
		{Table: "Depots", Records: []*ir.Record{
			r(p("DepotID", i(1)), p("City", s("Hamburg"))),
			r(p("DepotID", i(2)), p("City", s("Rotterdam"))),
		}},
		{Table: "Ships", Records: []*ir.Record{
			r(p("TransportID", i(1)), p("DepotID", i(1)), p("ShipName", s("Bremen"))),
			r(p("TransportID", i(3)), p("DepotID", i(2)), p("ShipName", s("Nieuw Amsterdam"))),
		}},
		{Table: "Trucks", Records: []*ir.Record{
			r(p("TransportID", i(2)), p("DepotID", i(1)), p("TruckNumber", s("HH-1234"))),
			r(p("TransportID", i(4)), p("DepotID", i(1)), p("TruckNumber", s("HH-5678"))),
		}},
	}
}

// SeedFleet loads every fleet fixture row.
func SeedFleet(ctx context.Context, l Loader) error {
	for _, rows := range FleetRows() {
		if err := l.Load(ctx, rows.Table, rows.Records...); err != nil {
			return fmt.Errorf("seed %s: %w", rows.Table, err)
		}
	}
	return nil
}
