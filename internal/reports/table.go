// Package reports computes the descriptive sales reports from a loaded
// snapshot. Every report is a pure function of the snapshot: the same input
// always yields the same rows in the same order.
package reports

import (
	"github.com/shopspring/decimal"

	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/tables"
)

type ColumnType int

const (
	Integer ColumnType = iota
	Double
	Text
)

type Column struct {
	Name string
	Type ColumnType
}

// Table is a computed report. Row values are int64, float64 or string
// according to the column type.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// ColumnNames returns the column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Definition names a report and the function that builds it
type Definition struct {
	Name  string
	Build func(*tables.Tables) *Table
}

const (
	TopCustomersName         = "top_customers"
	TopRestaurantsName       = "top_restaurants"
	QuarterlySalesName       = "quarterly_sales"
	MonthlySalesName         = "monthly_sales"
	TopMostOrderedDishName   = "top_most_ordered_dish"
	TopDishPerRestaurantName = "top_dish_ordered_from_each_restaurant"
	PaymentMethodsUsedName   = "payment_methods_used"
	TopDeliveryPartnerName   = "top_delivery_partner"
)

const (
	moneyPlaces  = 3
	ratingPlaces = 2
)

// All returns the eight reports in a fixed order
func All() []Definition {
	return []Definition{
		{Name: TopCustomersName, Build: TopCustomers},
		{Name: TopRestaurantsName, Build: TopRestaurants},
		{Name: QuarterlySalesName, Build: QuarterlySales},
		{Name: MonthlySalesName, Build: MonthlySales},
		{Name: TopMostOrderedDishName, Build: TopMostOrderedDish},
		{Name: TopDishPerRestaurantName, Build: TopDishPerRestaurant},
		{Name: PaymentMethodsUsedName, Build: PaymentMethodsUsed},
		{Name: TopDeliveryPartnerName, Build: TopDeliveryPartner},
	}
}

// money rounds half to even at 3 places
func money(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(moneyPlaces)
}

func rating(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(ratingPlaces)
}

// aggregate accumulates count and sum for one group
type aggregate struct {
	count int64
	sum   decimal.Decimal
}

// groups keeps aggregates keyed by K and remembers first-seen order
type groups[K comparable] struct {
	m    map[K]*aggregate
	keys []K
}

func newGroups[K comparable]() *groups[K] {
	return &groups[K]{m: make(map[K]*aggregate)}
}

func (g *groups[K]) add(k K, v float64) {
	a, ok := g.m[k]
	if !ok {
		a = &aggregate{}
		g.m[k] = a
		g.keys = append(g.keys, k)
	}
	a.count++
	a.sum = a.sum.Add(decimal.NewFromFloat(v))
}

func (g *groups[K]) get(k K) *aggregate {
	return g.m[k]
}

func index[T any](rows []T, key func(T) int) map[int]T {
	m := make(map[int]T, len(rows))
	for _, r := range rows {
		m[key(r)] = r
	}
	return m
}
