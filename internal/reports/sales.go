package reports

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/tables"
)

// TopCustomers totals spend per known customer. Orders whose customer id is
// not in the customer table are dropped.
func TopCustomers(t *tables.Tables) *Table {
	customers := index(t.Customers, func(c tables.Customer) int { return c.CustomerID })
	g := newGroups[int]()
	for _, o := range t.Orders {
		if _, ok := customers[o.CustomerID]; !ok {
			continue
		}
		g.add(o.CustomerID, o.TotalPrice)
	}

	type row struct {
		id    int
		name  string
		total decimal.Decimal
	}
	rows := make([]row, 0, len(g.keys))
	for _, id := range g.keys {
		rows = append(rows, row{id: id, name: customers[id].Name, total: money(g.get(id).sum)})
	}
	slices.SortFunc(rows, func(a, b row) int {
		return cmp.Or(
			b.total.Cmp(a.total),
			cmp.Compare(a.name, b.name),
			cmp.Compare(a.id, b.id),
		)
	})

	out := &Table{
		Name: TopCustomersName,
		Columns: []Column{
			{Name: "customer_id", Type: Integer},
			{Name: "customer_name", Type: Text},
			{Name: "total_amount_spent", Type: Double},
		},
	}
	for _, r := range rows {
		out.Rows = append(out.Rows, []any{int64(r.id), r.name, r.total.InexactFloat64()})
	}
	return out
}

// TopRestaurants totals sales per known restaurant
func TopRestaurants(t *tables.Tables) *Table {
	restaurants := index(t.Restaurants, func(r tables.Restaurant) int { return r.RestaurantID })
	g := newGroups[int]()
	address := make(map[int]string)
	for _, o := range t.Orders {
		r, ok := restaurants[o.RestaurantID]
		if !ok {
			continue
		}
		g.add(o.RestaurantID, o.TotalPrice)
		if r.Address > address[o.RestaurantID] {
			address[o.RestaurantID] = r.Address
		}
	}

	type row struct {
		id      int
		name    string
		address string
		total   decimal.Decimal
	}
	rows := make([]row, 0, len(g.keys))
	for _, id := range g.keys {
		rows = append(rows, row{
			id:      id,
			name:    restaurants[id].Name,
			address: address[id],
			total:   money(g.get(id).sum),
		})
	}
	slices.SortFunc(rows, func(a, b row) int {
		return cmp.Or(
			b.total.Cmp(a.total),
			cmp.Compare(a.name, b.name),
			cmp.Compare(a.id, b.id),
		)
	})

	out := &Table{
		Name: TopRestaurantsName,
		Columns: []Column{
			{Name: "restaurant_id", Type: Integer},
			{Name: "restaurant_name", Type: Text},
			{Name: "restaurant_address", Type: Text},
			{Name: "total_sales", Type: Double},
		},
	}
	for _, r := range rows {
		out.Rows = append(out.Rows, []any{int64(r.id), r.name, r.address, r.total.InexactFloat64()})
	}
	return out
}

// QuarterlySales totals sales per restaurant and calendar quarter. Quarters
// of different years fall into the same group.
func QuarterlySales(t *tables.Tables) *Table {
	return periodSales(t, QuarterlySalesName, "quarter", "quarterly_sales", func(o tables.Order) int {
		return (int(o.OrderDate.Month())-1)/3 + 1
	})
}

// MonthlySales totals sales per restaurant and calendar month
func MonthlySales(t *tables.Tables) *Table {
	return periodSales(t, MonthlySalesName, "month", "monthly_sales", func(o tables.Order) int {
		return int(o.OrderDate.Month())
	})
}

func periodSales(t *tables.Tables, name, periodColumn, salesColumn string, period func(tables.Order) int) *Table {
	restaurants := index(t.Restaurants, func(r tables.Restaurant) int { return r.RestaurantID })
	type key struct{ id, period int }
	g := newGroups[key]()
	for _, o := range t.Orders {
		if _, ok := restaurants[o.RestaurantID]; !ok {
			continue
		}
		g.add(key{id: o.RestaurantID, period: period(o)}, o.TotalPrice)
	}

	keys := slices.Clone(g.keys)
	slices.SortFunc(keys, func(a, b key) int {
		return cmp.Or(cmp.Compare(a.id, b.id), cmp.Compare(a.period, b.period))
	})

	out := &Table{
		Name: name,
		Columns: []Column{
			{Name: "restaurant_id", Type: Integer},
			{Name: "restaurant_name", Type: Text},
			{Name: periodColumn, Type: Integer},
			{Name: salesColumn, Type: Double},
		},
	}
	for _, k := range keys {
		out.Rows = append(out.Rows, []any{
			int64(k.id),
			restaurants[k.id].Name,
			int64(k.period),
			money(g.get(k).sum).InexactFloat64(),
		})
	}
	return out
}

// PaymentMethodsUsed counts orders per payment mode, ordered by mode
func PaymentMethodsUsed(t *tables.Tables) *Table {
	g := newGroups[string]()
	for _, o := range t.Orders {
		g.add(o.PaymentMode, 0)
	}
	keys := slices.Clone(g.keys)
	slices.Sort(keys)

	out := &Table{
		Name: PaymentMethodsUsedName,
		Columns: []Column{
			{Name: "mode_of_payment", Type: Text},
			{Name: "num_of_times_used", Type: Integer},
		},
	}
	for _, k := range keys {
		out.Rows = append(out.Rows, []any{k, g.get(k).count})
	}
	return out
}

// TopDeliveryPartner counts deliveries and averages the order rating per
// known delivery agent, best rated first.
func TopDeliveryPartner(t *tables.Tables) *Table {
	agents := index(t.Agents, func(a tables.DeliveryAgent) int { return a.DeliveryPersonID })
	g := newGroups[int]()
	for _, o := range t.Orders {
		if _, ok := agents[o.DeliveryPersonID]; !ok {
			continue
		}
		g.add(o.DeliveryPersonID, o.Rating)
	}

	type row struct {
		id     int
		name   string
		count  int64
		rating decimal.Decimal
	}
	rows := make([]row, 0, len(g.keys))
	for _, id := range g.keys {
		a := g.get(id)
		rows = append(rows, row{
			id:     id,
			name:   agents[id].Name,
			count:  a.count,
			rating: rating(a.sum.Div(decimal.NewFromInt(a.count))),
		})
	}
	slices.SortFunc(rows, func(a, b row) int {
		return cmp.Or(b.rating.Cmp(a.rating), cmp.Compare(a.id, b.id))
	})

	out := &Table{
		Name: TopDeliveryPartnerName,
		Columns: []Column{
			{Name: "delivery_person_id", Type: Integer},
			{Name: "delivery_agent_name", Type: Text},
			{Name: "number_of_deliveries", Type: Integer},
			{Name: "rating", Type: Double},
		},
	}
	for _, r := range rows {
		out.Rows = append(out.Rows, []any{int64(r.id), r.name, r.count, r.rating.InexactFloat64()})
	}
	return out
}

// dishes splits an order's details on commas. Entries are not trimmed, so
// "Coke" and " Coke" are different dishes. An empty field has no dishes.
func dishes(details string) []string {
	if details == "" {
		return nil
	}
	return strings.Split(details, ",")
}
