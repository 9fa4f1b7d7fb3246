package reports

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/tables"
)

// TopMostOrderedDish counts every dish occurrence across all orders. An order
// listing the same dish twice counts it twice.
func TopMostOrderedDish(t *tables.Tables) *Table {
	g := newGroups[string]()
	for _, o := range t.Orders {
		for _, d := range dishes(o.OrderDetails) {
			g.add(d, 0)
		}
	}

	keys := slices.Clone(g.keys)
	slices.SortFunc(keys, func(a, b string) int {
		return cmp.Or(cmp.Compare(g.get(b).count, g.get(a).count), cmp.Compare(a, b))
	})

	out := &Table{
		Name: TopMostOrderedDishName,
		Columns: []Column{
			{Name: "dish_name", Type: Text},
			{Name: "num_of_times_ordered", Type: Integer},
		},
	}
	for _, k := range keys {
		out.Rows = append(out.Rows, []any{k, g.get(k).count})
	}
	return out
}

// TopDishPerRestaurant picks, for every known restaurant, the dish ordered
// most often. Ties go to the lexicographically smallest dish name. The total
// sales column sums the full order price once per dish occurrence.
func TopDishPerRestaurant(t *tables.Tables) *Table {
	restaurants := index(t.Restaurants, func(r tables.Restaurant) int { return r.RestaurantID })
	type key struct {
		id   int
		dish string
	}
	g := newGroups[key]()
	for _, o := range t.Orders {
		if _, ok := restaurants[o.RestaurantID]; !ok {
			continue
		}
		for _, d := range dishes(o.OrderDetails) {
			g.add(key{id: o.RestaurantID, dish: d}, o.TotalPrice)
		}
	}

	best := make(map[int]key)
	for _, k := range g.keys {
		cur, ok := best[k.id]
		if !ok {
			best[k.id] = k
			continue
		}
		if c := cmp.Compare(g.get(k).count, g.get(cur).count); c > 0 || (c == 0 && k.dish < cur.dish) {
			best[k.id] = k
		}
	}

	type row struct {
		key
		count int64
		total decimal.Decimal
	}
	rows := make([]row, 0, len(best))
	for _, k := range best {
		a := g.get(k)
		rows = append(rows, row{key: k, count: a.count, total: money(a.sum)})
	}
	slices.SortFunc(rows, func(a, b row) int {
		return cmp.Or(cmp.Compare(b.count, a.count), cmp.Compare(a.id, b.id))
	})

	out := &Table{
		Name: TopDishPerRestaurantName,
		Columns: []Column{
			{Name: "restaurant_id", Type: Integer},
			{Name: "restaurant_name", Type: Text},
			{Name: "dish_name", Type: Text},
			{Name: "num_of_times_ordered", Type: Integer},
			{Name: "total_sales", Type: Double},
		},
	}
	for _, r := range rows {
		out.Rows = append(out.Rows, []any{
			int64(r.id),
			restaurants[r.id].Name,
			r.dish,
			r.count,
			r.total.InexactFloat64(),
		})
	}
	return out
}
