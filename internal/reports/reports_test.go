package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/tables"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fixture has one order (id 5) whose customer and delivery agent are unknown.
func fixture() *tables.Tables {
	return &tables.Tables{
		Orders: []tables.Order{
			{OrderID: 1, CustomerID: 10, RestaurantID: 100, OrderDate: day(2023, 1, 15), OrderDetails: "Pizza,Pizza,Coke", TotalPrice: 30.555, PaymentMode: "Credit Card", DeliveryPersonID: 1000, Rating: 4.5},
			{OrderID: 2, CustomerID: 11, RestaurantID: 100, OrderDate: day(2023, 2, 20), OrderDetails: "Burger", TotalPrice: 40.000, PaymentMode: "Cash", DeliveryPersonID: 1001, Rating: 3.0},
			{OrderID: 3, CustomerID: 10, RestaurantID: 100, OrderDate: day(2023, 5, 3), OrderDetails: "Pasta,Coke", TotalPrice: 10.445, PaymentMode: "UPI", DeliveryPersonID: 1000, Rating: 5.0},
			{OrderID: 4, CustomerID: 12, RestaurantID: 101, OrderDate: day(2023, 7, 9), OrderDetails: "Sushi,Miso Soup", TotalPrice: 25.5, PaymentMode: "Credit Card", DeliveryPersonID: 1001, Rating: 4.0},
			{OrderID: 5, CustomerID: 99, RestaurantID: 101, OrderDate: day(2023, 11, 30), OrderDetails: "Sushi", TotalPrice: 18.25, PaymentMode: "Cash", DeliveryPersonID: 1002, Rating: 2.0},
		},
		Customers: []tables.Customer{
			{CustomerID: 10, Name: "Alice Smith"},
			{CustomerID: 11, Name: "Bob Jones"},
			{CustomerID: 12, Name: "Carol White"},
		},
		Restaurants: []tables.Restaurant{
			{RestaurantID: 100, Name: "Luigi's", Address: "1 Main St"},
			{RestaurantID: 101, Name: "Sakura", Address: "2 Market St"},
		},
		Agents: []tables.DeliveryAgent{
			{DeliveryPersonID: 1000, Name: "Dave", Rating: 4.7},
			{DeliveryPersonID: 1001, Name: "Erin", Rating: 4.1},
		},
	}
}

func TestTopCustomers(t *testing.T) {
	got := TopCustomers(fixture())

	assert.Equal(t, []string{"customer_id", "customer_name", "total_amount_spent"}, got.ColumnNames())
	assert.Equal(t, [][]any{
		{int64(10), "Alice Smith", 41.0},
		{int64(11), "Bob Jones", 40.0},
		{int64(12), "Carol White", 25.5},
	}, got.Rows)
}

func TestTopCustomersDropsOrphanOrders(t *testing.T) {
	tbl := fixture()
	known := make(map[int]bool)
	for _, c := range tbl.Customers {
		known[c.CustomerID] = true
	}
	want := decimal.Zero
	for _, o := range tbl.Orders {
		if known[o.CustomerID] {
			want = want.Add(decimal.NewFromFloat(o.TotalPrice))
		}
	}

	got := decimal.Zero
	for _, r := range TopCustomers(tbl).Rows {
		got = got.Add(decimal.NewFromFloat(r[2].(float64)))
	}
	assert.True(t, want.Equal(got), "want %s got %s", want, got)
	assert.Equal(t, "106.5", got.String())
}

func TestTopCustomersTieBreaksByName(t *testing.T) {
	tbl := &tables.Tables{
		Orders: []tables.Order{
			{OrderID: 1, CustomerID: 2, TotalPrice: 10},
			{OrderID: 2, CustomerID: 1, TotalPrice: 10},
		},
		Customers: []tables.Customer{
			{CustomerID: 1, Name: "Zed"},
			{CustomerID: 2, Name: "Amy"},
		},
	}
	got := TopCustomers(tbl)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "Amy", got.Rows[0][1])
	assert.Equal(t, "Zed", got.Rows[1][1])
}

func TestTopRestaurants(t *testing.T) {
	got := TopRestaurants(fixture())
	assert.Equal(t, [][]any{
		{int64(100), "Luigi's", "1 Main St", 81.0},
		{int64(101), "Sakura", "2 Market St", 43.75},
	}, got.Rows)
}

func TestQuarterlySales(t *testing.T) {
	got := QuarterlySales(fixture())
	assert.Equal(t, []string{"restaurant_id", "restaurant_name", "quarter", "quarterly_sales"}, got.ColumnNames())
	assert.Equal(t, [][]any{
		{int64(100), "Luigi's", int64(1), 70.555},
		{int64(100), "Luigi's", int64(2), 10.445},
		{int64(101), "Sakura", int64(3), 25.5},
		{int64(101), "Sakura", int64(4), 18.25},
	}, got.Rows)
}

func TestMonthlySales(t *testing.T) {
	got := MonthlySales(fixture())
	assert.Equal(t, [][]any{
		{int64(100), "Luigi's", int64(1), 30.555},
		{int64(100), "Luigi's", int64(2), 40.0},
		{int64(100), "Luigi's", int64(5), 10.445},
		{int64(101), "Sakura", int64(7), 25.5},
		{int64(101), "Sakura", int64(11), 18.25},
	}, got.Rows)
}

func TestTopMostOrderedDish(t *testing.T) {
	got := TopMostOrderedDish(fixture())
	assert.Equal(t, [][]any{
		{"Coke", int64(2)},
		{"Pizza", int64(2)},
		{"Sushi", int64(2)},
		{"Burger", int64(1)},
		{"Miso Soup", int64(1)},
		{"Pasta", int64(1)},
	}, got.Rows)
}

func TestDishExplosionKeepsWhitespace(t *testing.T) {
	tbl := &tables.Tables{Orders: []tables.Order{
		{OrderID: 1, OrderDetails: "Pizza,Pizza,Coke"},
		{OrderID: 2, OrderDetails: "Coke, Coke"},
	}}
	counts := make(map[string]int64)
	for _, r := range TopMostOrderedDish(tbl).Rows {
		counts[r[0].(string)] = r[1].(int64)
	}
	assert.Equal(t, map[string]int64{"Pizza": 2, "Coke": 2, " Coke": 1}, counts)
}

func TestEmptyOrderDetailsHaveNoDishes(t *testing.T) {
	tbl := &tables.Tables{
		Orders: []tables.Order{
			{OrderID: 1, RestaurantID: 100, OrderDetails: "", TotalPrice: 5},
			{OrderID: 2, RestaurantID: 100, OrderDetails: "Coke", TotalPrice: 2},
		},
		Restaurants: []tables.Restaurant{{RestaurantID: 100, Name: "Luigi's"}},
	}
	assert.Equal(t, [][]any{{"Coke", int64(1)}}, TopMostOrderedDish(tbl).Rows)
	assert.Equal(t, [][]any{{int64(100), "Luigi's", "Coke", int64(1), 2.0}}, TopDishPerRestaurant(tbl).Rows)
	assert.Empty(t, dishes(""))
	assert.Equal(t, []string{"Pizza", "", "Coke"}, dishes("Pizza,,Coke"))
}

func TestTopDishPerRestaurant(t *testing.T) {
	got := TopDishPerRestaurant(fixture())
	// Luigi's has Pizza and Coke tied at two; Coke wins on name.
	assert.Equal(t, [][]any{
		{int64(100), "Luigi's", "Coke", int64(2), 41.0},
		{int64(101), "Sakura", "Sushi", int64(2), 43.75},
	}, got.Rows)
}

func TestTopDishPerRestaurantOneRowPerRestaurant(t *testing.T) {
	tbl := &tables.Tables{
		Orders: []tables.Order{
			{OrderID: 1, RestaurantID: 1, OrderDetails: "b,a,c", TotalPrice: 3},
			{OrderID: 2, RestaurantID: 1, OrderDetails: "c,b,a", TotalPrice: 3},
			{OrderID: 3, RestaurantID: 2, OrderDetails: "x", TotalPrice: 1},
			{OrderID: 4, RestaurantID: 3, OrderDetails: "y", TotalPrice: 1},
		},
		Restaurants: []tables.Restaurant{{RestaurantID: 1, Name: "One"}, {RestaurantID: 2, Name: "Two"}},
	}
	got := TopDishPerRestaurant(tbl)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, []any{int64(1), "One", "a", int64(2), 6.0}, got.Rows[0])
	assert.Equal(t, []any{int64(2), "Two", "x", int64(1), 1.0}, got.Rows[1])
}

func TestPaymentMethodsUsed(t *testing.T) {
	got := PaymentMethodsUsed(fixture())
	assert.Equal(t, [][]any{
		{"Cash", int64(2)},
		{"Credit Card", int64(2)},
		{"UPI", int64(1)},
	}, got.Rows)
}

func TestTopDeliveryPartner(t *testing.T) {
	got := TopDeliveryPartner(fixture())
	assert.Equal(t, [][]any{
		{int64(1000), "Dave", int64(2), 4.75},
		{int64(1001), "Erin", int64(2), 3.5},
	}, got.Rows)
}

func TestTopDeliveryPartnerRoundsRating(t *testing.T) {
	tbl := &tables.Tables{
		Orders: []tables.Order{
			{OrderID: 1, DeliveryPersonID: 1, Rating: 4},
			{OrderID: 2, DeliveryPersonID: 1, Rating: 4},
			{OrderID: 3, DeliveryPersonID: 1, Rating: 5},
		},
		Agents: []tables.DeliveryAgent{{DeliveryPersonID: 1, Name: "Dave"}},
	}
	got := TopDeliveryPartner(tbl)
	assert.Equal(t, 4.33, got.Rows[0][3])
}

func TestRestaurantExample(t *testing.T) {
	tbl := &tables.Tables{
		Orders: []tables.Order{
			{OrderID: 1, RestaurantID: 1, TotalPrice: 30.555},
			{OrderID: 2, RestaurantID: 1, TotalPrice: 40.000},
			{OrderID: 3, RestaurantID: 1, TotalPrice: 10.445},
		},
		Restaurants: []tables.Restaurant{{RestaurantID: 1, Name: "R1"}},
	}
	got := TopRestaurants(tbl)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, 81.0, got.Rows[0][3])
}

func TestMoneyRoundsHalfToEven(t *testing.T) {
	cases := map[string]string{
		"1.0005":  "1",
		"1.0015":  "1.002",
		"2.12345": "2.123",
		"-0.0025": "-0.002",
	}
	for in, want := range cases {
		assert.Equal(t, want, money(decimal.RequireFromString(in)).String(), in)
	}
}

func TestAllIsDeterministic(t *testing.T) {
	defs := All()
	require.Len(t, defs, 8)
	for _, d := range defs {
		a, b := d.Build(fixture()), d.Build(fixture())
		assert.Equal(t, d.Name, a.Name)
		assert.Equal(t, a, b, d.Name)
	}
}
