// Package tables loads the four CSV extracts into typed, in-memory tables.
package tables

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jszwec/csvutil"

	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/config"
)

// ErrDuplicateKey is returned when a dimension table repeats its id
var ErrDuplicateKey = errors.New("duplicate key")

// Order is one row of the sales extract
type Order struct {
	OrderID          int       `csv:"Order Id"`
	CustomerID       int       `csv:"Customer Id"`
	RestaurantID     int       `csv:"Restaurant Id"`
	OrderDate        time.Time `csv:"Date Of Order"`
	OrderDetails     string    `csv:"Order Details"`
	TotalPrice       float64   `csv:"Total Price"`
	DeliveryAddress  string    `csv:"Delivery Address"`
	PaymentMode      string    `csv:"Mode Of Payment"`
	DeliveryPersonID int       `csv:"Delivery Person Id"`
	Rating           float64   `csv:"Rating"`
}

type Customer struct {
	CustomerID int    `csv:"Customer Id"`
	Name       string `csv:"Customer Name"`
	Phone      string `csv:"Customer Phone Number"`
	Address    string `csv:"Address"`
}

type Restaurant struct {
	RestaurantID int    `csv:"Restaurant Id"`
	Name         string `csv:"Restaurant Name"`
	Address      string `csv:"Restaurant Address"`
}

type DeliveryAgent struct {
	DeliveryPersonID int     `csv:"Delivery Person Id"`
	Name             string  `csv:"Delivery Agent Name"`
	Phone            string  `csv:"Delivery Agent Phone Num"`
	Rating           float64 `csv:"Delivery Agent Rating"`
}

// Tables is the snapshot every report is computed from
type Tables struct {
	Orders      []Order
	Customers   []Customer
	Restaurants []Restaurant
	Agents      []DeliveryAgent
}

// Rows returns the number of loaded rows per table
func (t *Tables) Rows() map[string]int {
	return map[string]int{
		"sales":       len(t.Orders),
		"customers":   len(t.Customers),
		"restaurants": len(t.Restaurants),
		"delivery":    len(t.Agents),
	}
}

// TotalRows is the sum of Rows
func (t *Tables) TotalRows() int64 {
	return int64(len(t.Orders) + len(t.Customers) + len(t.Restaurants) + len(t.Agents))
}

// LoadDir reads the four extracts from dir
func LoadDir(dir string, files config.SourceFiles) (*Tables, error) {
	var (
		t   Tables
		err error
	)
	if t.Orders, err = readFile[Order](filepath.Join(dir, files.Sales)); err != nil {
		return nil, err
	}
	if t.Customers, err = readFile[Customer](filepath.Join(dir, files.Customers)); err != nil {
		return nil, err
	}
	if t.Restaurants, err = readFile[Restaurant](filepath.Join(dir, files.Restaurants)); err != nil {
		return nil, err
	}
	if t.Agents, err = readFile[DeliveryAgent](filepath.Join(dir, files.Delivery)); err != nil {
		return nil, err
	}
	if err := t.checkKeys(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Tables) checkKeys() error {
	if err := unique("customers", t.Customers, func(c Customer) int { return c.CustomerID }); err != nil {
		return err
	}
	if err := unique("restaurants", t.Restaurants, func(r Restaurant) int { return r.RestaurantID }); err != nil {
		return err
	}
	if err := unique("delivery", t.Agents, func(a DeliveryAgent) int { return a.DeliveryPersonID }); err != nil {
		return err
	}
	return unique("sales", t.Orders, func(o Order) int { return o.OrderID })
}

func unique[T any](table string, rows []T, key func(T) int) error {
	seen := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		k := key(r)
		if _, ok := seen[k]; ok {
			return fmt.Errorf("%s: %w %d", table, ErrDuplicateKey, k)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func readFile[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := Read[T](f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

// Read decodes a CSV stream with a header row into T. Every column T declares
// must be present, every row must have the header's field count and every value
// must convert to its field type. Errors carry csvutil's line and column.
func Read[T any](r io.Reader) ([]T, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing header row")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	dec.DisallowMissingColumns = true
	dec.WithUnmarshalers(csvutil.NewUnmarshalers(
		csvutil.UnmarshalFunc(parseDate),
		csvutil.UnmarshalFunc(parseFinite),
	))

	var rows []T
	for {
		var row T
		err := dec.Decode(&row)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseFinite is strconv.ParseFloat without NaN and Inf. An empty field is zero.
func parseFinite(data []byte, f *float64) error {
	if len(data) == 0 {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%q is not a finite number", data)
	}
	*f = v
	return nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"20060102",
	"01-02-2006",
}

func parseDate(data []byte, t *time.Time) error {
	s := string(data)
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}
