// Package offices holds the immutable office dataset queried by the
// analytics workflow and the query_offices tool.
package offices

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Column names.
const (
	ColCity       = "city"
	ColState      = "state"
	ColEmployees  = "employees"
	ColRevenue    = "revenue_million"
	ColOpenedYear = "opened_year"
)

// Columns lists every column in dataset order.
var Columns = []string{ColCity, ColState, ColEmployees, ColRevenue, ColOpenedYear}

// Office is one row of the dataset.
type Office struct {
	City           string
	State          string
	Employees      int
	RevenueMillion float64
	OpenedYear     int
}

// RevenuePerEmployee returns revenue in millions divided by headcount,
// or zero for an office without employees.
func (o Office) RevenuePerEmployee() float64 {
	if o.Employees == 0 {
		return 0
	}
	return o.RevenueMillion / float64(o.Employees)
}

// Record returns the office as a column-keyed record.
func (o Office) Record() map[string]any {
	return map[string]any{
		ColCity:       o.City,
		ColState:      o.State,
		ColEmployees:  o.Employees,
		ColRevenue:    o.RevenueMillion,
		ColOpenedYear: o.OpenedYear,
	}
}

// Dataset is a read-only table of offices. It is never modified after
// construction and may be shared between goroutines.
type Dataset struct {
	rows []Office
}

// New creates a dataset from rows. The slice is copied.
func New(rows []Office) *Dataset {
	cp := make([]Office, len(rows))
	copy(cp, rows)
	return &Dataset{rows: cp}
}

// Len returns the number of offices.
func (d *Dataset) Len() int {
	return len(d.rows)
}

// Offices returns a copy of every row.
func (d *Dataset) Offices() []Office {
	cp := make([]Office, len(d.rows))
	copy(cp, d.rows)
	return cp
}

// Find returns the office in city, compared case-insensitively.
func (d *Dataset) Find(city string) (Office, bool) {
	for _, o := range d.rows {
		if strings.EqualFold(o.City, strings.TrimSpace(city)) {
			return o, true
		}
	}
	return Office{}, false
}

// Sample returns the built-in dataset used when no CSV is configured.
func Sample() *Dataset {
	return New([]Office{
		{"New York", "NY", 150, 85.5, 2010},
		{"Chicago", "IL", 120, 67.2, 2012},
		{"San Francisco", "CA", 95, 78.9, 2014},
		{"Austin", "TX", 80, 52.3, 2015},
		{"Atlanta", "GA", 75, 48.7, 2013},
		{"Boston", "MA", 65, 45.1, 2011},
		{"Denver", "CO", 55, 38.9, 2016},
		{"Seattle", "WA", 70, 51.8, 2014},
		{"Miami", "FL", 45, 32.1, 2017},
		{"Los Angeles", "CA", 85, 59.4, 2013},
	})
}

// LoadCSV reads a dataset from a CSV file with a header row naming at
// least the columns in Columns. Extra columns are ignored.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open office data: %w", err)
	}
	defer f.Close()

	ds, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV parses a dataset from r.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, err
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var rows []Office
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		employees, err := strconv.Atoi(strings.TrimSpace(rec[idx[ColEmployees]]))
		if err != nil {
			return nil, fmt.Errorf("line %d: employees: %w", line, err)
		}
		revenue, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[ColRevenue]]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: revenue_million: %w", line, err)
		}
		opened, err := strconv.Atoi(strings.TrimSpace(rec[idx[ColOpenedYear]]))
		if err != nil {
			return nil, fmt.Errorf("line %d: opened_year: %w", line, err)
		}

		rows = append(rows, Office{
			City:           strings.TrimSpace(rec[idx[ColCity]]),
			State:          strings.TrimSpace(rec[idx[ColState]]),
			Employees:      employees,
			RevenueMillion: revenue,
			OpenedYear:     opened,
		})
	}
	return &Dataset{rows: rows}, nil
}
