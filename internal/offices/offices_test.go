package offices

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSample(t *testing.T) {
	ds := Sample()
	if ds.Len() != 10 {
		t.Fatalf("Len = %d, want 10", ds.Len())
	}
	o, ok := ds.Find("chicago")
	if !ok {
		t.Fatal("Chicago missing")
	}
	if o.State != "IL" || o.Employees != 120 || o.RevenueMillion != 67.2 || o.OpenedYear != 2012 {
		t.Errorf("Chicago = %+v", o)
	}
	if _, ok := ds.Find("Paris"); ok {
		t.Error("Paris should not be an office")
	}
}

func TestOffices_ReturnsCopy(t *testing.T) {
	ds := Sample()
	rows := ds.Offices()
	rows[0].City = "Gotham"
	if _, ok := ds.Find("New York"); !ok {
		t.Error("dataset mutated through Offices")
	}
}

func TestRevenuePerEmployee(t *testing.T) {
	if got := (Office{RevenueMillion: 10, Employees: 4}).RevenuePerEmployee(); got != 2.5 {
		t.Errorf("got %v", got)
	}
	if got := (Office{RevenueMillion: 10}).RevenuePerEmployee(); got != 0 {
		t.Errorf("zero employees got %v", got)
	}
}

func TestReadCSV(t *testing.T) {
	in := "City,State,Employees,Revenue_Million,Opened_Year,Notes\n" +
		"Portland, OR, 30, 12.5, 2019, new\n" +
		"\"Salt Lake City\",UT,25,9.75,2020,\n"
	ds, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	want := []Office{
		{"Portland", "OR", 30, 12.5, 2019},
		{"Salt Lake City", "UT", 25, 9.75, 2020},
	}
	if got := ds.Offices(); !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %+v, want %+v", got, want)
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "empty file"},
		{"missing column", "city,state,employees\nA,B,1\n", `missing column "revenue_million"`},
		{"bad number", "city,state,employees,revenue_million,opened_year\nA,B,many,1,2000\n", "line 2: employees"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.in))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "offices.csv")
	body := "city,state,employees,revenue_million,opened_year\nReno,NV,10,4.2,2021\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	ds, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if ds.Len() != 1 {
		t.Errorf("Len = %d", ds.Len())
	}
	if _, err := LoadCSV(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func cities(r Result) []string {
	var out []string
	for _, row := range r.Data {
		out = append(out, row[ColCity].(string))
	}
	return out
}

func TestQuery(t *testing.T) {
	ds := Sample()
	tests := []struct {
		name    string
		filters map[string]any
		columns []string
		cities  []string
		count   int
		cols    []string
	}{
		{
			name:  "no filters returns everything",
			count: 10,
			cols:  Columns,
		},
		{
			name:    "greater than",
			filters: map[string]any{"opened_year": map[string]any{"gt": 2014}},
			cities:  []string{"Austin", "Denver", "Miami"},
			count:   3,
			cols:    Columns,
		},
		{
			name:    "range",
			filters: map[string]any{"employees": map[string]any{"gt": 60.0, "lt": 80.0}},
			cities:  []string{"Atlanta", "Boston", "Seattle"},
			count:   3,
			cols:    Columns,
		},
		{
			name:    "bare equality",
			filters: map[string]any{"state": "ca"},
			columns: []string{"city", "revenue_million", "bogus"},
			cities:  []string{"San Francisco", "Los Angeles"},
			count:   2,
			cols:    []string{"city", "revenue_million"},
		},
		{
			name:    "no match",
			filters: map[string]any{"revenue_million": map[string]any{"gt": 1000}},
			count:   0,
			cols:    Columns,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := ds.Query(tc.filters, tc.columns)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if res.Count != tc.count || len(res.Data) != tc.count {
				t.Errorf("Count = %d (rows %d), want %d", res.Count, len(res.Data), tc.count)
			}
			if tc.cities != nil && !reflect.DeepEqual(cities(res), tc.cities) {
				t.Errorf("cities = %v, want %v", cities(res), tc.cities)
			}
			if !reflect.DeepEqual(res.Columns, tc.cols) {
				t.Errorf("Columns = %v, want %v", res.Columns, tc.cols)
			}
			for _, row := range res.Data {
				if len(row) != len(tc.cols) {
					t.Errorf("row has %d columns, want %d", len(row), len(tc.cols))
				}
			}
			if res.FiltersApplied == nil {
				t.Error("FiltersApplied is nil")
			}
		})
	}
}

func TestQuery_Errors(t *testing.T) {
	ds := Sample()
	tests := []map[string]any{
		{"city": map[string]any{"gt": "A"}},
		{"employees": "lots"},
		{"employees": map[string]any{"between": 1}},
		{"revenue": map[string]any{"gt": 100000}},
	}
	for _, f := range tests {
		_, err := ds.Query(f, nil)
		var fe *FilterError
		if !errors.As(err, &fe) {
			t.Errorf("Query(%v) err = %v, want *FilterError", f, err)
		}
	}
}

func TestQuery_DoesNotMutate(t *testing.T) {
	ds := Sample()
	res, _ := ds.Query(nil, []string{"city"})
	res.Data[0]["city"] = "Gotham"
	if _, ok := ds.Find("New York"); !ok {
		t.Error("dataset mutated through query result")
	}
}

func TestResult_Map(t *testing.T) {
	res, _ := Sample().Query(map[string]any{"city": "Miami"}, nil)
	m := res.Map()
	if m["count"] != 1.0 {
		t.Errorf("count = %v", m["count"])
	}
	if len(m["data"].([]any)) != 1 {
		t.Errorf("data = %v", m["data"])
	}
}
