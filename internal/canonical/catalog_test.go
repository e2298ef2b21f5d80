package canonical

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDefault_Order(t *testing.T) {
	c := Default()
	var names []string
	for _, op := range c.Operations() {
		names = append(names, op.Name)
	}
	want := []string{RevenueStats, EmployeeAnalysis, GrowthAnalysis, EfficiencyAnalysis, OfficeProfile}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("order = %v, want %v", names, want)
	}
	if c.Len() != 5 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestNewCatalog_Rejects(t *testing.T) {
	if _, err := NewCatalog(Operation{Name: "a"}, Operation{Name: "a"}); err == nil {
		t.Error("duplicate names accepted")
	}
	if _, err := NewCatalog(Operation{}); err == nil {
		t.Error("empty name accepted")
	}
	if _, err := NewCatalog(Operation{Name: "bad", Template: "{{.city"}); err == nil {
		t.Error("broken template accepted")
	}
}

func TestLookup(t *testing.T) {
	c := Default()
	op, ok := c.Lookup(GrowthAnalysis)
	if !ok {
		t.Fatal("growth_analysis missing")
	}
	if len(op.Parameters) != 1 || op.Parameters[0].Name != "year_threshold" || !op.Parameters[0].Required {
		t.Errorf("parameters = %+v", op.Parameters)
	}
	if _, ok := c.Lookup("nope"); ok {
		t.Error("unknown operation found")
	}
}

func TestOperations_ReturnsCopy(t *testing.T) {
	c := Default()
	ops := c.Operations()
	ops[0].Name = "mutated"
	if _, ok := c.Lookup(RevenueStats); !ok {
		t.Error("catalog mutated through Operations")
	}
	if c.Operations()[0].Name != RevenueStats {
		t.Error("catalog order mutated through Operations")
	}
}

func TestList(t *testing.T) {
	list := Default().List()
	if len(list) != 5 {
		t.Fatalf("len = %d", len(list))
	}
	if list[0].Parameters == nil {
		t.Error("parameterless operation should list an empty slice")
	}
	if list[4].Name != OfficeProfile || list[4].Parameters[0].Name != "city" {
		t.Errorf("profile = %+v", list[4])
	}
}

func TestRender(t *testing.T) {
	op, _ := Default().Lookup(OfficeProfile)
	got, err := op.Render(map[string]any{"city": "Chicago"}, "city,employees\nChicago,120")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "profile of the Chicago office") {
		t.Errorf("city not substituted:\n%s", got)
	}
	if !strings.Contains(got, "Chicago,120") {
		t.Errorf("data not substituted:\n%s", got)
	}

	if _, err := op.Render(nil, "x"); err == nil {
		t.Error("Render without city should fail")
	}
}

func TestValidate(t *testing.T) {
	c := Default()
	growth, _ := c.Lookup(GrowthAnalysis)
	profile, _ := c.Lookup(OfficeProfile)
	revenue, _ := c.Lookup(RevenueStats)

	tests := []struct {
		name    string
		op      Operation
		params  map[string]any
		want    map[string]any
		missing []string
		invalid []string
	}{
		{"int passes", growth, map[string]any{"year_threshold": 2014}, map[string]any{"year_threshold": 2014}, nil, nil},
		{"float coerced", growth, map[string]any{"year_threshold": 2014.0}, map[string]any{"year_threshold": 2014}, nil, nil},
		{"string coerced", growth, map[string]any{"year_threshold": " 2016 "}, map[string]any{"year_threshold": 2016}, nil, nil},
		{"fractional rejected", growth, map[string]any{"year_threshold": 2014.5}, nil, nil, []string{"year_threshold must be an integer"}},
		{"word rejected", growth, map[string]any{"year_threshold": "recent"}, nil, nil, []string{"year_threshold must be an integer"}},
		{"missing year", growth, map[string]any{}, nil, []string{"year_threshold"}, nil},
		{"missing city", profile, nil, nil, []string{"city"}, nil},
		{"blank city", profile, map[string]any{"city": "  "}, nil, nil, []string{"city must be a non-empty string"}},
		{"no params needed", revenue, nil, map[string]any{}, nil, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.op.Validate(tc.params)
			if tc.missing == nil && tc.invalid == nil {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				if !reflect.DeepEqual(got, tc.want) {
					t.Errorf("got %v, want %v", got, tc.want)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if !reflect.DeepEqual(verr.Missing, tc.missing) || !reflect.DeepEqual(verr.Invalid, tc.invalid) {
				t.Errorf("missing=%v invalid=%v", verr.Missing, verr.Invalid)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Missing: []string{"city"}}
	if err.Error() != "Missing required parameters: city" {
		t.Errorf("Error = %q", err.Error())
	}
}
