package analyst

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nugget/tao-agent/internal/canonical"
	"github.com/nugget/tao-agent/internal/offices"
)

// Calculate answers an operation directly from rows without a model.
func Calculate(operation string, params map[string]any, rows []offices.Office) string {
	if len(rows) == 0 {
		if operation == canonical.GrowthAnalysis {
			return fmt.Sprintf("**Growth Analysis (Calculated)**\n\nNo offices opened after %v.", params["year_threshold"])
		}
		return "No office data available."
	}

	switch operation {
	case canonical.RevenueStats:
		return revenueStats(rows)
	case canonical.EmployeeAnalysis:
		return employeeAnalysis(rows)
	case canonical.GrowthAnalysis:
		return growthAnalysis(params, rows)
	case canonical.EfficiencyAnalysis:
		return efficiencyAnalysis(rows)
	case canonical.OfficeProfile:
		return officeProfile(rows[0])
	}
	return fmt.Sprintf("No calculation is available for %s.", operation)
}

func revenueStats(rows []offices.Office) string {
	maxO, minO := rows[0], rows[0]
	var total float64
	for _, o := range rows {
		if o.RevenueMillion > maxO.RevenueMillion {
			maxO = o
		}
		if o.RevenueMillion < minO.RevenueMillion {
			minO = o
		}
		total += o.RevenueMillion
	}
	return fmt.Sprintf("**Revenue Statistics (Calculated)**\n\n"+
		"1. Highest revenue: %s ($%.1fM)\n"+
		"2. Lowest revenue: %s ($%.1fM)\n"+
		"3. Average revenue: $%.1fM\n"+
		"4. Total revenue: $%.1fM",
		maxO.City, maxO.RevenueMillion,
		minO.City, minO.RevenueMillion,
		total/float64(len(rows)),
		total)
}

func employeeAnalysis(rows []offices.Office) string {
	maxO := rows[0]
	total := 0
	for _, o := range rows {
		if o.Employees > maxO.Employees {
			maxO = o
		}
		total += o.Employees
	}
	return fmt.Sprintf("**Employee Analysis (Calculated)**\n\n"+
		"1. Office with most employees: %s (%d employees)\n"+
		"2. Total employees: %d\n"+
		"3. Average per office: %.1f\n"+
		"4. Distribution: %d offices analyzed",
		maxO.City, maxO.Employees, total, float64(total)/float64(len(rows)), len(rows))
}

func growthAnalysis(params map[string]any, rows []offices.Office) string {
	sorted := append([]offices.Office(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OpenedYear != sorted[j].OpenedYear {
			return sorted[i].OpenedYear < sorted[j].OpenedYear
		}
		return sorted[i].City < sorted[j].City
	})

	var b strings.Builder
	fmt.Fprintf(&b, "**Growth Analysis (Calculated)**\n\nOffices opened after %v: %d\n", params["year_threshold"], len(sorted))
	for _, o := range sorted {
		fmt.Fprintf(&b, "\n- %s, %s (%d)", o.City, o.State, o.OpenedYear)
	}
	return b.String()
}

func efficiencyAnalysis(rows []offices.Office) string {
	sorted := append([]offices.Office(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RevenuePerEmployee() > sorted[j].RevenuePerEmployee()
	})

	var b strings.Builder
	b.WriteString("**Efficiency Analysis (Calculated)**\n\nRevenue per employee:\n")
	for i, o := range sorted {
		fmt.Fprintf(&b, "\n%d. %s: $%.0fK", i+1, o.City, o.RevenuePerEmployee()*1000)
	}
	fmt.Fprintf(&b, "\n\nMost efficient: %s. Least efficient: %s.", sorted[0].City, sorted[len(sorted)-1].City)
	return b.String()
}

func officeProfile(o offices.Office) string {
	return fmt.Sprintf("**Office Profile: %s (Calculated)**\n\n"+
		"- Location: %s, %s\n"+
		"- Employees: %d\n"+
		"- Revenue: $%.1fM\n"+
		"- Opened: %d\n"+
		"- Revenue per employee: $%.0fK",
		o.City, o.City, o.State, o.Employees, o.RevenueMillion, o.OpenedYear, o.RevenuePerEmployee()*1000)
}
