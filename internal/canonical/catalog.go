// Package canonical defines the fixed catalog of office-analytics
// operations the agent knows how to answer deterministically.
//
// The catalog is built once at startup and never mutated, so it is safe
// to share between concurrent episodes without locking.
package canonical

import (
	"fmt"
)

// Operation names.
const (
	RevenueStats       = "revenue_stats"
	EmployeeAnalysis   = "employee_analysis"
	GrowthAnalysis     = "growth_analysis"
	EfficiencyAnalysis = "efficiency_analysis"
	OfficeProfile      = "office_profile"
)

// Parameter types.
const (
	TypeInt    = "int"
	TypeString = "str"
)

// Parameter describes one argument an operation accepts.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Operation is a registered analysis capability.
type Operation struct {
	Name             string
	Description      string
	Parameters       []Parameter
	DataRequirements []string

	// Examples are sample phrasings scored by word overlap.
	Examples []string

	// Keywords mark the operation's domain. A keyword matches a query
	// word it prefixes ("employee" matches "employees"); multi-word
	// keywords match as a phrase.
	Keywords []string

	// DomainBonus overrides the classifier's default keyword bonus when
	// non-zero.
	DomainBonus float64

	// Ranked operations answer superlative questions ("highest revenue",
	// "most employees") and earn the superlative bonus.
	Ranked bool

	// ContextPhrases are descriptive-request cues ("tell me about").
	ContextPhrases []string

	// PenalizeComparisons marks the profile-style operation, which loses
	// score when the query is a which/what comparison across offices.
	PenalizeComparisons bool

	// Template is the prompt rendered by Render.
	Template string
}

// Catalog is an ordered, read-only set of operations.
type Catalog struct {
	ops   []Operation
	index map[string]int
}

// NewCatalog builds a catalog. Order is significant: the classifier
// breaks ties in favor of the first-registered operation.
func NewCatalog(ops ...Operation) (*Catalog, error) {
	c := &Catalog{
		ops:   make([]Operation, 0, len(ops)),
		index: make(map[string]int, len(ops)),
	}
	for _, op := range ops {
		if op.Name == "" {
			return nil, fmt.Errorf("operation with empty name")
		}
		if _, dup := c.index[op.Name]; dup {
			return nil, fmt.Errorf("duplicate operation %q", op.Name)
		}
		if _, err := parseTemplate(op); err != nil {
			return nil, fmt.Errorf("operation %s: %w", op.Name, err)
		}
		c.index[op.Name] = len(c.ops)
		c.ops = append(c.ops, op)
	}
	return c, nil
}

// Lookup returns the named operation.
func (c *Catalog) Lookup(name string) (Operation, bool) {
	i, ok := c.index[name]
	if !ok {
		return Operation{}, false
	}
	return c.ops[i], true
}

// Operations returns the operations in registration order.
func (c *Catalog) Operations() []Operation {
	out := make([]Operation, len(c.ops))
	copy(out, c.ops)
	return out
}

// Len returns the number of operations.
func (c *Catalog) Len() int {
	return len(c.ops)
}

// Summary is the public description of an operation.
type Summary struct {
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	Parameters       []Parameter `json:"parameters"`
	DataRequirements []string    `json:"data_requirements"`
}

// List describes every operation in registration order.
func (c *Catalog) List() []Summary {
	out := make([]Summary, 0, len(c.ops))
	for _, op := range c.ops {
		params := op.Parameters
		if params == nil {
			params = []Parameter{}
		}
		out = append(out, Summary{
			Name:             op.Name,
			Description:      op.Description,
			Parameters:       params,
			DataRequirements: op.DataRequirements,
		})
	}
	return out
}

// Default returns the built-in office-analytics catalog.
func Default() *Catalog {
	c, err := NewCatalog(defaultOperations()...)
	if err != nil {
		panic("canonical: invalid built-in catalog: " + err.Error())
	}
	return c
}

func defaultOperations() []Operation {
	return []Operation{
		{
			Name:             RevenueStats,
			Description:      "Calculate revenue statistics across all offices",
			DataRequirements: []string{"revenue_million", "city"},
			Examples: []string{
				"What's the average revenue across our offices?",
				"Which office has the highest revenue?",
				"Show me revenue statistics",
				"What is the total revenue?",
			},
			Keywords: []string{"revenue", "sales", "income", "earning"},
			Ranked:   true,
			Template: `You are a business analyst. Using the office data below, answer with:
1. The office with the highest revenue
2. The office with the lowest revenue
3. The average revenue per office
4. The total revenue across all offices

Office data:
{{.data}}

Answer concisely, in millions of dollars.`,
		},
		{
			Name:             EmployeeAnalysis,
			Description:      "Analyze employee distribution across offices",
			DataRequirements: []string{"employees", "city"},
			Examples: []string{
				"Which office has the most employees?",
				"How many employees do we have?",
				"Show employee distribution across offices",
				"What's the average headcount per office?",
			},
			Keywords: []string{"employee", "headcount", "staff", "workforce"},
			Ranked:   true,
			Template: `You are an HR analyst. Using the office data below, answer with:
1. The office with the most employees
2. The total number of employees
3. The average number of employees per office
4. A one-sentence summary of the distribution

Office data:
{{.data}}`,
		},
		{
			Name:        GrowthAnalysis,
			Description: "Analyze office growth patterns by opening year",
			Parameters: []Parameter{
				{Name: "year_threshold", Type: TypeInt, Description: "Year to filter by", Required: true},
			},
			DataRequirements: []string{"opened_year", "city", "state"},
			Examples: []string{
				"What offices opened after 2014?",
				"Show offices opened since 2015",
				"How has our office footprint grown?",
			},
			Keywords:    []string{"open", "growth", "grow", "grew", "expan"},
			DomainBonus: 0.4,
			Template: `You are a strategy analyst. Using the office data below, list the offices
opened after {{.year_threshold}}, with city, state and opening year, then
describe the expansion pattern in one or two sentences.

Office data:
{{.data}}`,
		},
		{
			Name:             EfficiencyAnalysis,
			Description:      "Calculate revenue efficiency (revenue per employee)",
			DataRequirements: []string{"revenue_million", "employees", "city"},
			Examples: []string{
				"Which office is most efficient?",
				"What is the revenue per employee?",
				"Rank offices by efficiency",
			},
			// The keywords are narrow; a match should outweigh the
			// broader revenue and employee operations.
			Keywords:    []string{"efficien", "productiv", "revenue per employee"},
			DomainBonus: 1.5,
			Ranked:      true,
			Template: `You are a financial analyst. Using the office data below, compute revenue
per employee for every office, rank the offices from most to least
efficient, and name the most and least efficient office.

Office data:
{{.data}}`,
		},
		{
			Name:        OfficeProfile,
			Description: "Detailed profile of a specific office",
			Parameters: []Parameter{
				{Name: "city", Type: TypeString, Description: "City name to profile", Required: true},
			},
			DataRequirements: []string{"city", "state", "employees", "revenue_million", "opened_year"},
			Examples: []string{
				"Tell me about the Chicago office",
				"Give me details on the Boston office",
				"Profile of the Seattle office",
			},
			ContextPhrases:      []string{"tell me about", "profile", "details", "information about"},
			PenalizeComparisons: true,
			Template: `You are a business analyst. Write a short profile of the {{.city}} office:
location, headcount, revenue, opening year, and revenue per employee.
If the office is not in the data, say so.

Office data:
{{.data}}`,
		},
	}
}
