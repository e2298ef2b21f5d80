// Package classify maps free-text questions onto the canonical
// operation catalog.
//
// The classifier is a deterministic bag of heuristics, not a statistical
// model: each operation is scored by word overlap with its example
// phrasings plus fixed bonuses for domain keywords, superlative phrasing
// and descriptive-request cues. Every score is explainable and the
// constants are configuration ([Weights]).
package classify

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/nugget/tao-agent/internal/canonical"
)

// Weights holds the classifier's tunable constants.
type Weights struct {
	// DomainBonus is added once when the query contains one of the
	// operation's keywords. Operations may override it.
	DomainBonus float64

	// SuperlativeBonus is added to ranked operations when a superlative
	// word appears together with a domain keyword ("highest revenue").
	SuperlativeBonus float64

	// ProfileBonus is added to profile-style operations for
	// descriptive-request phrasing ("tell me about").
	ProfileBonus float64

	// ProfilePenalty is subtracted from profile-style operations when
	// the query is a which/what comparison about revenue or headcount.
	ProfilePenalty float64

	// MaxConfidence clips the reported confidence.
	MaxConfidence float64

	// MaxAlternatives bounds the alternatives list.
	MaxAlternatives int
}

// DefaultWeights returns the hand-tuned defaults.
func DefaultWeights() Weights {
	return Weights{
		DomainBonus:      0.5,
		SuperlativeBonus: 0.8,
		ProfileBonus:     0.3,
		ProfilePenalty:   0.5,
		MaxConfidence:    1.0,
		MaxAlternatives:  3,
	}
}

// merge fills zero fields of w from the defaults.
func (w Weights) merge() Weights {
	d := DefaultWeights()
	if w.DomainBonus == 0 {
		w.DomainBonus = d.DomainBonus
	}
	if w.SuperlativeBonus == 0 {
		w.SuperlativeBonus = d.SuperlativeBonus
	}
	if w.ProfileBonus == 0 {
		w.ProfileBonus = d.ProfileBonus
	}
	if w.ProfilePenalty == 0 {
		w.ProfilePenalty = d.ProfilePenalty
	}
	if w.MaxConfidence <= 0 {
		w.MaxConfidence = d.MaxConfidence
	}
	if w.MaxAlternatives <= 0 {
		w.MaxAlternatives = d.MaxAlternatives
	}
	return w
}

var (
	superlatives = []string{"highest", "most", "lowest", "largest", "top", "best", "biggest", "fewest", "least", "smallest"}

	interrogatives = []string{"which", "what", "what's"}
	comparisonCues = []string{"revenue", "employees", "employee", "most", "highest"}
	noMatchReason  = "No matching canonical query found"
)

// Alternative is a runner-up operation.
type Alternative struct {
	Operation string  `json:"query"`
	Score     float64 `json:"score"`
}

// Result is the classification of one query.
type Result struct {
	// Suggested is the best operation, or "" when nothing matched.
	Suggested    string        `json:"suggested_query"`
	Confidence   float64       `json:"confidence"`
	Alternatives []Alternative `json:"alternatives"`
	Reason       string        `json:"reason"`
}

// Matched reports whether an operation was suggested.
func (r Result) Matched() bool {
	return r.Suggested != ""
}

// Classifier scores queries against a catalog.
type Classifier struct {
	catalog  *canonical.Catalog
	weights  Weights
	examples [][]map[string]bool
}

// New creates a classifier over catalog. Zero weights take defaults.
func New(catalog *canonical.Catalog, w Weights) *Classifier {
	ops := catalog.Operations()
	c := &Classifier{
		catalog:  catalog,
		weights:  w.merge(),
		examples: make([][]map[string]bool, len(ops)),
	}
	for i, op := range ops {
		for _, ex := range op.Examples {
			c.examples[i] = append(c.examples[i], wordSet(Tokenize(ex)))
		}
	}
	return c
}

// Catalog returns the catalog the classifier scores against.
func (c *Classifier) Catalog() *canonical.Catalog {
	return c.catalog
}

// Weights returns the effective weights.
func (c *Classifier) Weights() Weights {
	return c.weights
}

// Classify picks the best operation for query. Ties go to the operation
// registered first. When no operation scores above zero the result has
// no suggestion and zero confidence.
func (c *Classifier) Classify(query string) Result {
	q := newQuery(query)
	ops := c.catalog.Operations()

	scores := make([]float64, len(ops))
	best := -1
	for i, op := range ops {
		scores[i] = c.score(i, op, q)
		if best < 0 || scores[i] > scores[best] {
			best = i
		}
	}

	if best < 0 || scores[best] <= 0 {
		return Result{
			Alternatives: []Alternative{},
			Reason:       noMatchReason,
		}
	}

	confidence := scores[best]
	if confidence > c.weights.MaxConfidence {
		confidence = c.weights.MaxConfidence
	}

	alts := make([]Alternative, 0, len(ops))
	for i, op := range ops {
		if i == best || scores[i] <= 0 {
			continue
		}
		alts = append(alts, Alternative{Operation: op.Name, Score: scores[i]})
	}
	sort.SliceStable(alts, func(a, b int) bool { return alts[a].Score > alts[b].Score })
	if len(alts) > c.weights.MaxAlternatives {
		alts = alts[:c.weights.MaxAlternatives]
	}

	return Result{
		Suggested:    ops[best].Name,
		Confidence:   confidence,
		Alternatives: alts,
		Reason:       fmt.Sprintf("Best keyword match with confidence %.2f", confidence),
	}
}

// Scores returns the raw score of every operation in catalog order.
// It is meant for diagnostics (tao classify -o json).
func (c *Classifier) Scores(query string) map[string]float64 {
	q := newQuery(query)
	out := make(map[string]float64, c.catalog.Len())
	for i, op := range c.catalog.Operations() {
		out[op.Name] = c.score(i, op, q)
	}
	return out
}

func (c *Classifier) score(i int, op canonical.Operation, q query) float64 {
	var score float64

	for _, ex := range c.examples[i] {
		if len(ex) == 0 {
			continue
		}
		overlap := 0
		for w := range ex {
			if q.words[w] {
				overlap++
			}
		}
		score += float64(overlap) / float64(len(ex))
	}

	domain := q.containsAny(op.Keywords)
	if domain {
		bonus := op.DomainBonus
		if bonus == 0 {
			bonus = c.weights.DomainBonus
		}
		score += bonus
	}

	if op.Ranked && domain && q.hasAnyWord(superlatives) {
		score += c.weights.SuperlativeBonus
	}

	if len(op.ContextPhrases) > 0 && q.containsAny(op.ContextPhrases) {
		score += c.weights.ProfileBonus
	}

	if op.PenalizeComparisons && q.hasAnyWord(interrogatives) && q.hasAnyWord(comparisonCues) {
		score -= c.weights.ProfilePenalty
	}

	return score
}

// query is a tokenized question.
type query struct {
	words map[string]bool
	// joined is the tokens separated and surrounded by single spaces,
	// used for prefix and phrase matching.
	joined string
}

func newQuery(s string) query {
	tokens := Tokenize(s)
	return query{
		words:  wordSet(tokens),
		joined: " " + strings.Join(tokens, " ") + " ",
	}
}

// containsAny reports whether any keyword starts a word (or phrase) in
// the query.
func (q query) containsAny(keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(q.joined, " "+kw) {
			return true
		}
	}
	return false
}

func (q query) hasAnyWord(words []string) bool {
	for _, w := range words {
		if q.words[w] {
			return true
		}
	}
	return false
}

// Tokenize lowercases s and splits it into words of letters, digits and
// apostrophes.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func wordSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
