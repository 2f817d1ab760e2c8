// Package search ranks products against a free-text query with typo
// correction, category synonyms and word-overlap similarity.
package search

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	exactTitlePoints    = 100
	titlePrefixPoints   = 80
	titleContainsPoints = 60
	descContainsPoints  = 30
	titleSimilarityW    = 40
	descSimilarityW     = 20

	// MinScore is exclusive: a record needs more than this to match.
	MinScore = 20

	minQueryLength = 2
)

// Record is the searchable view of a product.
type Record struct {
	Title       string
	Description string
}

// Match is a record kept by Filter. Index points into the input slice.
type Match struct {
	Index int
	Score float64
}

type Scorer struct {
	dict Dictionary
}

func NewScorer(dict Dictionary) *Scorer {
	return &Scorer{dict: dict}
}

var (
	defaultOnce   sync.Once
	defaultScorer *Scorer
)

// Default returns a scorer over the built-in dictionary.
func Default() *Scorer {
	defaultOnce.Do(func() {
		d, err := LoadDictionary("")
		if err != nil {
			panic(err)
		}
		defaultScorer = NewScorer(d)
	})
	return defaultScorer
}

// Normalize strips accents, lower-cases and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// Terms returns the corrected query followed by every category term it
// expands to, without duplicates.
func (s *Scorer) Terms(query string) []string {
	q := Normalize(query)
	if canonical, ok := s.dict.Corrections[q]; ok {
		q = canonical
	}
	if q == "" {
		return nil
	}

	seen := map[string]bool{q: true}
	terms := []string{q}
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}

	for _, c := range s.dict.Categories {
		if !c.matches(q) {
			continue
		}
		add(c.Name)
		for _, syn := range c.Synonyms {
			add(syn)
		}
	}
	return terms
}

func (c Category) matches(q string) bool {
	if strings.Contains(q, c.Name) {
		return true
	}
	for _, syn := range c.Synonyms {
		if strings.Contains(q, syn) {
			return true
		}
	}
	return false
}

// Score is the relevance of rec for query.
func (s *Scorer) Score(query string, rec Record) float64 {
	return scoreTerms(s.Terms(query), Normalize(rec.Title), Normalize(rec.Description))
}

func scoreTerms(terms []string, title, desc string) float64 {
	var score float64
	for _, term := range terms {
		switch {
		case title == term:
			score += exactTitlePoints
		case strings.HasPrefix(title, term):
			score += titlePrefixPoints
		case strings.Contains(title, term):
			score += titleContainsPoints
		}
		if strings.Contains(desc, term) {
			score += descContainsPoints
		}
		score += Similarity(term, title)*titleSimilarityW + Similarity(term, desc)*descSimilarityW
	}
	return score
}

// Similarity is the share of words of a found in b, from 0 to 1. A word
// matches when it equals, contains or is contained in a word of b. Equal
// strings score 1 and a string containing the other scores 0.8.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}

	aw, bw := strings.Fields(a), strings.Fields(b)
	matches := 0
	for _, w := range aw {
		for _, x := range bw {
			if w == x || strings.Contains(x, w) || strings.Contains(w, x) {
				matches++
				break
			}
		}
	}
	return float64(matches) / float64(max(len(aw), len(bw)))
}

// Filter keeps the records scoring above MinScore, best first, ties in input
// order. Queries shorter than two characters keep every record in order.
func (s *Scorer) Filter(query string, records []Record) []Match {
	if len([]rune(Normalize(query))) < minQueryLength {
		out := make([]Match, len(records))
		for i := range records {
			out[i] = Match{Index: i}
		}
		return out
	}

	terms := s.Terms(query)
	var out []Match
	for i, rec := range records {
		score := scoreTerms(terms, Normalize(rec.Title), Normalize(rec.Description))
		if score > MinScore {
			out = append(out, Match{Index: i, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
