// Package guideline provides clinical-guideline search over an embedded
// corpus. It is the citation source for composed responses; results are an
// enrichment and an empty result set is never an error.
package guideline

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed guidelines.yaml
var corpusYAML []byte

// Snippet is one ranked search hit.
type Snippet struct {
	SourceID string  `json:"source_id" yaml:"id"`
	Title    string  `json:"title"     yaml:"title"`
	Snippet  string  `json:"snippet"   yaml:"snippet"`
	Score    float64 `json:"score"     yaml:"-"`

	Keywords []string `json:"-" yaml:"keywords"`
}

type corpus struct {
	Guidelines []Snippet `yaml:"guidelines"`
}

// Index is an in-memory guideline search index.
type Index struct {
	entries []Snippet
}

// NewIndex parses the embedded corpus.
func NewIndex() (*Index, error) {
	var c corpus
	if err := yaml.Unmarshal(corpusYAML, &c); err != nil {
		return nil, fmt.Errorf("parse guideline corpus: %w", err)
	}
	if len(c.Guidelines) == 0 {
		return nil, fmt.Errorf("guideline corpus is empty")
	}
	return &Index{entries: c.Guidelines}, nil
}

// Search returns up to topK snippets ranked by keyword overlap with the
// query. Ties keep corpus order so results are deterministic.
func (i *Index) Search(query string, topK int) []Snippet {
	if topK <= 0 {
		topK = 3
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	scored := make([]Snippet, 0, len(i.entries))
	for _, entry := range i.entries {
		score := overlap(terms, entry)
		if score <= 0 {
			continue
		}
		hit := entry
		hit.Score = score
		scored = append(scored, hit)
	}

	sort.SliceStable(scored, func(a, b int) bool { return scored[a].Score > scored[b].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

func overlap(terms []string, entry Snippet) float64 {
	haystack := strings.ToLower(entry.Title + " " + entry.Snippet)
	var score float64
	for _, term := range terms {
		for _, kw := range entry.Keywords {
			if strings.Contains(term, kw) || strings.Contains(kw, term) {
				score += 2
				break
			}
		}
		if strings.Contains(haystack, term) {
			score++
		}
	}
	return score
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?")
		if len(f) < 3 {
			continue
		}
		out = append(out, f)
	}
	return out
}
