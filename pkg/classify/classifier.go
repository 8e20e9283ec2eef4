package classify

import (
	"sort"
	"strings"

	"aidigest/pkg/domain"
)

// scoring weights: a source-name match dominates keyword hits
const (
	sourceMatchScore = 100
	keywordScore     = 10
)

// Classifier assigns each article to exactly one category. Scoring is a pure
// function of the static definitions and the article fields, so repeated
// calls always agree.
type Classifier struct {
	categories      []domain.CategoryDef
	byName          map[string]domain.CategoryDef
	defaultCategory string
}

// Group is one category bucket in display order
type Group struct {
	Category string
	Priority int
	Articles []domain.Article
}

// New creates a classifier from category definitions. defaultCategory is
// used when no definition scores above zero.
func New(categories []domain.CategoryDef, defaultCategory string) *Classifier {
	byName := make(map[string]domain.CategoryDef, len(categories))
	for _, c := range categories {
		byName[c.Name] = c
	}
	return &Classifier{categories: categories, byName: byName, defaultCategory: defaultCategory}
}

// Categorize returns the best category name for the article. A category
// already present on the article is trusted verbatim when it matches a known
// definition; fetchers may pre-classify.
func (c *Classifier) Categorize(a domain.Article) string {
	if a.Category != "" {
		if _, ok := c.byName[a.Category]; ok {
			return a.Category
		}
	}

	best := ""
	bestScore := -1
	bestPriority := 0
	for _, cat := range c.categories {
		score := c.score(a, cat)
		// higher score wins; on a tie the lower priority rank wins
		if score > bestScore || (score == bestScore && cat.Priority < bestPriority) {
			best = cat.Name
			bestScore = score
			bestPriority = cat.Priority
		}
	}

	if bestScore == 0 {
		return c.defaultCategory
	}
	return best
}

// CategorizeAll assigns categories in place and returns the same slice
func (c *Classifier) CategorizeAll(articles []domain.Article) []domain.Article {
	for i := range articles {
		articles[i].Category = c.Categorize(articles[i])
	}
	return articles
}

// GroupByCategory categorizes, groups, and orders articles for display:
// inside a group newest first (stable for equal timestamps), groups by
// ascending priority rank, empty categories omitted
func (c *Classifier) GroupByCategory(articles []domain.Article) []Group {
	articles = c.CategorizeAll(articles)

	buckets := map[string][]domain.Article{}
	for _, a := range articles {
		buckets[a.Category] = append(buckets[a.Category], a)
	}

	defs := make([]domain.CategoryDef, len(c.categories))
	copy(defs, c.categories)
	sort.SliceStable(defs, func(i, j int) bool { return defs[i].Priority < defs[j].Priority })

	groups := make([]Group, 0, len(buckets))
	for _, def := range defs {
		arts, ok := buckets[def.Name]
		if !ok {
			continue
		}
		sort.SliceStable(arts, func(i, j int) bool { return arts[i].Published.After(arts[j].Published) })
		delete(buckets, def.Name)
		groups = append(groups, Group{Category: def.Name, Priority: def.Priority, Articles: arts})
	}

	// default category without its own definition goes last
	if arts, ok := buckets[c.defaultCategory]; ok {
		sort.SliceStable(arts, func(i, j int) bool { return arts[i].Published.After(arts[j].Published) })
		groups = append(groups, Group{Category: c.defaultCategory, Priority: len(defs) + 1, Articles: arts})
	}

	return groups
}

// score rates how well an article matches one category definition: 100 for
// the first source-name pattern that is a substring of the article source
// (no double counting), plus 10 per keyword found in title+summary
func (c *Classifier) score(a domain.Article, cat domain.CategoryDef) int {
	score := 0

	source := strings.ToLower(a.Source)
	for _, pattern := range cat.Sources {
		if pattern != "" && strings.Contains(source, strings.ToLower(pattern)) {
			score += sourceMatchScore
			break
		}
	}

	text := strings.ToLower(a.Title + " " + a.Summary)
	for _, kw := range cat.Keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			score += keywordScore
		}
	}

	return score
}
