package geonarrative

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// DedupOptions controls near-duplicate syndication detection.
type DedupOptions struct {
	Enabled    bool    `yaml:"enabled" json:"enabled"`
	Similarity float64 `yaml:"similarity" json:"similarity"`
	MinCopies  int     `yaml:"min_copies" json:"min_copies"`
}

// DefaultDedupOptions treats an article with five or more copies above 0.95
// cosine similarity as syndicated. Detection is off by default.
func DefaultDedupOptions() DedupOptions {
	return DedupOptions{Enabled: false, Similarity: 0.95, MinCopies: 5}
}

// DetectDuplicates reports, per article, whether at least MinCopies other
// articles have cosine similarity above Similarity. semantic is the cosine
// distance matrix of the same articles.
func DetectDuplicates(semantic *mat.SymDense, opts DedupOptions) []bool {
	n := semantic.SymmetricDim()
	copies := make([]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if 1-semantic.At(i, j) > opts.Similarity {
				copies[i]++
				copies[j]++
			}
		}
	}
	dup := make([]bool, n)
	for i, c := range copies {
		dup[i] = c >= opts.MinCopies
	}
	return dup
}

// SeparateSyndicated splits articles into national wire content and
// regional content by their classification.
func SeparateSyndicated(articles []Article, classes []Classification) (national, regional []Article) {
	for i, a := range articles {
		if classes[i] == Syndicated {
			national = append(national, a)
		} else {
			regional = append(regional, a)
		}
	}
	return national, regional
}

// StoryCount is how often one story text appears.
type StoryCount struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// SourceCount is how many articles one source contributed.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// NationalBaseline summarizes syndicated content kept out of regional analysis.
type NationalBaseline struct {
	TotalInstances   int           `json:"total_instances"`
	UniqueStories    int           `json:"unique_stories"`
	DuplicationRate  float64       `json:"duplication_rate"`
	GeographicSpread int           `json:"geographic_spread"`
	TopStories       []StoryCount  `json:"top_stories"`
	TopSources       []SourceCount `json:"top_sources"`
}

// BuildNationalBaseline describes national articles. It returns nil when
// there are none.
func BuildNationalBaseline(national []Article, top int) *NationalBaseline {
	if len(national) == 0 {
		return nil
	}
	if top <= 0 {
		top = DefaultRepresentativeCount
	}

	stories := make(map[string]int)
	firstText := make(map[string]string)
	sources := make(map[string]int)
	locations := make(map[string]struct{})
	for _, a := range national {
		key := storyKey(a.Text)
		if _, ok := firstText[key]; !ok {
			firstText[key] = a.Text
		}
		stories[key]++
		if src := normalizeDomain(a.SourceDomain); src != "" {
			sources[src]++
		}
		if loc := strings.ToLower(strings.TrimSpace(a.LocationName)); loc != "" {
			locations[loc] = struct{}{}
		}
	}

	b := &NationalBaseline{
		TotalInstances:   len(national),
		UniqueStories:    len(stories),
		DuplicationRate:  1 - float64(len(stories))/float64(len(national)),
		GeographicSpread: len(locations),
	}
	for key, count := range stories {
		b.TopStories = append(b.TopStories, StoryCount{Text: firstText[key], Count: count})
	}
	sort.Slice(b.TopStories, func(i, j int) bool {
		if b.TopStories[i].Count != b.TopStories[j].Count {
			return b.TopStories[i].Count > b.TopStories[j].Count
		}
		return b.TopStories[i].Text < b.TopStories[j].Text
	})
	for src, count := range sources {
		b.TopSources = append(b.TopSources, SourceCount{Source: src, Count: count})
	}
	sort.Slice(b.TopSources, func(i, j int) bool {
		if b.TopSources[i].Count != b.TopSources[j].Count {
			return b.TopSources[i].Count > b.TopSources[j].Count
		}
		return b.TopSources[i].Source < b.TopSources[j].Source
	})
	if len(b.TopStories) > top {
		b.TopStories = b.TopStories[:top]
	}
	if len(b.TopSources) > top {
		b.TopSources = b.TopSources[:top]
	}
	return b
}

func storyKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
