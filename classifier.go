package geonarrative

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"
)

const (
	defaultMarkerWindow       = 500
	defaultMinQuoteTextLength = 100
	minLocationTokenLength    = 5
	minIndicatorMatches       = 2
)

// ClassifierOptions tunes the text heuristics of a Classifier.
type ClassifierOptions struct {
	// MarkerWindow is how many leading runes of the text are searched for
	// syndication markers.
	MarkerWindow int `yaml:"marker_window" json:"marker_window"`

	// MinQuoteTextLength is the shortest text that can qualify for the
	// local-quotes test.
	MinQuoteTextLength int `yaml:"min_quote_text_length" json:"min_quote_text_length"`
}

// Classifier labels articles as syndicated, local or ambiguous.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	lexicon    Lexicon
	opts       ClassifierOptions
	sources    []string
	markers    []string
	indicators []string
	stopwords  map[string]struct{}
	titles     *regexp.Regexp
}

// Signals are the raw outcomes of the three classifier tests.
type Signals struct {
	Syndicated        bool     `json:"syndicated"`
	SyndicationReason string   `json:"syndication_reason,omitempty"`
	Local             bool     `json:"local"`
	LocalReason       string   `json:"local_reason,omitempty"`
	LocalQuotes       bool     `json:"local_quotes"`
	MatchedIndicators []string `json:"matched_indicators,omitempty"`
}

// NewClassifier compiles lex into a Classifier.
func NewClassifier(lex Lexicon, opts ClassifierOptions) (*Classifier, error) {
	if opts.MarkerWindow <= 0 {
		opts.MarkerWindow = defaultMarkerWindow
	}
	if opts.MinQuoteTextLength <= 0 {
		opts.MinQuoteTextLength = defaultMinQuoteTextLength
	}

	c := &Classifier{
		lexicon:   lex,
		opts:      opts,
		stopwords: make(map[string]struct{}, len(lex.LocationStopwords)),
	}
	for _, s := range lex.SyndicatedSources {
		if d := normalizeDomain(s); d != "" {
			c.sources = append(c.sources, d)
		}
	}
	for _, m := range lex.SyndicationMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			c.markers = append(c.markers, m)
		}
	}
	for _, ind := range lex.LocalIndicators {
		if ind = strings.ToLower(strings.TrimSpace(ind)); ind != "" {
			c.indicators = append(c.indicators, ind)
		}
	}
	for _, w := range lex.LocationStopwords {
		c.stopwords[strings.ToLower(w)] = struct{}{}
	}

	if len(lex.OfficialTitles) > 0 {
		alternatives := make([]string, 0, len(lex.OfficialTitles))
		for _, title := range lex.OfficialTitles {
			words := strings.Fields(strings.ToLower(title))
			for i, w := range words {
				words[i] = regexp.QuoteMeta(w)
			}
			if len(words) > 0 {
				alternatives = append(alternatives, strings.Join(words, `\s+`))
			}
		}
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(alternatives, "|") + `)s?\b`)
		if err != nil {
			return nil, fmt.Errorf("failed to compile official titles: %w", err)
		}
		c.titles = re
	}

	return c, nil
}

// Lexicon returns the word lists the classifier was built from.
func (c *Classifier) Lexicon() Lexicon { return c.lexicon }

// Classify returns the label for a. The syndication test takes precedence
// over the local and local-quotes tests.
func (c *Classifier) Classify(a Article) Classification {
	return c.Signals(a).Classification()
}

// Classification folds the three signals into a label.
func (s Signals) Classification() Classification {
	switch {
	case s.Syndicated:
		return Syndicated
	case s.Local && s.LocalQuotes:
		return LocalWithQuotes
	case s.Local || s.LocalQuotes:
		return LocalOrQuotes
	default:
		return Ambiguous
	}
}

// Signals runs all three tests on a.
func (c *Classifier) Signals(a Article) Signals {
	var s Signals
	s.Syndicated, s.SyndicationReason = c.syndicated(a)
	s.Local, s.LocalReason, s.MatchedIndicators = c.local(a)
	s.LocalQuotes = c.HasLocalQuotes(a.Text)
	return s
}

// IsSyndicated reports whether a comes from a wire service or carries a wire marker.
func (c *Classifier) IsSyndicated(a Article) bool {
	ok, _ := c.syndicated(a)
	return ok
}

// IsLocal reports whether a's outlet looks local to the reported location.
func (c *Classifier) IsLocal(a Article) bool {
	ok, _, _ := c.local(a)
	return ok
}

// HasLocalQuotes reports whether text mentions a local official.
func (c *Classifier) HasLocalQuotes(text string) bool {
	if c.titles == nil || utf8.RuneCountInString(text) < c.opts.MinQuoteTextLength {
		return false
	}
	return c.titles.MatchString(text)
}

func (c *Classifier) syndicated(a Article) (bool, string) {
	if host := normalizeDomain(a.SourceDomain); host != "" {
		for _, src := range c.sources {
			if host == src || strings.HasSuffix(host, "."+src) {
				return true, "source " + src
			}
		}
	}

	head := strings.ToLower(leadingRunes(a.Text, c.opts.MarkerWindow))
	for _, m := range c.markers {
		if strings.Contains(head, m) {
			return true, "marker " + m
		}
	}
	return false, ""
}

// local applies the asymmetric local test: one location token in the domain
// is enough, lexical indicators need at least two distinct matches.
func (c *Classifier) local(a Article) (bool, string, []string) {
	label := compactLabel(domainLabel(normalizeDomain(a.SourceDomain)))
	outlet := strings.ToLower(a.OutletName)

	if label != "" {
		for _, tok := range c.locationTokens(a.LocationName) {
			if strings.Contains(label, tok) {
				return true, "location token " + tok, nil
			}
		}
	}

	var matched []string
	for _, ind := range c.indicators {
		if (label != "" && strings.Contains(label, ind)) || strings.Contains(outlet, ind) {
			matched = append(matched, ind)
		}
	}
	if len(matched) >= minIndicatorMatches {
		return true, "indicators " + strings.Join(matched, ","), matched
	}
	return false, "", matched
}

func (c *Classifier) locationTokens(name string) []string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	var tokens []string
	for _, w := range words {
		if utf8.RuneCountInString(w) < minLocationTokenLength {
			continue
		}
		if _, stop := c.stopwords[w]; stop {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// ClassificationCounts tallies labels, including zero counts for every label.
func ClassificationCounts(labels []Classification) map[Classification]int {
	counts := make(map[Classification]int, len(Classifications))
	for _, c := range Classifications {
		counts[c] = 0
	}
	for _, l := range labels {
		counts[l]++
	}
	return counts
}

// normalizeDomain lowercases a domain or URL and strips scheme, port, path and "www.".
func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if host, _, err := net.SplitHostPort(d); err == nil {
		d = host
	}
	d = strings.TrimSuffix(d, ".")
	return strings.TrimPrefix(d, "www.")
}

// domainLabel drops the public suffix: "news.springfield-gazette.co.uk" -> "news.springfield-gazette".
func domainLabel(host string) string {
	if host == "" {
		return ""
	}
	suffix, _ := publicsuffix.PublicSuffix(host)
	if suffix == host {
		return ""
	}
	return strings.TrimSuffix(strings.TrimSuffix(host, suffix), ".")
}

func compactLabel(label string) string {
	return strings.NewReplacer(".", "", "-", "", "_", "").Replace(label)
}

func leadingRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
