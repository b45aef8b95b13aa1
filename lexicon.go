package geonarrative

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the word lists the classifier matches against.
// It is plain data so deployments can ship their own version as YAML.
type Lexicon struct {
	Version            string   `yaml:"version" json:"version"`
	SyndicatedSources  []string `yaml:"syndicated_sources" json:"syndicated_sources"`
	SyndicationMarkers []string `yaml:"syndication_markers" json:"syndication_markers"`
	LocalIndicators    []string `yaml:"local_indicators" json:"local_indicators"`
	OfficialTitles     []string `yaml:"official_titles" json:"official_titles"`
	LocationStopwords  []string `yaml:"location_stopwords" json:"location_stopwords"`
}

// DefaultLexicon returns the built-in word lists.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Version: "2025.1",
		SyndicatedSources: []string{
			"ap.org",
			"apnews.com",
			"reuters.com",
			"bloomberg.com",
			"afp.com",
			"upi.com",
			"prnewswire.com",
			"businesswire.com",
			"marketwatch.com",
			"cnbc.com",
			"cnn.com",
			"foxnews.com",
			"nbcnews.com",
			"abcnews.go.com",
			"cbsnews.com",
		},
		SyndicationMarkers: []string{
			"Associated Press",
			"AP reports",
			"(AP)",
			"Reuters reports",
			"(Reuters)",
			"Bloomberg News",
			"Agence France-Presse",
			"This story was originally published",
			"Originally appeared on",
			"Distributed by",
			"Wire service report",
			"Staff and wire reports",
			"Wire reports",
		},
		LocalIndicators: []string{
			"local", "city", "town", "county",
			"daily", "tribune", "gazette", "herald",
			"times", "post", "chronicle", "journal",
			"news", "observer", "sentinel", "dispatch",
		},
		OfficialTitles: []string{
			"mayor",
			"councilmember",
			"council member",
			"councilman",
			"councilwoman",
			"alderman",
			"supervisor",
			"commissioner",
			"county official",
			"local official",
			"city manager",
			"town manager",
			"selectman",
			"city council",
			"town council",
			"board of supervisors",
			"sheriff",
		},
		LocationStopwords: []string{"united", "states", "america", "american", "americans"},
	}
}

// LoadLexicon reads a YAML lexicon. Lists missing from the file keep their defaults.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("failed to read lexicon: %w", err)
	}
	var fileLex Lexicon
	if err := yaml.Unmarshal(data, &fileLex); err != nil {
		return Lexicon{}, fmt.Errorf("failed to parse lexicon %s: %w", path, err)
	}
	return mergeLexicon(DefaultLexicon(), fileLex), nil
}

func mergeLexicon(base, override Lexicon) Lexicon {
	if override.Version != "" {
		base.Version = override.Version
	}
	if len(override.SyndicatedSources) > 0 {
		base.SyndicatedSources = override.SyndicatedSources
	}
	if len(override.SyndicationMarkers) > 0 {
		base.SyndicationMarkers = override.SyndicationMarkers
	}
	if len(override.LocalIndicators) > 0 {
		base.LocalIndicators = override.LocalIndicators
	}
	if len(override.OfficialTitles) > 0 {
		base.OfficialTitles = override.OfficialTitles
	}
	if len(override.LocationStopwords) > 0 {
		base.LocationStopwords = override.LocationStopwords
	}
	return base
}
