package geonarrative

import (
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	linkageEnv           = "GEONARRATIVE_LINKAGE"
	thresholdEnv         = "GEONARRATIVE_DISTANCE_THRESHOLD"
	minClusterSizeEnv    = "GEONARRATIVE_MIN_CLUSTER_SIZE"
	excludeSyndicatedEnv = "GEONARRATIVE_EXCLUDE_SYNDICATED"
	windowEnv            = "GEONARRATIVE_WINDOW"
	lexiconPathEnv       = "GEONARRATIVE_LEXICON"
	embeddingModelEnv    = "GEONARRATIVE_EMBEDDING_MODEL"
)

// Settings is the tuning file of the command line tool.
type Settings struct {
	Engine      Options           `yaml:"engine"`
	Classifier  ClassifierOptions `yaml:"classifier"`
	LexiconPath string            `yaml:"lexicon_path"`
	Embedding   EmbeddingSettings `yaml:"embedding"`
	Paths       Paths             `yaml:"paths"`

	// Window is an ISO-8601 duration such as P7D limiting clustering to
	// recently published articles. Empty means no limit.
	Window string `yaml:"window"`

	// CompareFixedLambda is the λ of the non-adaptive baseline run.
	CompareFixedLambda float64 `yaml:"compare_fixed_lambda"`
}

// EmbeddingSettings configures the embedding stage.
type EmbeddingSettings struct {
	Model      string `yaml:"model"`
	BatchSize  int    `yaml:"batch_size"`
	Dimensions int    `yaml:"dimensions"`
}

// Paths are the directories and files the pipeline stages read and write.
type Paths struct {
	Articles string `yaml:"articles"`
	Clusters string `yaml:"clusters"`
	Site     string `yaml:"site"`
	Report   string `yaml:"report"`
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() Settings {
	return Settings{
		Engine: DefaultOptions(),
		Classifier: ClassifierOptions{
			MarkerWindow:       defaultMarkerWindow,
			MinQuoteTextLength: defaultMinQuoteTextLength,
		},
		Embedding: EmbeddingSettings{
			Model:     "text-embedding-3-large",
			BatchSize: 64,
		},
		CompareFixedLambda: DefaultWeightTable().Default,
		Paths: Paths{
			Articles: "articles",
			Clusters: "clusters",
			Site:     "site",
			Report:   "report.md",
		},
	}
}

// LoadSettings reads the YAML file at path (if any) over the defaults and
// applies environment overrides. Unreadable files fall back to defaults.
func LoadSettings(path string) Settings {
	s := DefaultSettings()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			if !os.IsNotExist(err) {
				log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
			}
		} else {
			fileSettings := DefaultSettings()
			if err := yaml.Unmarshal(raw, &fileSettings); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				s = fileSettings
			}
		}
	}

	s.applyEnvOverrides()
	return s
}

func (s *Settings) applyEnvOverrides() {
	if v := os.Getenv(linkageEnv); v != "" {
		s.Engine.Linkage = Linkage(strings.ToLower(v))
	}

	if v := os.Getenv(thresholdEnv); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err != nil {
			log.Printf("config: ignoring %s=%q: %v", thresholdEnv, v, err)
		} else {
			s.Engine.DistanceThreshold = f
		}
	}

	if v := os.Getenv(minClusterSizeEnv); v != "" {
		if n, err := strconv.Atoi(v); err != nil {
			log.Printf("config: ignoring %s=%q: %v", minClusterSizeEnv, v, err)
		} else {
			s.Engine.MinClusterSize = n
		}
	}

	if v := os.Getenv(excludeSyndicatedEnv); v != "" {
		if b, err := strconv.ParseBool(v); err != nil {
			log.Printf("config: ignoring %s=%q: %v", excludeSyndicatedEnv, v, err)
		} else {
			s.Engine.ExcludeSyndicated = b
		}
	}

	if v := os.Getenv(windowEnv); v != "" {
		s.Window = v
	}

	if v := os.Getenv(lexiconPathEnv); v != "" {
		s.LexiconPath = v
	}

	if v := os.Getenv(embeddingModelEnv); v != "" {
		s.Embedding.Model = v
	}
}

// Lexicon returns the configured lexicon, or the built-in one when no path is set.
func (s Settings) Lexicon() (Lexicon, error) {
	if s.LexiconPath == "" {
		return DefaultLexicon(), nil
	}
	return LoadLexicon(s.LexiconPath)
}

// NewEngine builds an engine from the settings, logging through std log.
func (s Settings) NewEngine() (*Engine, error) {
	lex, err := s.Lexicon()
	if err != nil {
		return nil, err
	}
	classifier, err := NewClassifier(lex, s.Classifier)
	if err != nil {
		return nil, err
	}
	opts := s.Engine
	opts.Logf = log.Printf
	return NewEngine(classifier, opts)
}
