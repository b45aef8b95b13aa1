package geonarrative

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var ImportArticlesCmd = &cobra.Command{
	Use:   "import-articles",
	Short: "Import article JSON or JSONL files into the database",
	Run: func(cmd *cobra.Command, args []string) {
		settings := LoadSettings(Config.SettingsPath)
		if err := importArticles(settings.Paths.Articles); err != nil {
			log.Printf("Failed to import articles: %v", err)
			return
		}
		log.Println("Article import complete.")
	},
}

func importArticles(path string) error {
	store, err := OpenStore(Config.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}()

	files, err := articleFiles(path)
	if err != nil {
		return err
	}

	total := 0
	for _, file := range files {
		articles, err := ReadArticlesFile(file)
		if err != nil {
			log.Printf("Failed to read %s: %v", file, err)
			continue
		}
		if err := store.UpsertArticles(articles); err != nil {
			return fmt.Errorf("failed to store articles from %s: %w", file, err)
		}
		total += len(articles)
		log.Printf("Imported %d articles from %s", len(articles), file)
	}

	log.Printf("Imported %d articles from %d files", total, len(files))
	return nil
}

// articleFiles returns path itself, or the .json and .jsonl files directly
// inside it when path is a directory.
func articleFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read articles directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".json" || ext == ".jsonl" {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	return files, nil
}

// ReadArticlesFile parses a JSON array of articles or one article per line.
func ReadArticlesFile(path string) ([]Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseArticles(data)
}

// ParseArticles decodes a JSON array of articles, or JSON Lines when the
// input does not start with '['.
func ParseArticles(data []byte) ([]Article, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var articles []Article
		if err := json.Unmarshal(trimmed, &articles); err != nil {
			return nil, fmt.Errorf("failed to parse article array: %w", err)
		}
		return articles, nil
	}

	var articles []Article
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var a Article
		if err := json.Unmarshal([]byte(text), &a); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		articles = append(articles, a)
	}
	return articles, scanner.Err()
}
