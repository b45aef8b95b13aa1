package geonarrative

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArticles(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantIDs []string
		wantErr string
	}{
		{"empty", "  \n", nil, ""},
		{"array", `[{"id":"a","text":"one"},{"id":"b","text":"two"}]`, []string{"a", "b"}, ""},
		{"json lines", "{\"id\":\"a\",\"text\":\"one\"}\n\n{\"id\":\"b\",\"text\":\"two\"}\n", []string{"a", "b"}, ""},
		{"bad array", `[{"id":"a"`, nil, "failed to parse article array"},
		{"bad line", "{\"id\":\"a\"}\n{oops}\n", nil, "line 2:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			articles, err := ParseArticles([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, a := range articles {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestParseArticlesFields(t *testing.T) {
	articles, err := ParseArticles([]byte(`{"id":"a","text":"Mayor said","source_domain":"denverherald.com","location_name":"Denver, Colorado","coordinates":{"lat":39.74,"lon":-104.99},"embedding":[0.5,0.5]}`))
	require.NoError(t, err)
	require.Len(t, articles, 1)

	a := articles[0]
	assert.Equal(t, "denverherald.com", a.SourceDomain)
	assert.Equal(t, "Denver, Colorado", a.LocationName)
	require.NotNil(t, a.Coordinates)
	assert.Equal(t, Coordinates{39.74, -104.99}, *a.Coordinates)
	assert.Equal(t, []float64{0.5, 0.5}, a.Embedding)
}

func TestArticleFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.json", "b.jsonl", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0755))

	files, err := articleFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.jsonl")}, files)

	single := filepath.Join(dir, "notes.txt")
	files, err = articleFiles(single)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, files)

	_, err = articleFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
