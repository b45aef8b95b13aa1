package geonarrative

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema(t *testing.T) {
	assert.Equal(t, []string{"article", "comparison", "lexicon", "quality", "result"}, SchemaNames())

	for _, name := range SchemaNames() {
		t.Run(name, func(t *testing.T) {
			data, err := Schema(name)
			require.NoError(t, err)

			var doc map[string]any
			require.NoError(t, json.Unmarshal(data, &doc))
			assert.Equal(t, "object", doc["type"])
			assert.Contains(t, doc, "properties")
		})
	}

	data, err := Schema("article")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"source_domain"`)
	assert.Contains(t, string(data), `"additionalProperties": false`)

	_, err = Schema("video")
	assert.ErrorContains(t, err, `unknown schema "video"`)
}

func TestSchemaCmd(t *testing.T) {
	var out bytes.Buffer
	SchemaCmd.SetOut(&out)
	t.Cleanup(func() { SchemaCmd.SetOut(nil) })

	SchemaCmd.Run(SchemaCmd, []string{"quality"})
	assert.Contains(t, out.String(), `"silhouette_score"`)
}
