package geonarrative

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

// schemaTypes are the documents the tool reads or writes, by name.
var schemaTypes = map[string]func() any{
	"article":    func() any { return &Article{} },
	"result":     func() any { return &Result{} },
	"quality":    func() any { return &QualityReport{} },
	"comparison": func() any { return &Comparison{} },
	"lexicon":    func() any { return &Lexicon{} },
}

var SchemaCmd = &cobra.Command{
	Use:       "schema [" + strings.Join(SchemaNames(), "|") + "]",
	Short:     "Print the JSON schema of an input or output document",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: SchemaNames(),
	Run: func(cmd *cobra.Command, args []string) {
		name := "article"
		if len(args) == 1 {
			name = args[0]
		}
		data, err := Schema(name)
		if err != nil {
			log.Printf("Failed to generate schema: %v", err)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	},
}

// SchemaNames lists the documents Schema knows about.
func SchemaNames() []string {
	names := make([]string, 0, len(schemaTypes))
	for name := range schemaTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema returns the indented JSON schema of the named document.
func Schema(name string) ([]byte, error) {
	newValue, ok := schemaTypes[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q, want one of %s", name, strings.Join(SchemaNames(), ", "))
	}

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaObj := reflector.Reflect(newValue())
	if schemaObj.Type == "" {
		schemaObj.Type = "object"
	}

	data, err := json.MarshalIndent(schemaObj, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
