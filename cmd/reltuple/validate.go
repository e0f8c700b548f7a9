package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/reltuple/internal/cli"
	"github.com/pthm/reltuple/pkg/schemafile"
)

var validateSchemaPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate schema syntax and invariants",
	Long:  `Parse a schema file and validate it against the direct/group/hierarchy invariants core.NewSchema enforces.`,
	Example: `  # Validate a specific schema file
  reltuple validate --schema schema.yaml

  # Validate using config file settings
  reltuple validate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaPath := resolveString(validateSchemaPath, cfg.Schema)

		if _, err := os.Stat(schemaPath); err != nil {
			return cli.SchemaParseError(fmt.Sprintf("schema not found: %s", schemaPath), nil)
		}

		schema, err := schemafile.Load(schemaPath)
		if err != nil {
			return cli.SchemaParseError("parsing schema", err)
		}

		if !quiet {
			fmt.Printf("Schema is valid.\n")
			fmt.Printf("  subject types: %v\n", schema.SubjectTypes())
			fmt.Printf("  object types:  %v\n", schema.ObjectTypes())
			if rel, ok := schema.GroupRelation(); ok {
				fmt.Printf("  group relation: %s\n", rel)
			}
			if rel, ok := schema.HierarchyRelation(); ok {
				fmt.Printf("  hierarchy relation: %s\n", rel)
			}
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSchemaPath, "schema", "", "path to schema file")
}
