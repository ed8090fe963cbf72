package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	pinnerrors "github.com/maruel/pinn/internal/errors"
	"github.com/maruel/pinn/internal/models"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [type]",
	Short: "Print the JSON Schema of the stored document types",
	Long: `Print the JSON Schema of a stored document type. Without an argument
every known type is listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		types := map[string]any{
			"note":         &models.Note{},
			"cloudConfig":  &models.CloudConfig{},
			"envelope":     &models.RemoteEnvelope{},
			"syncMetadata": &models.SyncMetadata{},
		}
		if len(args) == 0 {
			names := make([]string, 0, len(types))
			for name := range types {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		}
		v, ok := types[args[0]]
		if !ok {
			return pinnerrors.Newf(pinnerrors.ErrValidation, "Unknown type %q.", args[0])
		}
		r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
		schema := r.Reflect(v)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(schema)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
