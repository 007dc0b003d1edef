package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openjuicer/openjuicer/pkg/registry"
)

func newOperatorsCommand() *cobra.Command {
	var resolve string

	cmd := &cobra.Command{
		Use:   "operators",
		Short: "List or resolve installed operators",
		Long: `List the operator catalog configured via registry_path, or resolve a
single name through the canonicalization tiers (exact, case-insensitive,
normalized, fuzzy).`,
		Example: `  # List the installed catalog
  djx operators

  # See what a model-produced name resolves to
  djx operators --resolve DocumentMinHashDeduplicator`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			reg := openRegistry(cmd.Context(), settings)

			if resolve != "" {
				fmt.Println(registry.Resolve(resolve, reg))
				return nil
			}

			names := reg.Names()
			if len(names) == 0 {
				fmt.Println("operator catalog is empty (operator-name validation fails open)")
				return nil
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&resolve, "resolve", "", "resolve one operator name")

	return cmd
}
