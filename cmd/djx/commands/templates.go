package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openjuicer/openjuicer/pkg/plan"
	"github.com/openjuicer/openjuicer/pkg/templates"
)

func newTemplatesCommand() *cobra.Command {
	var show string

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List or show workflow templates",
		Long: `List the available workflow templates.

Templates are embedded in the binary; files in the configured template
directory shadow embedded templates of the same name.`,
		Example: `  # List template names
  djx templates

  # Print one template
  djx templates --show text_cleaning`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			library, err := templates.NewLibrary(settings.TemplateDir)
			if err != nil {
				return err
			}

			if show != "" {
				tpl, err := library.Get(plan.Workflow(show))
				if err != nil {
					return usageError(err)
				}
				data, err := yaml.Marshal(tpl)
				if err != nil {
					return err
				}
				fmt.Print(string(data))
				return nil
			}

			for _, name := range library.Names() {
				fmt.Println(name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&show, "show", "", "print the named template as YAML")

	return cmd
}
