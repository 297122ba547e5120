package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kwayummari/ghf-approval-engine/internal/config"
)

func init() {
	rootCmd.AddCommand(definitionsCmd)
	definitionsCmd.AddCommand(definitionsValidateCmd)
	definitionsCmd.AddCommand(definitionsListCmd)
}

var definitionsCmd = &cobra.Command{
	Use:   "definitions",
	Short: "Workflow definition catalog operations",
}

var definitionsValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a workflow catalog file",
	Long:  "Parses the YAML catalog, checks every definition and effect binding, and builds a sealed registry from it.\nExits non-zero on the first problem.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDefinitionsValidate,
}

var definitionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the definitions the service would load",
	Long:  "Loads the catalog named by workflows.path in the configuration, falling back to the built-in catalog.",
	Args:  cobra.NoArgs,
	RunE:  runDefinitionsList,
}

func runDefinitionsValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}

	catalog, err := config.ParseWorkflows(data)
	if err != nil {
		return err
	}
	if _, err := catalog.BuildRegistry(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "OK: %d definitions\n", len(catalog.Definitions))
	return printCatalog(cmd.OutOrStdout(), catalog)
}

func runDefinitionsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	catalog, err := config.LoadWorkflows(cfg.Workflows.Path)
	if err != nil {
		return err
	}
	return printCatalog(cmd.OutOrStdout(), catalog)
}

func printCatalog(out io.Writer, catalog *config.WorkflowCatalog) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REQUEST TYPE\tSTAGES\tEFFECTS")

	for _, def := range catalog.Definitions {
		stages := make([]string, 0, len(def.Stages))
		for _, s := range def.Stages {
			guard := s.RequiredRole
			if guard == "" {
				guard = "perm:" + s.RequiredPermission
			}
			name := fmt.Sprintf("%s(%s)", s.Name, guard)
			if s.Disbursement {
				name += "*"
			}
			stages = append(stages, name)
		}

		effects := strings.Join(catalog.Effects[def.RequestType], ",")
		if effects == "" {
			effects = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", def.RequestType, strings.Join(stages, " > "), effects)
	}

	return w.Flush()
}
