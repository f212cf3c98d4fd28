package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"
)

var dumpModels bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models offered by the service",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	modelsCmd.Flags().BoolVar(&dumpModels, "dump", false, "pretty print the decoded model records")
}

func runModels(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	models, err := client.ListModels(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dumpModels {
		printer := pp.New()
		printer.SetOutput(out)
		_, err := printer.Println(models)
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", color.New(color.Bold).Sprint("MODEL"), color.New(color.Bold).Sprint("OWNER"))
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\n", m.ID, m.OwnedBy)
	}
	return w.Flush()
}
