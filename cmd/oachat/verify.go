package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check credentials and connectivity with a tiny completion",
	Args:  cobra.NoArgs,
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	summary, err := client.Verify(cmd.Context())
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.RedString("✗"), err)
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s answered with model %s\n",
		color.GreenString("✓"),
		client.Config().BaseURL,
		color.CyanString(summary.Model),
	)
	if summary.Usage != nil {
		fmt.Fprintf(out, "  tokens: %d prompt, %d completion\n", summary.Usage.PromptTokens, summary.Usage.CompletionTokens)
	}
	return nil
}
