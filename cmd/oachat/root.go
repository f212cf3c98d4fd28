package main

import (
	"log/slog"

	"github.com/casualjim/oachat"
	"github.com/fogfish/opts"
	"github.com/spf13/cobra"
)

var (
	envFiles []string
	baseURL  string
	apiKey   string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:           "oachat",
	Short:         "Chat with an OpenAI-compatible completion service",
	Long:          "oachat verifies credentials, lists models and streams chat completions from any OpenAI-compatible endpoint.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to read configuration from")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "service root, overrides "+oachat.EnvBaseURL)
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key, overrides "+oachat.EnvAPIKey)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(chatCmd)
}

// newClient builds a client from the env files, the environment and the
// global flags, in that order of precedence from lowest to highest.
func newClient() (*oachat.Client, error) {
	options := []opts.Option[oachat.Config]{
		oachat.FromEnv(envFiles...),
		oachat.Logger(slog.Default()),
	}
	if baseURL != "" {
		options = append(options, oachat.BaseURL(baseURL))
	}
	if apiKey != "" {
		options = append(options, oachat.APIKey(apiKey))
	}
	return oachat.New(options...)
}
