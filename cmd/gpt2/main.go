package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wbrown/gpt2_bpe"
	"github.com/wbrown/gpt2_bpe/envconfig"
)

func main() {
	if err := NewCLI().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}
	var sb strings.Builder
	sb.WriteString("\nEnvironment Variables:\n")
	for _, e := range envs {
		fmt.Fprintf(&sb, "      %-20s   %s\n", e.Name, e.Description)
	}
	cmd.SetUsageTemplate(cmd.UsageTemplate() + sb.String())
}

func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "gpt2",
		Short:         "GPT-2 text generation and byte-level BPE tokenization",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(),
				&slog.HandlerOptions{Level: envconfig.LogLevel()})))
		},
	}
	rootCmd.PersistentFlags().String("vocab", "", "vocabulary file (default $GPT2_VOCAB)")
	rootCmd.PersistentFlags().String("merges", "", "merges file (default $GPT2_MERGES)")
	rootCmd.PersistentFlags().String("specials", "", "special tokens file (default $GPT2_SPECIALS)")

	generateCmd := newGenerateCmd()
	tokenizeCmd := newTokenizeCmd()
	detokenizeCmd := newDetokenizeCmd()
	serveCmd := newServeCmd()

	envVars := envconfig.AsMap()
	tokenizerEnvs := []envconfig.EnvVar{envVars["GPT2_VOCAB"],
		envVars["GPT2_MERGES"], envVars["GPT2_SPECIALS"], envVars["GPT2_DEBUG"]}
	for _, cmd := range []*cobra.Command{
		generateCmd,
		tokenizeCmd,
		detokenizeCmd,
		serveCmd,
	} {
		switch cmd {
		case generateCmd:
			appendEnvDocs(cmd, append(tokenizerEnvs, envVars["GPT2_MODEL"],
				envVars["GPT2_ORT_LIBRARY"]))
		case serveCmd:
			appendEnvDocs(cmd, append(tokenizerEnvs, envVars["GPT2_MODEL"],
				envVars["GPT2_ORT_LIBRARY"], envVars["GPT2_HOST"],
				envVars["GPT2_NUM_PARALLEL"]))
		default:
			appendEnvDocs(cmd, tokenizerEnvs)
		}
	}

	rootCmd.AddCommand(generateCmd, tokenizeCmd, detokenizeCmd, serveCmd)
	return rootCmd
}

// flagOrEnv returns the flag value if set, otherwise the env default.
func flagOrEnv(cmd *cobra.Command, name string, env func() string) string {
	if value, _ := cmd.Flags().GetString(name); value != "" {
		return value
	}
	return env()
}

func loadEncoder(cmd *cobra.Command) (*gpt2_bpe.GPTEncoder, error) {
	encoder, err := gpt2_bpe.NewEncoderFromFiles(
		flagOrEnv(cmd, "vocab", envconfig.Vocab),
		flagOrEnv(cmd, "merges", envconfig.Merges),
		flagOrEnv(cmd, "specials", envconfig.Specials),
	)
	if err != nil {
		return nil, fmt.Errorf("error initialising GPT2 tokenizer: %w", err)
	}
	return encoder, nil
}
