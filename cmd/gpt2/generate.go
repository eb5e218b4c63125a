package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wbrown/gpt2_bpe"
	"github.com/wbrown/gpt2_bpe/envconfig"
	"github.com/wbrown/gpt2_bpe/generate"
	"github.com/wbrown/gpt2_bpe/onnx"
)

var errNoText = errors.New("expected text input")

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a continuation of the given text",
		Args:  cobra.NoArgs,
		RunE:  GenerateHandler,
	}
	cmd.Flags().StringP("text", "t", "", "initial text for GPT2")
	cmd.Flags().IntP("number", "n", 1, "number of new tokens to generate from the initial text")
	cmd.Flags().Int("context", 0, "maximum prompt plus generated tokens, 0 for unlimited")
	cmd.Flags().Bool("complete-sentences", false, "drop a trailing incomplete sentence from the result")
	cmd.Flags().String("model", "", "ONNX model file (default $GPT2_MODEL)")
	return cmd
}

func newPredictor(cmd *cobra.Command) (*onnx.Predictor, error) {
	opts := onnx.DefaultOptions()
	opts.LibraryPath = envconfig.OrtLibrary()
	return onnx.NewPredictor(flagOrEnv(cmd, "model", envconfig.Model), opts)
}

func GenerateHandler(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("text") {
		return fmt.Errorf("%w\n\n%s", errNoText, cmd.UsageString())
	}
	text, _ := cmd.Flags().GetString("text")
	n, _ := cmd.Flags().GetInt("number")
	contextSize, _ := cmd.Flags().GetInt("context")
	completeSentences, _ := cmd.Flags().GetBool("complete-sentences")
	if n < 0 {
		return generate.ErrNegativeNumToken
	}

	encoder, err := loadEncoder(cmd)
	if err != nil {
		return err
	}
	predictor, err := newPredictor(cmd)
	if err != nil {
		return err
	}
	defer predictor.Close()

	gen := generate.New(encoder, predictor,
		generate.Options{ContextSize: contextSize})
	return runGenerate(cmd, encoder, gen, text, n, completeSentences)
}

func runGenerate(cmd *cobra.Command, encoder *gpt2_bpe.GPTEncoder,
	gen *generate.Generator, text string, n int,
	completeSentences bool) error {
	result, err := gen.Generate(cmd.Context(), text, n)
	if err != nil {
		return err
	}
	prediction := result.Text
	if completeSentences {
		trimmed, err := encoder.TrimIncompleteSentence(result.Tokens)
		if err != nil {
			return err
		}
		if prediction, err = encoder.Decode(trimmed); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Prediction: \"%s\"\n", prediction)
	return nil
}
