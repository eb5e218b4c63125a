package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wbrown/gpt2_bpe/envconfig"
	"github.com/wbrown/gpt2_bpe/generate"
	"github.com/wbrown/gpt2_bpe/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the HTTP server",
		Args:    cobra.NoArgs,
		RunE:    RunServer,
	}
	cmd.Flags().String("model", "", "ONNX model file (default $GPT2_MODEL)")
	cmd.Flags().Int("context", 0, "maximum prompt plus generated tokens, 0 for unlimited")
	return cmd
}

func RunServer(cmd *cobra.Command, _ []string) error {
	encoder, err := loadEncoder(cmd)
	if err != nil {
		return err
	}
	predictor, err := newPredictor(cmd)
	if err != nil {
		return err
	}
	defer predictor.Close()
	contextSize, _ := cmd.Flags().GetInt("context")

	ln, err := net.Listen("tcp", envconfig.Host())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	gen := generate.New(encoder, predictor,
		generate.Options{ContextSize: contextSize})
	return server.New(encoder, gen, envconfig.NumParallel()).Serve(ctx, ln)
}
