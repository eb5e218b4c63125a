package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/wbrown/gpt2_bpe"
	"github.com/wbrown/gpt2_bpe/types"
)

func newTokenizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokenize TEXT",
		Short: "Encode text and show the tokens",
		Args:  cobra.ExactArgs(1),
		RunE:  TokenizeHandler,
	}
	cmd.Flags().String("out", "", "write the tokens to a binary file")
	cmd.Flags().Bool("32", false, "write 32-bit tokens instead of 16-bit")
	return cmd
}

func newDetokenizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detokenize FILE",
		Short: "Decode a binary token file",
		Args:  cobra.ExactArgs(1),
		RunE:  DetokenizeHandler,
	}
	cmd.Flags().String("out", "", "write the text to a file instead of stdout")
	cmd.Flags().Bool("32", false, "read 32-bit tokens instead of 16-bit")
	return cmd
}

func TokenizeHandler(cmd *cobra.Command, args []string) error {
	encoder, err := loadEncoder(cmd)
	if err != nil {
		return err
	}
	tokens, err := encoder.Encode(args[0])
	if err != nil {
		return err
	}
	if err := renderTokens(cmd, encoder, tokens); err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		return nil
	}
	use32, _ := cmd.Flags().GetBool("32")
	bin, err := tokens.ToBin(use32)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, bin, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d tokens (%s) to %s\n",
		len(tokens), humanize.Bytes(uint64(len(bin))), out)
	return nil
}

func renderTokens(cmd *cobra.Command, encoder *gpt2_bpe.GPTEncoder,
	tokens types.Tokens) error {
	data := make([][]string, 0, len(tokens))
	for idx, token := range tokens {
		symbol, _ := encoder.Symbol(token)
		text, err := encoder.Decode(types.Tokens{token})
		if err != nil {
			return err
		}
		data = append(data, []string{strconv.Itoa(idx),
			strconv.FormatUint(uint64(token), 10), symbol,
			strconv.Quote(text)})
	}
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"INDEX", "ID", "SYMBOL", "TEXT"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
	return nil
}

func DetokenizeHandler(cmd *cobra.Command, args []string) error {
	encoder, err := loadEncoder(cmd)
	if err != nil {
		return err
	}
	bin, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	use32, _ := cmd.Flags().GetBool("32")
	text, err := encoder.DecodeBuffer(bin, use32)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", args[0], err)
	}
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	}
	return os.WriteFile(out, []byte(text), 0o644)
}
