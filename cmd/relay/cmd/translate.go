package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newTranslateCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "translate [text...]",
		Short: "Translate text with the configured provider",
		Long: `Translate sends TRANSLATE_TEXT to the worker. Text comes from the arguments,
or from stdin when none are given. Languages default to the worker's
translation config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, args, from, to)
		},
	}

	cmd.Flags().StringVarP(&from, "from", "f", "", "source language (default from config)")
	cmd.Flags().StringVarP(&to, "to", "t", "", "target language (default from config)")
	return cmd
}

func runTranslate(cmd *cobra.Command, args []string, from, to string) error {
	text := strings.Join(args, " ")
	if len(args) == 0 {
		in, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimRight(string(in), "\n")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("nothing to translate")
	}

	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.client.Translate(ctx, text, from, to)
	if err != nil {
		return err
	}

	if isJSONOutput() {
		return printJSON(cmd.OutOrStdout(), result)
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.TranslatedText)
	return nil
}
