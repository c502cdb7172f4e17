package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pricofy/translation-relay/internal/domain"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write the worker's stored configuration",
		Long: `Commands for the translation and rules configs kept by the worker.
Config types are "translation" and "rules".`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:       "get <translation|rules>",
			Short:     "Print a config, or its defaults when never saved",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{domain.ConfigTypeTranslation, domain.ConfigTypeRules},
			RunE:      runConfigGet,
		},
		&cobra.Command{
			Use:   "set <translation|rules> <json|@file>",
			Short: "Replace a whole config",
			Long: `Set replaces the whole config object. Fields left out are reset to their
defaults. Prefix the argument with @ to read the JSON from a file.`,
			Args: cobra.ExactArgs(2),
			RunE: runConfigSet,
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create configs that were never saved with their defaults",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withClient(cmd, func(s *session) error {
					return s.client.InitializeConfig(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore every config to its defaults",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withClient(cmd, func(s *session) error {
					return s.client.ResetConfig(cmd.Context())
				})
			},
		},
	)
	return cmd
}

// withClient connects, runs fn and closes the session.
func withClient(cmd *cobra.Command, fn func(s *session) error) error {
	s, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var cfg json.RawMessage
	if err := s.client.GetConfig(ctx, args[0], &cfg); err != nil {
		return err
	}

	if isJSONOutput() {
		return printJSON(cmd.OutOrStdout(), cfg)
	}
	return printProperties(cmd.OutOrStdout(), cfg)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	raw, err := readConfigArg(args[1])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.client.SetConfig(ctx, args[0], raw); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s config saved\n", args[0])
	return nil
}

// readConfigArg returns the JSON given inline or, with a leading @, from a file.
func readConfigArg(arg string) (json.RawMessage, error) {
	data := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("config is not valid JSON")
	}
	return json.RawMessage(data), nil
}
