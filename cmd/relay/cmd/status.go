package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pricofy/translation-relay/internal/liveness"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Probe the worker once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := connect(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			start := time.Now()
			if !s.client.Ping(ctx) {
				return fmt.Errorf("worker did not answer")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pong in %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show worker liveness",
		Long: `Status probes the worker and prints its liveness. With --wait it keeps
polling until the worker answers or the wait elapses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, wait)
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "wait up to this long for the worker to revive")
	return cmd
}

func runStatus(cmd *cobra.Command, wait time.Duration) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if wait > 0 {
		s.client.AwaitWorker(ctx, wait, liveness.DefaultPollInterval)
	} else {
		s.client.Ping(ctx)
	}
	st := s.client.Status()

	if isJSONOutput() {
		return printJSON(cmd.OutOrStdout(), st)
	}

	lastActive := "never"
	if !st.LastActiveTime.IsZero() {
		lastActive = st.LastActiveTime.Local().Format(time.RFC3339)
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Alive", "Initialized", "Last Active", "Origin")
	table.Append([]string{
		strconv.FormatBool(st.IsAlive),
		strconv.FormatBool(st.IsInitialized),
		lastActive,
		s.client.Origin(),
	})
	return table.Render()
}
