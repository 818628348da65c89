// Package cli implements selectorctl, a thin client for the selection API.
//
//	selectorctl select  --service translate --min 1 --max 3 --exclude e1
//	selectorctl release <executorId>
//	selectorctl list    --limit 50
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	server  string
	apiKey  string
	timeout time.Duration
}

func (o *globalOptions) client() *Client {
	return NewClient(o.server, o.apiKey, o.timeout)
}

// BuildCLI assembles the root command.
func BuildCLI() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:           "selectorctl",
		Short:         "Select, release and list executors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.server, "server", "s", envOr("SELECTOR_SERVER", "http://localhost:8080"), "selection API base URL")
	rootCmd.PersistentFlags().StringVar(&opts.apiKey, "api-key", os.Getenv("SELECTOR_API_KEY"), "API key sent as bearer token")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	rootCmd.AddCommand(buildSelectCommand(opts))
	rootCmd.AddCommand(buildReleaseCommand(opts))
	rootCmd.AddCommand(buildListCommand(opts))

	return rootCmd
}

func buildSelectCommand(opts *globalOptions) *cobra.Command {
	var (
		service    string
		minVersion int
		maxVersion int
		exclusions []string
	)
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Select and lock one executor for a service",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := SelectRequest{ServiceDefinition: service, Exclusions: exclusions}
			if cmd.Flags().Changed("min") {
				req.MinVersion = &minVersion
			}
			if cmd.Flags().Changed("max") {
				req.MaxVersion = &maxVersion
			}
			exec, err := opts.client().Select(cmd.Context(), req)
			if errors.Is(err, ErrNoCandidate) {
				fmt.Fprintln(cmd.ErrOrStderr(), "no executor available")
				return err
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), exec)
		},
	}
	cmd.Flags().StringVar(&service, "service", "", "service definition to serve")
	cmd.Flags().IntVar(&minVersion, "min", 0, "lowest acceptable version")
	cmd.Flags().IntVar(&maxVersion, "max", 0, "highest acceptable version")
	cmd.Flags().StringSliceVar(&exclusions, "exclude", nil, "executor ids to skip")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

func buildReleaseCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release <executorId>",
		Short: "Clear the lock of a selected executor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().Release(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released %s\n", args[0])
			return nil
		},
	}
}

func buildListCommand(opts *globalOptions) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered executors",
		RunE: func(cmd *cobra.Command, args []string) error {
			execs, err := opts.client().List(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tENDPOINT\tLOCKED\tSERVICES")
			for _, e := range execs {
				fmt.Fprintf(tw, "%s\t%s\t%s:%d%s\t%t\t%d\n",
					e.ExecutorID, e.Name, e.Address, e.Port, e.BasePath, e.Locked, len(e.ServiceDefinitions))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

// Execute runs the CLI with a background context.
func Execute() int {
	if err := BuildCLI().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, ErrNoCandidate) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		return 1
	}
	return 0
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
