package app

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the urlconn command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "urlconn",
		Short:         "Open URL connections through pluggable scheme handlers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newFetchCommand(app), newSchemesCommand(app))
	return rootCmd
}

func newFetchCommand(app *App) *cobra.Command {
	var (
		req     FetchRequest
		data    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fetch [url]",
		Short: "Fetch a URL and write the response body to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.URL = args[0]
			req.Timeout = timeout
			if cmd.Flags().Changed("data") {
				req.Data = &data
			}

			_, err := app.Fetch(cmd.Context(), req, cmd.OutOrStdout())
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&req.Proxy, "proxy", "x", "", `proxy to use: "direct", http://host:port, socks5://host:port`)
	flags.StringVarP(&req.Method, "method", "X", "", "request method (default GET, or POST with --data)")
	flags.StringArrayVarP(&req.Headers, "header", "H", nil, `request header in "Key: Value" form, repeatable`)
	flags.StringVarP(&data, "data", "d", "", "request body")
	flags.BoolVar(&req.NoRedirects, "no-redirects", false, "do not follow redirects")
	flags.BoolVarP(&req.Include, "include", "i", false, "write the status line and response headers before the body")
	flags.DurationVar(&timeout, "timeout", 0, "bound the whole exchange (default from URLCONN_READ_TIMEOUT)")

	return cmd
}

func newSchemesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "schemes",
		Short: "List registered schemes and their default ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schemes := app.Schemes()

			names := make([]string, 0, len(schemes))
			for name := range schemes {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, schemes[name])
			}
			return nil
		},
	}
}
