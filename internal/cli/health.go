package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/tablesync/internal/restclient"
)

func newHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running local view API",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := restclient.New(localAPIURL(cfg.Listen), cfg.APIToken)

			var result HealthResult
			if err := client.Get(cmd.Context(), "/api/v1/health", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Listen, "listen", cfg.Listen, "Local API address (env: TSYNC_LISTEN)")

	return cmd
}

// localAPIURL turns a listen address into a base URL
func localAPIURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}
