package commands

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/foofork/riptidecrawler/go/pkg/cli"
)

var (
	wsURL      string
	wsJSON     bool
	pingCount  int
	pingPeriod time.Duration
)

var wsCmd = &cobra.Command{
	Use:   "ws",
	Short: "WebSocket session utilities",
	Long: `Open short-lived WebSocket sessions to check a RipTide server.

Every command opens a new session, performs one exchange and closes it.`,
}

var wsPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure WebSocket round trip",
	Long: `Send a ping over a new WebSocket session and report the latency.

Examples:
  riptide ws ping
  riptide ws ping --url wss://riptide.example.com/crawl/ws --count 10 --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSinks("")
		if err != nil {
			return err
		}
		defer s.close()

		client, err := newClient()
		if err != nil {
			return err
		}
		out := cli.NewResultPrinter(os.Stdout, wsJSON)
		ctx := cmd.Context()
		for i := range max(pingCount, 1) {
			if i > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(pingPeriod):
				}
			}
			res, err := client.Streaming.PingWebSocket(ctx, wsURL)
			if err != nil {
				return err
			}
			if s.metrics != nil {
				s.metrics.ObservePing(res)
			}
			if err := outputResult(res); err != nil {
				return err
			}
		}
		return nil
	},
}

var wsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show WebSocket session status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		status, err := client.Streaming.WebSocketStatus(cmd.Context(), wsURL)
		if err != nil {
			return err
		}
		return cli.NewResultPrinter(os.Stdout, wsJSON).Status(status)
	},
}

func init() {
	wsCmd.PersistentFlags().StringVar(&wsURL, "url", "", "WebSocket endpoint (default from the context)")
	wsCmd.PersistentFlags().BoolVar(&wsJSON, "json", false, "output as JSON")
	wsPingCmd.Flags().IntVarP(&pingCount, "count", "n", 1, "number of pings, one session each")
	wsPingCmd.Flags().DurationVar(&pingPeriod, "interval", time.Second, "delay between pings")

	wsCmd.AddCommand(wsPingCmd)
	wsCmd.AddCommand(wsStatusCmd)
}
