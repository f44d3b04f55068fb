package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/foofork/riptidecrawler/go/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

A context names one RipTide server: its base URL, an optional WebSocket URL,
headers sent with every request and the frame decode policy.

Configuration is stored in ~/.riptide/riptide/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add or replace a context",
	Long: `Add a context with the specified name.

Example:
  riptide config add-context local --base-url http://localhost:8080
  riptide config add-context prod --base-url https://riptide.example.com \
      --header "Authorization=Bearer $TOKEN" --decode-policy repair`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		flags := cmd.Flags()

		baseURL, _ := flags.GetString("base-url")
		wsURL, _ := flags.GetString("ws-url")
		timeout, _ := flags.GetInt("timeout")
		userAgent, _ := flags.GetString("user-agent")
		policy, _ := flags.GetString("decode-policy")
		headerArgs, _ := flags.GetStringArray("header")

		headers, err := parseHeaders(headerArgs)
		if err != nil {
			return err
		}

		cfg, err := getConfig()
		if err != nil {
			return err
		}
		rc := &cli.Context{
			BaseURL:      baseURL,
			WSURL:        wsURL,
			Timeout:      timeout,
			Headers:      headers,
			UserAgent:    userAgent,
			DecodePolicy: policy,
		}
		if err := cfg.AddContext(name, rc); err != nil {
			return err
		}

		printSuccess("Context %q added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		printSuccess("Context %q deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		printSuccess("Switched to context %q", args[0])
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context [name]",
	Short: "Display a context (default: the current one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		name := cfg.CurrentContext
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			fmt.Println("No current context set")
			return nil
		}
		rc, err := cfg.GetContext(name)
		if err != nil {
			return err
		}
		return cli.NewResultPrinter(os.Stdout, false).Context(rc)
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if len(cfg.Contexts) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tBASE_URL\tWS_URL\tDECODE_POLICY")
		for _, name := range cfg.ListContexts() {
			rc := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", current, name,
				orDefault(rc.BaseURL, "(default)"),
				orDefault(rc.WSURL, "(derived)"),
				orDefault(rc.DecodePolicy, "default"))
		}
		return w.Flush()
	},
}

func parseHeaders(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid header %q, want KEY=VALUE", arg)
		}
		headers[strings.TrimSpace(k)] = v
	}
	return headers, nil
}

func init() {
	configAddContextCmd.Flags().String("base-url", "", "RipTide API base URL (default http://localhost:8080)")
	configAddContextCmd.Flags().String("ws-url", "", "WebSocket endpoint (default derived from the base URL)")
	configAddContextCmd.Flags().Int("timeout", 0, "WebSocket handshake timeout in seconds")
	configAddContextCmd.Flags().String("user-agent", "", "User-Agent header")
	configAddContextCmd.Flags().String("decode-policy", "", "malformed frame handling: default, fail-fast, inline, repair")
	configAddContextCmd.Flags().StringArray("header", nil, "extra request header as KEY=VALUE (repeatable)")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
}
