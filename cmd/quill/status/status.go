// Package statuscmder provides the status command, which summarizes the local
// quill setup and checks that the configured servers answer.
package statuscmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/pkg/cliui"
	"github.com/papercomputeco/quill/pkg/config"
	"github.com/papercomputeco/quill/pkg/credentials"
	"github.com/papercomputeco/quill/pkg/dotdir"
)

const statusLongDesc string = `Show the local quill setup.

Displays the resolved .quill/ directory, the upstream provider and model,
whether an API key is available for that provider, and the number of
locally recorded generations. Then pings the generation server and the read
API at their configured client targets.

Examples:
  quill status
  quill status --config-dir ./project/.quill`

const statusShortDesc string = "Show quill setup and server health"

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runStatus(ctx, cmd.OutOrStdout(), configDir, &http.Client{Timeout: 3 * time.Second})
		},
	}

	return cmd
}

func runStatus(ctx context.Context, out io.Writer, configDir string, client *http.Client) error {
	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}

	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cliui.DimStyle.Render("<none, using defaults>")
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	key, err := mgr.Resolve(cfg.Upstream.Provider)
	if err != nil {
		return err
	}

	history, err := dotdir.NewManager().LoadHistory(configDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s %s\n", cliui.KeyStyle.Render("Config dir:"), dir)
	fmt.Fprintf(out, "  %s %s %s\n",
		cliui.KeyStyle.Render("Upstream:  "),
		cliui.NameStyle.Render(cfg.Upstream.Provider),
		cliui.DimStyle.Render(cfg.Upstream.BaseURL),
	)
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Model:     "), cliui.ValueStyle.Render(cfg.Upstream.Model))
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("API key:   "), describeKey(key, cfg.Upstream.Provider))
	fmt.Fprintf(out, "  %s %d\n\n", cliui.KeyStyle.Render("History:   "), len(history))

	// Unreachable servers are reported, not returned: status is a diagnostic.
	_ = cliui.Step(out, "generation server "+cfg.Client.ServerTarget, func() error {
		return ping(ctx, client, cfg.Client.ServerTarget)
	})
	_ = cliui.Step(out, "read API "+cfg.Client.APITarget, func() error {
		return ping(ctx, client, cfg.Client.APITarget)
	})
	fmt.Fprintln(out)

	return nil
}

func describeKey(key, provider string) string {
	if key == "" {
		return cliui.WarnStyle.Render("missing") + " " +
			cliui.DimStyle.Render(fmt.Sprintf("(run 'quill auth %s' or set %s)", provider, credentials.EnvVarForProvider(provider)))
	}
	masked := "****"
	if len(key) > 8 {
		masked = key[:4] + "…" + key[len(key)-4:]
	}
	return cliui.SuccessMark + " " + cliui.DimStyle.Render(masked)
}

func ping(ctx context.Context, client *http.Client, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(target, "/")+"/ping", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping returned %d", resp.StatusCode)
	}
	return nil
}
