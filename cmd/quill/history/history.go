// Package historycmder provides the history command for browsing past
// generations, either from the local history file or from the read API.
package historycmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/pkg/cliui"
	"github.com/papercomputeco/quill/pkg/config"
	"github.com/papercomputeco/quill/pkg/dotdir"
	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/utils"
)

type historyCommander struct {
	flags config.FlagSet

	apiTarget string
	remote    bool
	clear     bool
	render    bool
	kind      string
	limit     int
	configDir string

	client *http.Client
}

const historyLongDesc string = `Show past generations.

Without arguments, lists the generations recorded locally by
"quill generate". With --remote, lists the generations stored by the
server through the read API. With an id, fetches the full text of that
generation from the read API.

Examples:
  quill history
  quill history --remote --kind poem --limit 5
  quill history 6f1c2b8e-... --render
  quill history --clear`

const historyShortDesc string = "Show past generations"

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{
		flags:  config.Flags,
		client: &http.Client{Timeout: 30 * time.Second},
	}

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, cmder.flags, []string{config.FlagAPITarget})
			cmder.apiTarget = v.GetString("client.api_target")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := cmd.OutOrStdout()

			switch {
			case cmder.clear:
				return cmder.runClear(out)
			case len(args) == 1:
				return cmder.runShow(ctx, out, args[0])
			case cmder.remote:
				return cmder.runRemote(ctx, out)
			default:
				return cmder.runLocal(out)
			}
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().BoolVar(&cmder.remote, "remote", false, "List generations stored by the server")
	cmd.Flags().BoolVar(&cmder.clear, "clear", false, "Clear the local history")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render the generation text as markdown")
	cmd.Flags().StringVar(&cmder.kind, "kind", "", "Only list generations of this kind (with --remote)")
	cmd.Flags().IntVar(&cmder.limit, "limit", 20, "Maximum number of generations to list")

	return cmd
}

func (c *historyCommander) runLocal(out io.Writer) error {
	entries, err := dotdir.NewManager().LoadHistory(c.configDir)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintf(out, "\n  %s No generations yet.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(out, "  Use 'quill generate <kind> <prompt>' to create one.\n\n")
		return nil
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Recent generations"))
	for i, e := range entries {
		if c.limit > 0 && i >= c.limit {
			break
		}
		fmt.Fprintf(out, "  %s  %-9s  %s  %s\n",
			cliui.IDStyle.Render(utils.Truncate(e.ID, 8)),
			cliui.NameStyle.Render(e.Kind),
			utils.Truncate(e.Prompt, 48),
			cliui.DimStyle.Render(e.CreatedAt.Local().Format(time.DateTime)),
		)
	}
	fmt.Fprintln(out)
	return nil
}

func (c *historyCommander) runRemote(ctx context.Context, out io.Writer) error {
	q := url.Values{}
	if c.kind != "" {
		q.Set("kind", c.kind)
	}
	if c.limit > 0 {
		q.Set("limit", strconv.Itoa(c.limit))
	}

	var resp struct {
		Generations []*llm.Generation `json:"generations"`
		Count       int               `json:"count"`
	}
	if err := c.getJSON(ctx, "/generations?"+q.Encode(), &resp); err != nil {
		return err
	}

	if resp.Count == 0 {
		fmt.Fprintf(out, "\n  %s No stored generations.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored generations"))
	for _, g := range resp.Generations {
		fmt.Fprintf(out, "  %s  %-9s  %s  %s  %s\n",
			cliui.IDStyle.Render(utils.Truncate(g.ID, 8)),
			cliui.NameStyle.Render(g.Kind),
			cliui.StatusStyle(string(g.Status)).Render(fmt.Sprintf("%-9s", g.Status)),
			utils.Truncate(g.Prompt, 40),
			cliui.DimStyle.Render(g.CreatedAt.Local().Format(time.DateTime)),
		)
	}
	fmt.Fprintln(out)
	return nil
}

func (c *historyCommander) runShow(ctx context.Context, out io.Writer, id string) error {
	var g llm.Generation
	if err := c.getJSON(ctx, "/generations/"+url.PathEscape(id), &g); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s %s\n", cliui.KeyStyle.Render("Generation:"), cliui.IDStyle.Render(g.ID))
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Kind:"), cliui.NameStyle.Render(g.Kind))
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Model:"), cliui.ValueStyle.Render(g.Model))
	fmt.Fprintf(out, "  %s %s %s\n",
		cliui.KeyStyle.Render("Status:"),
		cliui.StatusStyle(string(g.Status)).Render(string(g.Status)),
		cliui.DimStyle.Render(fmt.Sprintf("(%d frames, %s)", g.Frames, cliui.FormatDuration(g.Duration()))),
	)
	if g.Error != "" {
		fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Error:"), cliui.WarnStyle.Render(g.Error))
	}
	fmt.Fprintln(out)

	text := g.Text
	if c.render {
		if rendered, err := cliui.RenderMarkdown(text); err == nil {
			text = rendered
		}
	}
	fmt.Fprintln(out, text)
	return nil
}

func (c *historyCommander) runClear(out io.Writer) error {
	if err := dotdir.NewManager().ClearHistory(c.configDir); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n  %s Cleared local history.\n\n", cliui.SuccessMark)
	return nil
}

func (c *historyCommander) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(c.apiTarget, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("querying read API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("read API returned %d: %s", resp.StatusCode, apiErr.Error)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
