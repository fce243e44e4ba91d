// Package generatecmder provides the generate command, which streams a
// generation from a running quill server to the terminal.
package generatecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/quill/pkg/cliui"
	"github.com/papercomputeco/quill/pkg/config"
	"github.com/papercomputeco/quill/pkg/dotdir"
	"github.com/papercomputeco/quill/pkg/logger"
	"github.com/papercomputeco/quill/pkg/prompt"
)

type generateCommander struct {
	flags config.FlagSet

	serverTarget string
	input        prompt.Input
	render       bool
	noHistory    bool
	debug        bool
	configDir    string

	viper  *viper.Viper
	logger *slog.Logger
}

const generateLongDesc string = `Stream a generation from a running quill server.

The visible text is printed as it arrives. Hidden reasoning never reaches
the client. With --render the finished text is rendered as markdown once
the stream ends.

Every completed generation is recorded in the local history (see
"quill history") unless --no-history is set.

Kinds: story, fanfic, poem, plot, backstory, titles

Examples:
  quill generate story "a lighthouse keeper who collects storms"
  quill generate poem "autumn in the city" --style haiku
  quill generate fanfic "the crew meets a sentient nebula" --fandom "Star Trek"
  quill generate titles "a heist on a generation ship" --count 5 --render`

const generateShortDesc string = "Stream a generation from the quill server"

func NewGenerateCmd() *cobra.Command {
	cmder := &generateCommander{flags: config.Flags}

	cmd := &cobra.Command{
		Use:       "generate <kind> <prompt...>",
		Short:     generateShortDesc,
		Long:      generateLongDesc,
		Args:      cobra.MinimumNArgs(2),
		ValidArgs: kindNames(),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, cmder.flags, []string{config.FlagServerTarget})
			cmder.viper = v
			cmder.serverTarget = v.GetString("client.server_target")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			kind, err := prompt.ParseKind(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q (expected one of %s)", err, args[0], strings.Join(kindNames(), ", "))
			}
			cmder.input.Prompt = strings.Join(args[1:], " ")

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, cmd.OutOrStdout(), kind)
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagServerTarget, &cmder.serverTarget)
	cmd.Flags().StringVar(&cmder.input.Genre, "genre", "", "Genre (e.g. mystery, fantasy)")
	cmd.Flags().StringVar(&cmder.input.Tone, "tone", "", "Tone (e.g. whimsical, dark)")
	cmd.Flags().StringVar(&cmder.input.Length, "length", "", "Length (short, medium, long)")
	cmd.Flags().StringVar(&cmder.input.Characters, "characters", "", "Characters to include")
	cmd.Flags().StringVar(&cmder.input.Fandom, "fandom", "", "Fandom, required for fanfic")
	cmd.Flags().StringVar(&cmder.input.Style, "style", "", "Style or form (e.g. sonnet, noir)")
	cmd.Flags().IntVar(&cmder.input.Count, "count", 0, "Number of titles to generate")
	cmd.Flags().StringVar(&cmder.input.Token, "token", "", "Verification token, when the server requires one")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render the finished text as markdown")
	cmd.Flags().BoolVar(&cmder.noHistory, "no-history", false, "Do not record the generation in local history")

	return cmd
}

func (c *generateCommander) run(ctx context.Context, out io.Writer, kind prompt.Kind) error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))
	c.logger.Debug("requesting generation",
		"server_target", c.serverTarget,
		"kind", kind.String(),
	)

	client := &http.Client{
		// Generations stream for a while; the server bounds stalls itself.
		Timeout: 10 * time.Minute,
	}

	start := time.Now()
	result, err := streamGeneration(ctx, client, c.serverTarget, kind, c.input, func(text string) error {
		if c.render {
			return nil
		}
		_, err := io.WriteString(out, text)
		return err
	})
	fmt.Fprintln(out)

	if err != nil {
		var serverErr *ServerError
		if errors.As(err, &serverErr) {
			return fmt.Errorf("generation refused: %s", serverErr.Message)
		}
		if !errors.Is(err, ErrInterrupted) {
			return err
		}
		fmt.Fprintf(out, "\n  %s %v\n", cliui.FailMark, err)
	}

	if c.render && result.Text != "" {
		rendered, renderErr := cliui.RenderMarkdown(result.Text)
		if renderErr != nil {
			c.logger.Debug("markdown render failed", "error", renderErr)
		}
		fmt.Fprint(out, rendered)
	}

	fmt.Fprintf(out, "\n  %s %s %s\n",
		cliui.Mark(err),
		cliui.IDStyle.Render(result.ID),
		cliui.DimStyle.Render(fmt.Sprintf("(%d frames, %s)", result.Frames, cliui.FormatDuration(time.Since(start)))),
	)

	if err == nil && !c.noHistory && result.ID != "" {
		c.recordHistory(kind, result)
	}

	return err
}

func (c *generateCommander) recordHistory(kind prompt.Kind, result Result) {
	entry := dotdir.HistoryEntry{
		ID:        result.ID,
		Kind:      kind.String(),
		Prompt:    c.input.Prompt,
		Server:    c.serverTarget,
		Frames:    result.Frames,
		CreatedAt: time.Now().UTC(),
	}
	if err := dotdir.NewManager().AppendHistory(entry, c.configDir); err != nil {
		c.logger.Warn("could not record generation history", "error", err)
	}
}

func kindNames() []string {
	kinds := prompt.Kinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}
	return names
}
