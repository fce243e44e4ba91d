// Package quillcmder
package quillcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/quill/cmd/quill/auth"
	configcmder "github.com/papercomputeco/quill/cmd/quill/config"
	generatecmder "github.com/papercomputeco/quill/cmd/quill/generate"
	historycmder "github.com/papercomputeco/quill/cmd/quill/history"
	initcmder "github.com/papercomputeco/quill/cmd/quill/init"
	servecmder "github.com/papercomputeco/quill/cmd/quill/serve"
	statuscmder "github.com/papercomputeco/quill/cmd/quill/status"
	versioncmder "github.com/papercomputeco/quill/cmd/version"
)

const quillLongDesc string = `Quill streams generated stories, poems and more from an
OpenAI-compatible model, hiding the model's reasoning along the way.

Run the service using:
  quill serve                    Run the generation server and read API

Then generate from the command line:
  quill generate story "a fox who learns to sail"
  quill history                  Show recent generations`

const quillShortDesc string = "Quill - streaming content generation"

func NewQuillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quill",
		Short:         quillShortDesc,
		Long:          quillLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .quill/ config directory")

	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(generatecmder.NewGenerateCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
