package authcmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/quill/cmd/quill/auth"
	"github.com/papercomputeco/quill/pkg/credentials"
)

func newCmd(in string) (*cobra.Command, *bytes.Buffer) {
	cmd := authcmder.NewAuthCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(bytes.NewBufferString(in))
	cmd.PersistentFlags().String("config-dir", "", "Override path to .quill/ config directory")
	return cmd, out
}

var _ = Describe("Auth Command", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	Describe("NewAuthCmd", func() {
		It("creates a command with expected properties", func() {
			cmd := authcmder.NewAuthCmd()
			Expect(cmd.Use).To(Equal("auth [provider]"))
			Expect(cmd.Short).NotTo(BeEmpty())
			Expect(cmd.Flags().Lookup("list")).NotTo(BeNil())
			Expect(cmd.Flags().Lookup("remove")).NotTo(BeNil())
		})
	})

	Describe("storing a key", func() {
		It("reads the key from piped input", func() {
			cmd, out := newCmd("  sk-or-test  \n")
			cmd.SetArgs([]string{"openrouter", "--config-dir", tmpDir})

			Expect(cmd.Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Stored"))

			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.GetKey("openrouter")).To(Equal("sk-or-test"))
		})

		It("warns about an unusual OpenRouter key", func() {
			cmd, out := newCmd("sk-proj-abc\n")
			cmd.SetArgs([]string{"openrouter", "--config-dir", tmpDir})

			Expect(cmd.Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("sk-or-"))
		})

		It("rejects an empty key", func() {
			cmd, _ := newCmd("   \n")
			cmd.SetArgs([]string{"openai", "--config-dir", tmpDir})

			Expect(cmd.Execute()).To(MatchError("API key cannot be empty"))
		})

		It("fails when nothing is piped", func() {
			cmd, _ := newCmd("")
			cmd.SetArgs([]string{"openai", "--config-dir", tmpDir})

			Expect(cmd.Execute()).To(MatchError("no input received on stdin"))
		})
	})

	Describe("--list flag", func() {
		It("shows no credentials when none stored", func() {
			cmd, out := newCmd("")
			cmd.SetArgs([]string{"--list", "--config-dir", tmpDir})

			Expect(cmd.Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("No stored credentials"))
		})

		It("lists stored credentials with their environment variable", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetKey("deepseek", "sk-test")).To(Succeed())

			cmd, out := newCmd("")
			cmd.SetArgs([]string{"--list", "--config-dir", tmpDir})

			Expect(cmd.Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("deepseek"))
			Expect(out.String()).To(ContainSubstring(credentials.EnvVarForProvider("deepseek")))
		})
	})

	Describe("--remove flag", func() {
		It("removes stored credentials", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetKey("openai", "sk-test")).To(Succeed())

			cmd, _ := newCmd("")
			cmd.SetArgs([]string{"--remove", "openai", "--config-dir", tmpDir})
			Expect(cmd.Execute()).To(Succeed())

			key, err := mgr.GetKey("openai")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(BeEmpty())
		})
	})

	Describe("provider argument validation", func() {
		It("returns error when no provider given", func() {
			cmd, _ := newCmd("")
			cmd.SetArgs([]string{})

			err := cmd.Execute()
			Expect(err).To(MatchError(ContainSubstring("provider argument required")))
		})

		It("returns error for unsupported provider", func() {
			cmd, _ := newCmd("sk-test\n")
			cmd.SetArgs([]string{"anthropic", "--config-dir", tmpDir})

			err := cmd.Execute()
			Expect(err).To(MatchError(ContainSubstring("unsupported provider")))
		})
	})

	Describe("shell completion", func() {
		It("provides provider name completions", func() {
			cmd := authcmder.NewAuthCmd()
			completions, directive := cmd.ValidArgsFunction(cmd, []string{}, "")
			Expect(completions).To(ConsistOf("deepseek", "groq", "openai", "openrouter"))
			Expect(directive).To(Equal(cobra.ShellCompDirectiveNoFileComp))
		})

		It("provides no completions after first arg", func() {
			cmd := authcmder.NewAuthCmd()
			completions, directive := cmd.ValidArgsFunction(cmd, []string{"openai"}, "")
			Expect(completions).To(BeNil())
			Expect(directive).To(Equal(cobra.ShellCompDirectiveNoFileComp))
		})
	})
})
