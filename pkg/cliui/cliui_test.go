package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/cliui"
)

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below one second", func() {
		Expect(cliui.FormatDuration(42 * time.Millisecond)).To(Equal("42ms"))
	})

	It("uses seconds with one decimal above one second", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Step", func() {
	It("returns the error from fn and prints the message", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "opening store", func() error {
			return errors.New("boom")
		})

		Expect(err).To(MatchError("boom"))
		Expect(buf.String()).To(ContainSubstring("opening store"))
		Expect(buf.String()).To(HaveSuffix("\n"))
	})

	It("marks success", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("x"))).To(Equal(cliui.FailMark))
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("keeps the text of the document", func() {
		out, err := cliui.RenderMarkdown("# The Fox\n\nOnce upon a time.")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Once upon a time."))
	})
})
