package dotdir_test

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/dotdir"
)

var _ = Describe("dotdir.Manager history", func() {
	var (
		tmpDir string
		m      *dotdir.Manager
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-history-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns an empty history when no file exists", func() {
		entries, err := m.LoadHistory(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("keeps the newest entry first", func() {
		now := time.Now().UTC().Truncate(time.Second)
		Expect(m.AppendHistory(dotdir.HistoryEntry{ID: "one", Kind: "story", CreatedAt: now}, tmpDir)).To(Succeed())
		Expect(m.AppendHistory(dotdir.HistoryEntry{ID: "two", Kind: "poem", CreatedAt: now}, tmpDir)).To(Succeed())

		entries, err := m.LoadHistory(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].ID).To(Equal("two"))
		Expect(entries[1].ID).To(Equal("one"))
		Expect(entries[1].CreatedAt.Equal(now)).To(BeTrue())
	})

	It("trims the history to MaxHistory entries", func() {
		for i := range dotdir.MaxHistory + 5 {
			Expect(m.AppendHistory(dotdir.HistoryEntry{ID: fmt.Sprint(i)}, tmpDir)).To(Succeed())
		}

		entries, err := m.LoadHistory(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(dotdir.MaxHistory))
		Expect(entries[0].ID).To(Equal(fmt.Sprint(dotdir.MaxHistory + 4)))
	})

	It("returns an error for a corrupt history file", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "history.json"), []byte("not json"), 0o600)).To(Succeed())

		_, err := m.LoadHistory(tmpDir)
		Expect(err).To(HaveOccurred())
	})

	It("clears the history", func() {
		Expect(m.AppendHistory(dotdir.HistoryEntry{ID: "x"}, tmpDir)).To(Succeed())
		Expect(m.ClearHistory(tmpDir)).To(Succeed())
		Expect(m.ClearHistory(tmpDir)).To(Succeed())

		entries, err := m.LoadHistory(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})
})
