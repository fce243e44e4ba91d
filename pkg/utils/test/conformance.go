package testutils

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/storage"
)

// DescribeDriver registers the behavior every storage.Driver must have.
// newDriver is called once per spec and must return an empty store.
func DescribeDriver(newDriver func() storage.Driver) bool {
	return Describe("storage.Driver behavior", func() {
		var (
			driver storage.Driver
			ctx    context.Context
			base   time.Time
		)

		BeforeEach(func() {
			ctx = context.Background()
			base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			driver = newDriver()
			DeferCleanup(driver.Close)
		})

		Describe("Put", func() {
			It("stores a new generation", func() {
				isNew, err := driver.Put(ctx, NewTestGeneration("g1", "story", base))
				Expect(err).NotTo(HaveOccurred())
				Expect(isNew).To(BeTrue())
			})

			It("is a no-op for an existing ID", func() {
				_, err := driver.Put(ctx, NewTestGeneration("g1", "story", base))
				Expect(err).NotTo(HaveOccurred())

				changed := NewTestGeneration("g1", "poem", base)
				changed.Text = "overwritten"
				isNew, err := driver.Put(ctx, changed)
				Expect(err).NotTo(HaveOccurred())
				Expect(isNew).To(BeFalse())

				got, err := driver.Get(ctx, "g1")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Text).To(Equal("text for g1"))
			})

			It("rejects a nil generation", func() {
				_, err := driver.Put(ctx, nil)
				Expect(err).To(HaveOccurred())
			})
		})

		Describe("Get", func() {
			It("round trips every field", func() {
				gen := NewTestGeneration("g1", "story", base)
				gen.Status = llm.StatusFailed
				gen.Error = "upstream transport failed"
				_, err := driver.Put(ctx, gen)
				Expect(err).NotTo(HaveOccurred())

				got, err := driver.Get(ctx, "g1")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal(gen.ID))
				Expect(got.Kind).To(Equal(gen.Kind))
				Expect(got.Model).To(Equal(gen.Model))
				Expect(got.System).To(Equal(gen.System))
				Expect(got.Prompt).To(Equal(gen.Prompt))
				Expect(got.Text).To(Equal(gen.Text))
				Expect(got.Frames).To(Equal(gen.Frames))
				Expect(got.Status).To(Equal(llm.StatusFailed))
				Expect(got.Error).To(Equal(gen.Error))
				Expect(got.CreatedAt.Equal(gen.CreatedAt)).To(BeTrue())
				Expect(got.CompletedAt.Equal(gen.CompletedAt)).To(BeTrue())
			})

			It("returns NotFoundError for an unknown ID", func() {
				_, err := driver.Get(ctx, "missing")
				var notFound storage.NotFoundError
				Expect(errors.As(err, &notFound)).To(BeTrue())
				Expect(notFound.ID).To(Equal("missing"))
			})
		})

		Describe("List", func() {
			BeforeEach(func() {
				for i := range 6 {
					kind := "story"
					if i%2 == 1 {
						kind = "poem"
					}
					_, err := driver.Put(ctx, NewTestGeneration(fmt.Sprintf("g%d", i), kind, base.Add(time.Duration(i)*time.Minute)))
					Expect(err).NotTo(HaveOccurred())
				}
			})

			It("returns generations newest first", func() {
				gens, err := driver.List(ctx, storage.ListOptions{})
				Expect(err).NotTo(HaveOccurred())
				Expect(ids(gens)).To(Equal([]string{"g5", "g4", "g3", "g2", "g1", "g0"}))
			})

			It("filters by kind", func() {
				gens, err := driver.List(ctx, storage.ListOptions{Kind: "poem"})
				Expect(err).NotTo(HaveOccurred())
				Expect(ids(gens)).To(Equal([]string{"g5", "g3", "g1"}))
			})

			It("applies the limit", func() {
				gens, err := driver.List(ctx, storage.ListOptions{Kind: "story", Limit: 2})
				Expect(err).NotTo(HaveOccurred())
				Expect(ids(gens)).To(Equal([]string{"g4", "g2"}))
			})

			It("returns nothing for an unknown kind", func() {
				gens, err := driver.List(ctx, storage.ListOptions{Kind: "limerick"})
				Expect(err).NotTo(HaveOccurred())
				Expect(gens).To(BeEmpty())
			})
		})
	})
}

func ids(gens []*llm.Generation) []string {
	out := make([]string, len(gens))
	for i, g := range gens {
		out[i] = g.ID
	}
	return out
}
