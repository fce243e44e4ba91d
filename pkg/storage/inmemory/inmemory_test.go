package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/storage"
	"github.com/papercomputeco/quill/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/quill/pkg/utils/test"
)

var _ = testutils.DescribeDriver(func() storage.Driver {
	return inmemory.NewDriver()
})

var _ = Describe("Driver", func() {
	It("returns copies that callers can mutate freely", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()

		gen := testutils.NewTestGeneration("g1", "story", time.Now())
		_, err := d.Put(ctx, gen)
		Expect(err).NotTo(HaveOccurred())
		gen.Text = "changed after put"

		got, err := d.Get(ctx, "g1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Text).To(Equal("text for g1"))

		got.Text = "changed after get"
		again, err := d.Get(ctx, "g1")
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Text).To(Equal("text for g1"))
	})
})
