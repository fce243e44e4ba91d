package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/eventstream"
	"github.com/papercomputeco/quill/pkg/llm"
)

var _ = Describe("Event", func() {
	var gen *llm.Generation

	BeforeEach(func() {
		now := time.Unix(1735689600, 0).UTC()
		gen = &llm.Generation{
			ID:          "gen_123",
			Kind:        "poem",
			Model:       "gpt-4o-mini",
			Prompt:      "the sea",
			Text:        "salt and silver",
			Frames:      2,
			Status:      llm.StatusComplete,
			CreatedAt:   now.Add(-2 * time.Second),
			CompletedAt: now,
		}
	})

	It("builds a versioned event around a generation", func() {
		event := eventstream.NewGenerationCompletedEvent(gen, eventstream.EventSource{Service: "quill"})

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal(eventstream.EventTypeGenerationCompleted))
		Expect(event.EventID).NotTo(BeEmpty())
		Expect(event.DurationMs).To(Equal(int64(2000)))
		Expect(event.Generation.ID).To(Equal("gen_123"))
	})

	It("gives every event a distinct id", func() {
		a := eventstream.NewGenerationCompletedEvent(gen, eventstream.EventSource{Service: "quill"})
		b := eventstream.NewGenerationCompletedEvent(gen, eventstream.EventSource{Service: "quill"})
		Expect(a.EventID).NotTo(Equal(b.EventID))
	})

	It("marshals with expected top-level keys", func() {
		payload, err := json.Marshal(eventstream.NewGenerationCompletedEvent(gen, eventstream.EventSource{Service: "quill"}))
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("generation"))
		Expect(got).To(HaveKey("duration_ms"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeGenerationCompleted).To(Equal("quill.generation.completed"))
	})
})
