package header

import (
	"net/http"
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("UpstreamHeaders", func() {
	var (
		app *fiber.App
		hh  *Handler
		got http.Header
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler()
		got = nil

		app.Post("/test", func(c *fiber.Ctx) error {
			got = hh.UpstreamHeaders(c)
			return c.SendStatus(fiber.StatusOK)
		})
	})

	AfterEach(func() {
		_ = app.Shutdown()
	})

	send := func(h map[string]string) {
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		for k, v := range h {
			req.Header.Set(k, v)
		}
		resp, err := app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
	}

	It("forwards the allowed headers", func() {
		send(map[string]string{
			"Accept-Language": "fr-CA",
			"User-Agent":      "quill-test/1.0",
			"X-Request-Id":    "req-42",
		})

		Expect(got.Get("Accept-Language")).To(Equal("fr-CA"))
		Expect(got.Get("User-Agent")).To(Equal("quill-test/1.0"))
		Expect(got.Get("X-Request-Id")).To(Equal("req-42"))
	})

	It("keeps credentials and cookies on the client leg", func() {
		send(map[string]string{
			"Authorization": "Bearer browser-token",
			"Cookie":        "session=abc",
			"Content-Type":  "application/json",
			"Connection":    "keep-alive",
		})

		Expect(got).NotTo(HaveKey("Authorization"))
		Expect(got).NotTo(HaveKey("Cookie"))
		Expect(got).NotTo(HaveKey("Content-Type"))
		Expect(got).NotTo(HaveKey("Connection"))
	})

	It("matches header names case-insensitively", func() {
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Header["x-request-id"] = []string{"lower"}
		resp, err := app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()

		Expect(got.Get("X-Request-Id")).To(Equal("lower"))
	})
})

var _ = Describe("SetStreamResponseHeaders", func() {
	It("sets the frame stream headers and the generation id", func() {
		app := fiber.New()
		DeferCleanup(app.Shutdown)

		app.Get("/test", func(c *fiber.Ctx) error {
			NewHandler().SetStreamResponseHeaders(c, "gen-1")
			return c.SendString(`0:"hi"` + "\n")
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.Header.Get("Content-Type")).To(Equal("text/plain; charset=utf-8"))
		Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
		Expect(resp.Header.Get("X-Content-Type-Options")).To(Equal("nosniff"))
		Expect(resp.Header.Get(GenerationIDHeader)).To(Equal("gen-1"))
	})
})
