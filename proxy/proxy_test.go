package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/frame"
	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/logger"
	"github.com/papercomputeco/quill/pkg/prompt"
	"github.com/papercomputeco/quill/pkg/relay"
	"github.com/papercomputeco/quill/pkg/storage"
	"github.com/papercomputeco/quill/pkg/storage/inmemory"
	"github.com/papercomputeco/quill/pkg/upstream"
	"github.com/papercomputeco/quill/proxy/header"
)

var _ = Describe("Proxy", func() {
	var (
		provider *fakeProvider
		driver   *inmemory.Driver
		apiKey   string
		config   Config
	)

	BeforeEach(func() {
		provider = newFakeProvider(dataLine("Hello"), dataLine(" world"), "data: [DONE]\n\n")
		driver = inmemory.NewDriver()
		apiKey = "sk-test"
		config = Config{
			ListenAddr: ":0",
			Settings: Settings{
				Prompt: prompt.Options{Model: "gpt-test", MaxTokens: 256},
			},
		}
	})

	newProxy := func() *Proxy {
		config.Upstream = upstream.New(upstream.Config{BaseURL: provider.server.URL, APIKey: apiKey}, logger.Nop())
		p, err := New(config, driver, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(p.Close)
		return p
	}

	post := func(p *Proxy, path, body string, headers ...string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		for i := 0; i+1 < len(headers); i += 2 {
			req.Header.Set(headers[i], headers[i+1])
		}
		resp, err := p.server.Test(req, 5000)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	readBody := func(resp *http.Response) string {
		b, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return string(b)
	}

	decodeError := func(resp *http.Response) ErrorResponse {
		var e ErrorResponse
		Expect(json.NewDecoder(resp.Body).Decode(&e)).To(Succeed())
		return e
	}

	stored := func(id string) func() (*llm.Generation, error) {
		return func() (*llm.Generation, error) {
			return driver.Get(context.Background(), id)
		}
	}

	It("requires an upstream", func() {
		_, err := New(Config{}, driver, logger.Nop())
		Expect(err).To(MatchError("upstream is required"))
	})

	Describe("streaming a generation", func() {
		It("relays plain deltas as frames and stores the generation", func() {
			p := newProxy()
			resp := post(p, "/api/generate/story", `{"prompt":"a fox in winter","genre":"fable"}`)

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/plain; charset=utf-8"))
			Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
			Expect(resp.Header.Get("X-Content-Type-Options")).To(Equal("nosniff"))
			Expect(readBody(resp)).To(Equal("0:\"Hello\"\n0:\" world\"\n"))

			id := resp.Header.Get(header.GenerationIDHeader)
			Expect(id).NotTo(BeEmpty())
			Eventually(stored(id)).Should(SatisfyAll(
				HaveField("Kind", "story"),
				HaveField("Model", "gpt-test"),
				HaveField("Text", "Hello world"),
				HaveField("Frames", 2),
				HaveField("Status", llm.StatusComplete),
			))
		})

		It("sends a streaming chat request built from the form", func() {
			p := newProxy()
			post(p, "/api/generate/poem", `{"prompt":"the sea","tone":"wistful"}`,
				"X-Request-Id", "req-7", "Cookie", "session=secret")

			req, hdr := provider.lastRequest()
			Expect(req.Model).To(Equal("gpt-test"))
			Expect(req.Stream).To(BeTrue())
			Expect(*req.MaxTokens).To(Equal(256))
			Expect(req.Prompt()).To(ContainSubstring("the sea"))
			Expect(req.System()).NotTo(BeEmpty())

			Expect(hdr.Get("Authorization")).To(Equal("Bearer sk-test"))
			Expect(hdr.Get("X-Request-Id")).To(Equal("req-7"))
			Expect(hdr.Get("Cookie")).To(BeEmpty())
		})

		It("hides reasoning spans from the client", func() {
			provider.chunks = []string{dataLine("before<think>hidden</think>after"), "data: [DONE]\n\n"}
			p := newProxy()

			resp := post(p, "/api/backstory", `{"prompt":"a retired knight"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body := readBody(resp)
			Expect(body).To(Equal("0:\"before\"\n0:\"after\"\n"))
			Expect(body).NotTo(ContainSubstring("hidden"))
		})

		It("serves every kind under its alias", func() {
			p := newProxy()
			for _, kind := range prompt.Kinds() {
				body := `{"prompt":"dragons"}`
				if kind == prompt.KindFanfic {
					body = `{"prompt":"dragons","fandom":"Earthsea"}`
				}
				resp := post(p, "/api/"+kind.String(), body)
				Expect(resp.StatusCode).To(Equal(http.StatusOK), kind.String())
			}
			Expect(provider.requestCount()).To(Equal(len(prompt.Kinds())))
		})

		It("decodes back to the upstream text on the client side", func() {
			provider.chunks = []string{dataLine("line one\n"), dataLine("\t\"quoted\" \\ slash"), "data: [DONE]\n\n"}
			p := newProxy()

			resp := post(p, "/api/story", `{"prompt":"x"}`)
			var text strings.Builder
			for _, line := range strings.SplitAfter(readBody(resp), "\n") {
				if line == "" {
					continue
				}
				_, t, err := frame.Decode(line)
				Expect(err).NotTo(HaveOccurred())
				text.WriteString(t)
			}
			Expect(text.String()).To(Equal("line one\n\t\"quoted\" \\ slash"))
		})

		It("stores a failed generation when the upstream breaks mid-stream", func() {
			provider.chunks = []string{dataLine("partial")}
			provider.truncate = true
			p := newProxy()

			req := httptest.NewRequest(http.MethodPost, "/api/story", strings.NewReader(`{"prompt":"x"}`))
			// The chunked body is cut short, so the test client may see an
			// error instead of a response.
			if resp, err := p.server.Test(req, 5000); err == nil {
				resp.Body.Close()
			}

			Eventually(func() ([]*llm.Generation, error) {
				return driver.List(context.Background(), storage.ListOptions{})
			}).Should(ConsistOf(SatisfyAll(
				HaveField("Text", "partial"),
				HaveField("Status", llm.StatusFailed),
				HaveField("Error", ContainSubstring("upstream")),
			)))
		})

		It("applies reloaded settings to new requests", func() {
			provider.chunks = []string{dataLine("a<think>b</think>c<r>d</r>e"), "data: [DONE]\n\n"}
			p := newProxy()

			p.Reload(Settings{
				Relay:  relay.Config{OpenMarker: "<r>", CloseMarker: "</r>"},
				Prompt: prompt.Options{Model: "gpt-reloaded"},
			})

			resp := post(p, "/api/story", `{"prompt":"x"}`)
			Expect(readBody(resp)).To(Equal("0:\"a<think>b</think>c\"\n0:\"e\"\n"))

			req, _ := provider.lastRequest()
			Expect(req.Model).To(Equal("gpt-reloaded"))
			Expect(req.MaxTokens).To(BeNil())
		})
	})

	Describe("failures before the stream starts", func() {
		It("returns the upstream status as a structured error", func() {
			provider.status = http.StatusInternalServerError
			provider.body = `{"error":{"message":"model overloaded"}}`
			p := newProxy()

			resp := post(p, "/api/story", `{"prompt":"x"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("application/json"))
			Expect(decodeError(resp)).To(Equal(ErrorResponse{Error: "model overloaded", Status: 500}))

			Consistently(func() ([]*llm.Generation, error) {
				return driver.List(context.Background(), storage.ListOptions{})
			}, 100*time.Millisecond).Should(BeEmpty())
		})

		It("passes through other rejection statuses", func() {
			provider.status = http.StatusTooManyRequests
			provider.body = `{"error":{"message":"rate limited"}}`
			p := newProxy()

			resp := post(p, "/api/story", `{"prompt":"x"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusTooManyRequests))
			Expect(decodeError(resp).Error).To(Equal("rate limited"))
		})

		It("reports a missing API key as a configuration error", func() {
			apiKey = ""
			p := newProxy()

			resp := post(p, "/api/story", `{"prompt":"x"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(decodeError(resp).Error).To(ContainSubstring("no API key configured"))
			Expect(provider.requestCount()).To(BeZero())
		})

		It("reports an unreachable upstream as a bad gateway", func() {
			p := newProxy()
			provider.server.Close()

			resp := post(p, "/api/story", `{"prompt":"x"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(decodeError(resp)).To(Equal(ErrorResponse{Error: "upstream request failed", Status: 502}))
		})

		It("rejects an unknown kind", func() {
			p := newProxy()

			resp := post(p, "/api/generate/limerick", `{"prompt":"x"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(decodeError(resp).Error).To(ContainSubstring("limerick"))
		})

		DescribeTable("rejects invalid input without calling the upstream",
			func(path, body, field string) {
				p := newProxy()

				resp := post(p, path, body)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeError(resp).Error).To(ContainSubstring(field))
				Expect(provider.requestCount()).To(BeZero())
			},
			Entry("malformed JSON", "/api/story", `{"prompt":`, "invalid request body"),
			Entry("missing prompt", "/api/story", `{"genre":"noir"}`, "prompt"),
			Entry("fanfic without fandom", "/api/fanfic", `{"prompt":"x"}`, "fandom"),
			Entry("too many titles", "/api/titles", `{"prompt":"x","count":99}`, "count"),
		)

		Context("with a verifier", func() {
			BeforeEach(func() {
				config.Verifier = rejectingVerifier{}
			})

			It("answers 403 and never contacts the upstream", func() {
				p := newProxy()

				resp := post(p, "/api/story", `{"prompt":"x","token":"bot"}`)
				Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
				Expect(decodeError(resp)).To(Equal(ErrorResponse{Error: "verification failed", Status: 403}))
				Expect(provider.requestCount()).To(BeZero())
			})

			It("streams once the token is accepted", func() {
				p := newProxy()

				resp := post(p, "/api/story", `{"prompt":"x","token":"human"}`)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(readBody(resp)).To(Equal("0:\"Hello\"\n0:\" world\"\n"))
			})
		})
	})

	It("lists the supported kinds", func() {
		p := newProxy()

		resp, err := p.server.Test(httptest.NewRequest(http.MethodGet, "/api/kinds", nil))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		var out struct{ Kinds []string }
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		Expect(out.Kinds).To(Equal([]string{"story", "fanfic", "poem", "plot", "backstory", "titles"}))
	})
})

var _ = Describe("stream", func() {
	var (
		driver *inmemory.Driver
		p      *Proxy
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		var err error
		p, err = New(Config{Upstream: upstream.New(upstream.Config{}, logger.Nop())}, driver, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(p.Close)
	})

	body := func(s string) io.ReadCloser {
		return io.NopCloser(bytes.NewBufferString(s))
	}

	It("marks the generation cancelled when the client went away", func() {
		pr, pw := io.Pipe()
		Expect(pr.Close()).To(Succeed())

		gen := &llm.Generation{ID: "gone", Kind: "story", CreatedAt: time.Now()}
		p.stream(context.Background(), body(dataLine("never seen")), pw, relay.Config{}, gen)

		Expect(gen.Status).To(Equal(llm.StatusCancelled))
		Expect(gen.Text).To(BeEmpty())
		Eventually(func() (*llm.Generation, error) {
			return driver.Get(context.Background(), "gone")
		}).Should(HaveField("Status", llm.StatusCancelled))
	})

	It("marks the generation cancelled when the server shuts the stream down", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		pr, pw := io.Pipe()
		go func() { _, _ = io.Copy(io.Discard, pr) }()

		gen := &llm.Generation{ID: "stopped", Kind: "story", CreatedAt: time.Now()}
		p.stream(ctx, &blockingBody{done: make(chan struct{})}, pw, relay.Config{}, gen)

		Expect(gen.Status).To(Equal(llm.StatusCancelled))
		Expect(gen.Error).To(ContainSubstring("context canceled"))
	})

	It("stores an in-flight generation before Close returns", func() {
		ctx, cancel := context.WithCancel(p.ctx)
		pr, pw := io.Pipe()
		go func() { _, _ = io.Copy(io.Discard, pr) }()

		gen := &llm.Generation{ID: "shutdown", Kind: "plot", CreatedAt: time.Now()}
		p.startStream(ctx, cancel, &blockingBody{done: make(chan struct{})}, pw, relay.Config{}, gen)

		Expect(p.Close()).To(Succeed())

		stored, err := driver.Get(context.Background(), "shutdown")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Status).To(Equal(llm.StatusCancelled))
	})

	It("completes when the upstream ends without a sentinel", func() {
		pr, pw := io.Pipe()
		out := make(chan string, 1)
		go func() {
			b, _ := io.ReadAll(pr)
			out <- string(b)
		}()

		gen := &llm.Generation{ID: "eof", Kind: "poem", CreatedAt: time.Now()}
		p.stream(context.Background(), body(dataLine("tail")), pw, relay.Config{}, gen)

		Expect(gen.Status).To(Equal(llm.StatusComplete))
		Expect(gen.Text).To(Equal("tail"))
		Expect(gen.Duration()).To(BeNumerically(">=", 0))
		Eventually(out).Should(Receive(Equal("0:\"tail\"\n")))
	})
})

// blockingBody blocks reads until closed.
type blockingBody struct {
	done chan struct{}
}

func (b *blockingBody) Read([]byte) (int, error) {
	<-b.done
	return 0, io.ErrClosedPipe
}

func (b *blockingBody) Close() error {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
	return nil
}
