package verify_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/logger"
	"github.com/papercomputeco/quill/pkg/verify"
)

var _ = Describe("Turnstile", func() {
	var (
		server   *httptest.Server
		response string
		status   int
		gotForm  map[string]string
	)

	BeforeEach(func() {
		response = `{"success":true}`
		status = http.StatusOK
		gotForm = nil

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.ParseForm()).To(Succeed())
			gotForm = map[string]string{
				"secret":   r.PostForm.Get("secret"),
				"response": r.PostForm.Get("response"),
				"remoteip": r.PostForm.Get("remoteip"),
			}
			w.WriteHeader(status)
			io.WriteString(w, response)
		}))
		DeferCleanup(server.Close)
	})

	verifier := func() *verify.Turnstile {
		return verify.NewTurnstile("shh", server.URL, logger.Nop())
	}

	It("accepts a token siteverify approves", func() {
		Expect(verifier().Verify(context.Background(), "tok", "203.0.113.7")).To(Succeed())
		Expect(gotForm).To(Equal(map[string]string{
			"secret":   "shh",
			"response": "tok",
			"remoteip": "203.0.113.7",
		}))
	})

	It("rejects a token siteverify refuses", func() {
		response = `{"success":false,"error-codes":["invalid-input-response"]}`

		err := verifier().Verify(context.Background(), "tok", "")
		Expect(err).To(MatchError(verify.ErrVerificationFailed))
		Expect(err.Error()).To(ContainSubstring("invalid-input-response"))
	})

	It("rejects a missing token without calling siteverify", func() {
		err := verifier().Verify(context.Background(), "  ", "")
		Expect(err).To(MatchError(verify.ErrVerificationFailed))
		Expect(gotForm).To(BeNil())
	})

	It("fails closed when siteverify errors", func() {
		status = http.StatusInternalServerError
		response = "oops"

		Expect(verifier().Verify(context.Background(), "tok", "")).To(MatchError(verify.ErrVerificationFailed))
	})

	It("fails closed on an unreadable answer", func() {
		response = "not json"

		Expect(verifier().Verify(context.Background(), "tok", "")).To(MatchError(verify.ErrVerificationFailed))
	})
})

var _ = Describe("Nop", func() {
	It("accepts everything", func() {
		Expect(verify.Nop{}.Verify(context.Background(), "", "")).To(Succeed())
	})
})
