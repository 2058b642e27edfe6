package dispatch_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/dispatch"
	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/resilience"
	"github.com/papercomputeco/spool/pkg/tape"
	"github.com/papercomputeco/spool/pkg/tape/inmemory"
)

var _ = Describe("Dispatcher", func() {
	var (
		ctx     context.Context
		logs    *bytes.Buffer
		lenient *resilience.Policy
		strict  *resilience.Policy
		devel   *resilience.Policy
	)

	newDispatcher := func(cfg dispatch.Config, policy *resilience.Policy) *dispatch.Dispatcher {
		d, err := dispatch.New(cfg, policy, logger.New(logger.WithWriter(GinkgoWriter)))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(d.Close)
		return d
	}

	BeforeEach(func() {
		ctx = context.Background()
		logs = &bytes.Buffer{}
		policyLog := logger.New(logger.WithWriter(logs), logger.WithJSON(true))
		lenient = resilience.New(resilience.Config{Environment: resilience.EnvProduction}, policyLog)
		strict = resilience.New(resilience.Config{Environment: resilience.EnvProduction, StrictParsing: true}, policyLog)
		devel = resilience.New(resilience.Config{Environment: resilience.EnvDevelopment}, policyLog)
	})

	Describe("Dispatch", func() {
		It("translates the OpenAI worked example", func() {
			d := newDispatcher(dispatch.Config{}, lenient)
			srv := sseServer(workedExample...)

			s, err := d.Dispatch(ctx, openaiAccess(srv), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			actions := collect(s)
			Expect(kinds(actions)).To(Equal([]string{"text", "text", "set", "parser-close"}))
			Expect(actions[0]).To(Equal(llm.Text{Fragment: "Hel"}))
			Expect(actions[1]).To(Equal(llm.Text{Fragment: "lo"}))
			Expect(*actions[2].(llm.Set).Stats.OutTokens).To(Equal(2))
			Expect(*actions[2].(llm.Set).Stats.TimeOuter).To(BeNumerically(">=", 0))
			expectTerminated(actions)
		})

		It("returns nothing after the stream has ended", func() {
			d := newDispatcher(dispatch.Config{}, lenient)
			s, err := d.Dispatch(ctx, openaiAccess(sseServer(workedExample...)), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			collect(s)
			_, ok := s.Next()
			Expect(ok).To(BeFalse())
		})

		It("assigns a unique id to every dispatch", func() {
			d := newDispatcher(dispatch.Config{}, lenient)
			srv := sseServer(workedExample...)

			a, err := d.Dispatch(ctx, openaiAccess(srv), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer a.Close()
			b, err := d.Dispatch(ctx, openaiAccess(srv), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer b.Close()

			Expect(a.ID()).NotTo(BeEmpty())
			Expect(a.ID()).NotTo(Equal(b.ID()))
		})

		It("sends the patched body and credentials upstream", func() {
			var (
				body    map[string]any
				headers http.Header
				path    string
			)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				headers = r.Header.Clone()
				raw, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(raw, &body)
				fmt.Fprint(w, "data: [DONE]\n\n")
			}))
			DeferCleanup(srv.Close)

			d := newDispatcher(dispatch.Config{}, lenient)
			access := openaiAccess(srv)
			access.Headers = map[string]string{"OpenAI-Organization": "org-1", "Host": "evil.example"}

			s, err := d.Dispatch(ctx, access, chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()
			expectTerminated(collect(s))

			Expect(path).To(Equal("/v1/chat/completions"))
			Expect(body).To(HaveKeyWithValue("stream", true))
			Expect(body).To(HaveKeyWithValue("stream_options", HaveKeyWithValue("include_usage", true)))
			Expect(headers.Get("Authorization")).To(Equal("Bearer sk-test"))
			Expect(headers.Get("OpenAI-Organization")).To(Equal("org-1"))
			Expect(headers.Get("User-Agent")).To(HavePrefix("spool/"))
		})

		It("frames ollama NDJSON", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/x-ndjson")
				fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":"Hi"},"done":false}`)
				fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":4,"eval_count":1,"eval_duration":500000000,"total_duration":1000000000}`)
			}))
			DeferCleanup(srv.Close)

			d := newDispatcher(dispatch.Config{}, lenient)
			s, err := d.Dispatch(ctx, llm.Access{Vendor: "ollama", Endpoint: srv.URL}, llm.GenerateRequest{
				Model: "llama3",
				Body:  []byte(`{"model":"llama3","messages":[]}`),
			})
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			actions := collect(s)
			Expect(actions).To(ContainElement(llm.Text{Fragment: "Hi"}))
			expectTerminated(actions)
		})

		It("supports Next directly", func() {
			d := newDispatcher(dispatch.Config{}, lenient)
			s, err := d.Dispatch(ctx, openaiAccess(sseServer(workedExample...)), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			a, ok := s.Next()
			Expect(ok).To(BeTrue())
			Expect(a).To(Equal(llm.Text{Fragment: "Hel"}))
		})
	})

	Describe("unsupported vendors", func() {
		It("fails synchronously without network I/O", func() {
			d := newDispatcher(dispatch.Config{}, lenient)

			s, err := d.Dispatch(ctx, llm.Access{Vendor: "acme"}, chatBody)
			Expect(s).To(BeNil())

			var uv *dispatch.UnsupportedVendorError
			Expect(errors.As(err, &uv)).To(BeTrue())
			Expect(uv.Vendor).To(Equal("acme"))
			Expect(llm.IssueFromError(err).Symbol).To(Equal("dispatch-unsupported-vendor"))
		})
	})

	Describe("resilience", func() {
		weird := []string{
			`{"choices":[{"index":0,"delta":{"content":"ok"},"finish_reason":"weird_new_code"}],"usage":{"completion_tokens":1}}`,
			`[DONE]`,
		}

		It("logs and completes in lenient mode", func() {
			d := newDispatcher(dispatch.Config{}, lenient)
			s, err := d.Dispatch(ctx, openaiAccess(sseServer(weird...)), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			actions := collect(s)
			Expect(issues(actions)).To(BeEmpty())
			Expect(actions[0]).To(Equal(llm.Text{Fragment: "ok"}))
			expectTerminated(actions)
			Expect(logs.String()).To(ContainSubstring("weird_new_code"))
			Expect(logs.String()).To(ContainSubstring(`"level":"WARN"`))
		})

		It("ends with an issue in strict mode", func() {
			d := newDispatcher(dispatch.Config{}, strict)
			s, err := d.Dispatch(ctx, openaiAccess(sseServer(weird...)), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			actions := collect(s)
			Expect(kinds(actions)).To(Equal([]string{"text", "issue", "parser-close"}))
			Expect(issues(actions)[0].Symbol).To(Equal("wire-unknown-value"))
			Expect(issues(actions)[0].Message).To(Equal("unknown value for finish_reason in chunk"))
			Expect(issues(actions)[0].Message).NotTo(ContainSubstring("weird_new_code"))
		})

		It("names the unknown value in development", func() {
			d := newDispatcher(dispatch.Config{}, devel)
			s, err := d.Dispatch(ctx, openaiAccess(sseServer(weird...)), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			issue := issues(collect(s))[0]
			Expect(issue.Symbol).To(Equal("wire-unknown-value"))
			Expect(issue.Message).To(HavePrefix("unknown value for finish_reason in chunk: weird_new_code"))
		})

		It("degrades a malformed usage block in lenient mode", func() {
			d := newDispatcher(dispatch.Config{}, lenient)
			s, err := d.Dispatch(ctx, openaiAccess(sseServer(
				`{"choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
				`{"choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}],"usage":{"prompt_tokens":"n/a"}}`,
				`[DONE]`,
			)), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			actions := collect(s)
			Expect(issues(actions)).To(BeEmpty())
			Expect(actions[:2]).To(Equal([]llm.Action{llm.Text{Fragment: "Hel"}, llm.Text{Fragment: "lo"}}))
			expectTerminated(actions)
			Expect(logs.String()).To(ContainSubstring("usage.prompt_tokens"))
		})

		It("ends with an issue on a malformed event", func() {
			d := newDispatcher(dispatch.Config{}, lenient)
			s, err := d.Dispatch(ctx, openaiAccess(sseServer(`{"choices":[`)), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			actions := collect(s)
			Expect(kinds(actions)).To(Equal([]string{"issue", "parser-close"}))
			Expect(issues(actions)[0].Symbol).To(Equal("wire-malformed-event"))
		})

		It("reports a body that ends early as truncated", func() {
			d := newDispatcher(dispatch.Config{}, lenient)
			s, err := d.Dispatch(ctx, openaiAccess(sseServer(workedExample[0])), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			actions := collect(s)
			Expect(kinds(actions)).To(Equal([]string{"text", "issue", "parser-close"}))
			Expect(issues(actions)[0].Symbol).To(Equal("dispatch-truncated"))
		})

		It("adds a payload excerpt in development", func() {
			d := newDispatcher(dispatch.Config{}, devel)
			s, err := d.Dispatch(ctx, openaiAccess(sseServer(`{"choices":[`)), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			Expect(issues(collect(s))[0].Message).To(ContainSubstring(`upstream excerpt: data: {"choices":[`))
		})
	})

	Describe("transport failures", func() {
		It("reports a connection reset as one issue then close", func() {
			d := newDispatcher(dispatch.Config{}, lenient)
			s, err := d.Dispatch(ctx, openaiAccess(resetServer(workedExample[:2]...)), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			actions := collect(s)
			Expect(kinds(actions)).To(Equal([]string{"text", "text", "issue", "parser-close"}))
			Expect(issues(actions)).To(HaveLen(1))
			Expect(issues(actions)[0].Symbol).To(Equal("dispatch-read-error"))
		})

		It("reports an unreachable upstream as a fetch error", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			url := srv.URL
			srv.Close()

			d := newDispatcher(dispatch.Config{}, lenient)
			s, err := d.Dispatch(ctx, llm.Access{Vendor: "openai", Endpoint: url}, chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			actions := collect(s)
			Expect(kinds(actions)).To(Equal([]string{"issue", "parser-close"}))
			Expect(issues(actions)[0].Symbol).To(Equal("dispatch-fetch-error"))
			Expect(issues(actions)[0].Message).NotTo(ContainSubstring(url))
		})

		It("reports an invalid endpoint as a fetch error", func() {
			d := newDispatcher(dispatch.Config{}, lenient)
			s, err := d.Dispatch(ctx, llm.Access{Vendor: "openai", Endpoint: "ftp://nope"}, chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			actions := collect(s)
			Expect(issues(actions)[0].Symbol).To(Equal("dispatch-fetch-error"))
			expectTerminated(actions)
		})

		Context("with a non-2xx response", func() {
			var srv *httptest.Server

			BeforeEach(func() {
				srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
				}))
				DeferCleanup(srv.Close)
			})

			It("summarises the vendor error", func() {
				d := newDispatcher(dispatch.Config{}, lenient)
				s, err := d.Dispatch(ctx, openaiAccess(srv), chatBody)
				Expect(err).NotTo(HaveOccurred())
				defer s.Close()

				actions := collect(s)
				Expect(kinds(actions)).To(Equal([]string{"issue", "parser-close"}))

				issue := issues(actions)[0]
				Expect(issue.Symbol).To(Equal("dispatch-http-error"))
				Expect(issue.Message).To(ContainSubstring("401"))
				Expect(issue.Message).To(ContainSubstring("Incorrect API key provided"))
				Expect(issue.Message).NotTo(ContainSubstring(srv.URL))
				Expect(issue.Message).NotTo(ContainSubstring("invalid_request_error"))
			})

			It("includes the URL and body in development", func() {
				d := newDispatcher(dispatch.Config{}, devel)
				s, err := d.Dispatch(ctx, openaiAccess(srv), chatBody)
				Expect(err).NotTo(HaveOccurred())
				defer s.Close()

				issue := issues(collect(s))[0]
				Expect(issue.Message).To(ContainSubstring(srv.URL + "/v1/chat/completions"))
				Expect(issue.Message).To(ContainSubstring("invalid_request_error"))
			})
		})

		It("cancels a silent upstream after the idle timeout", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprintf(w, "data: %s\n\n", workedExample[0])
				w.(http.Flusher).Flush()
				<-r.Context().Done()
			}))
			DeferCleanup(srv.Close)

			d := newDispatcher(dispatch.Config{IdleTimeout: 100 * time.Millisecond}, lenient)
			s, err := d.Dispatch(ctx, openaiAccess(srv), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			actions := collect(s)
			Expect(kinds(actions)).To(Equal([]string{"text", "issue", "parser-close"}))
			Expect(issues(actions)[0].Symbol).To(Equal("dispatch-idle-timeout"))
		})

		It("keeps a slow but steady upstream alive", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				for _, p := range workedExample {
					time.Sleep(60 * time.Millisecond)
					fmt.Fprintf(w, "data: %s\n\n", p)
					w.(http.Flusher).Flush()
				}
			}))
			DeferCleanup(srv.Close)

			d := newDispatcher(dispatch.Config{IdleTimeout: 150 * time.Millisecond}, lenient)
			s, err := d.Dispatch(ctx, openaiAccess(srv), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			Expect(issues(collect(s))).To(BeEmpty())
		})
	})

	Describe("cancellation", func() {
		It("returns no action after cancellation is observed", func() {
			d := newDispatcher(dispatch.Config{QueueSize: 2}, lenient)
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()

			s, err := d.Dispatch(cctx, openaiAccess(endlessServer(5*time.Millisecond)), chatBody)
			Expect(err).NotTo(HaveOccurred())

			for range 3 {
				_, ok := s.Next()
				Expect(ok).To(BeTrue())
			}

			// Let the producer fill the queue before cancelling.
			time.Sleep(50 * time.Millisecond)
			cancel()

			for range 5 {
				_, ok := s.Next()
				Expect(ok).To(BeFalse())
			}
		})

		It("pauses the upstream read while the queue is full", func() {
			const frames, frameSize = 100, 32 * 1024
			event := fmt.Sprintf("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"%s\"}}]}\n\n", strings.Repeat("x", frameSize))

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				for range frames {
					if _, err := io.WriteString(w, event); err != nil {
						return
					}
					w.(http.Flusher).Flush()
				}
			}))
			DeferCleanup(srv.Close)

			read := &atomic.Int64{}
			client := &http.Client{Transport: countingTransport{read: read}}
			d := newDispatcher(dispatch.Config{QueueSize: 2, HTTPClient: client}, lenient)

			s, err := d.Dispatch(ctx, openaiAccess(srv), chatBody)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			// Two queued actions, one held by the producer and the reader's
			// lookahead buffer.
			limit := int64(8 * len(event))
			Eventually(read.Load).Should(BeNumerically(">=", 3*len(event)))
			Consistently(read.Load, 200*time.Millisecond).Should(BeNumerically("<=", limit))

			for range 10 {
				a, ok := s.Next()
				Expect(ok).To(BeTrue())
				Expect(a.Kind()).To(Equal("text"))
			}
			Eventually(read.Load).Should(BeNumerically(">", limit))
			Consistently(read.Load, 200*time.Millisecond).Should(BeNumerically("<", int64(frames*len(event))))
		})

		It("closes the stream when a range loop breaks", func() {
			done := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer close(done)
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprintf(w, "data: %s\n\n", workedExample[0])
				w.(http.Flusher).Flush()
				<-r.Context().Done()
			}))
			DeferCleanup(srv.Close)

			d := newDispatcher(dispatch.Config{}, lenient)
			s, err := d.Dispatch(ctx, openaiAccess(srv), chatBody)
			Expect(err).NotTo(HaveOccurred())

			for a := range s.All() {
				Expect(a).To(Equal(llm.Text{Fragment: "Hel"}))
				break
			}
			Eventually(done).Should(BeClosed())

			_, ok := s.Next()
			Expect(ok).To(BeFalse())
		})

		It("stops the upstream on Close", func() {
			done := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer close(done)
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprintf(w, "data: %s\n\n", workedExample[0])
				w.(http.Flusher).Flush()
				<-r.Context().Done()
			}))
			DeferCleanup(srv.Close)

			d := newDispatcher(dispatch.Config{}, lenient)
			s, err := d.Dispatch(ctx, openaiAccess(srv), chatBody)
			Expect(err).NotTo(HaveOccurred())

			_, ok := s.Next()
			Expect(ok).To(BeTrue())

			s.Close()
			Eventually(done).Should(BeClosed())

			_, ok = s.Next()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("recording", func() {
		It("records a tape of every completed dispatch", func() {
			rec := inmemory.NewDriver()
			d, err := dispatch.New(dispatch.Config{Recorder: rec}, lenient, logger.New(logger.WithWriter(GinkgoWriter)))
			Expect(err).NotTo(HaveOccurred())

			s, err := d.Dispatch(ctx, openaiAccess(sseServer(workedExample...)), chatBody)
			Expect(err).NotTo(HaveOccurred())
			collect(s)
			s.Close()
			d.Close()

			t, err := rec.Get(ctx, s.ID())
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Vendor).To(Equal("openai"))
			Expect(t.Model).To(Equal("gpt-4o-mini"))
			Expect(t.Outcome).To(Equal(tape.OutcomeOK))
			Expect(t.Frames).To(HaveLen(4))
			Expect(t.Frames[3].Data).To(Equal("[DONE]"))
			Expect(*t.Metadata.Stats.OutTokens).To(Equal(2))
			Expect(t.CompletedAt).NotTo(BeTemporally("<", t.StartedAt))
		})

		It("records the terminal issue as the outcome", func() {
			rec := inmemory.NewDriver()
			d, err := dispatch.New(dispatch.Config{Recorder: rec}, lenient, nil)
			Expect(err).NotTo(HaveOccurred())

			s, err := d.Dispatch(ctx, openaiAccess(sseServer(workedExample[0])), chatBody)
			Expect(err).NotTo(HaveOccurred())
			collect(s)
			d.Close()

			t, err := rec.Get(ctx, s.ID())
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Outcome).To(Equal("dispatch-truncated"))
		})

		It("replays a recorded tape to the same actions", func() {
			rec := inmemory.NewDriver()
			d, err := dispatch.New(dispatch.Config{Recorder: rec}, lenient, nil)
			Expect(err).NotTo(HaveOccurred())

			s, err := d.Dispatch(ctx, openaiAccess(sseServer(workedExample...)), chatBody)
			Expect(err).NotTo(HaveOccurred())
			live := collect(s)
			d.Close()

			t, err := rec.Get(ctx, s.ID())
			Expect(err).NotTo(HaveOccurred())
			replayed, err := tape.Replay(ctx, t, lenient)
			Expect(err).NotTo(HaveOccurred())
			Expect(kinds(replayed)).To(Equal(kinds(live)))
			Expect(replayed[:2]).To(Equal(live[:2]))
		})
	})

	It("lists the supported vendors", func() {
		d := newDispatcher(dispatch.Config{}, lenient)
		Expect(d.Vendors()).To(ContainElements("anthropic", "openai", "ollama", "gemini", "vertex", "azure"))
	})
})
