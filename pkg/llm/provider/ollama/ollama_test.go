package ollama_test

import (
	"context"
	"errors"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider/ollama"
	"github.com/papercomputeco/spool/pkg/llm/provider/parse"
	pt "github.com/papercomputeco/spool/pkg/llm/provider/parse/parsetest"
	"github.com/papercomputeco/spool/pkg/resilience"
	"github.com/papercomputeco/spool/pkg/wire"
)

const doneLine = `{"model":"llama3.2","created_at":"2025-01-01T00:00:01Z","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","total_duration":2500000000,"prompt_eval_count":26,"eval_count":4,"eval_duration":500000000}`

var _ = Describe("Ollama Parser", func() {
	var p *ollama.Parser

	BeforeEach(func() {
		p = ollama.NewParser(pt.Options(pt.Strict()))
	})

	It("translates a streamed chat", func() {
		actions, err := pt.Run(p, pt.Data(
			`{"model":"llama3.2","created_at":"2025-01-01T00:00:00Z","message":{"role":"assistant","content":"Hel"},"done":false}`,
			`{"model":"llama3.2","created_at":"2025-01-01T00:00:00Z","message":{"role":"assistant","content":"lo"},"done":false}`,
			doneLine,
		)...)
		Expect(err).NotTo(HaveOccurred())
		Expect(pt.Kinds(actions)).To(Equal([]string{"set", "text", "text", "set", "parser-close"}))
		Expect(pt.Texts(actions)).To(Equal("Hello"))

		meta := pt.Metadata(actions)
		Expect(meta.Model).To(Equal("llama3.2"))
		Expect(*meta.Stats.InTokens).To(Equal(26))
		Expect(*meta.Stats.OutTokens).To(Equal(4))
		Expect(*meta.Stats.TimeInner).To(BeNumerically("~", 0.5))
		Expect(*meta.Stats.OutRate).To(BeNumerically("~", 8.0))
		Expect(*meta.Stats.TimeOuter).To(BeNumerically("~", 2.0))
	})

	It("emits tool calls with generated ids", func() {
		actions, err := p.Parse("", `{"model":"qwen3","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_weather","arguments":{"city":"Toronto"}}}]},"done":false}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(actions).To(HaveLen(2))
		Expect(actions[1]).To(Equal(llm.ToolCall{ID: "call_0", Name: "get_weather", Arguments: `{"city":"Toronto"}`}))
	})

	It("reports error lines", func() {
		actions, err := pt.Run(p, pt.Data(`{"error":"model 'nope' not found"}`)...)
		Expect(err).NotTo(HaveOccurred())
		Expect(pt.Kinds(actions)).To(Equal([]string{"issue", "parser-close"}))
		Expect(actions[0].(llm.Issue).Message).To(ContainSubstring("not found"))
	})

	It("routes unknown done reasons through the policy", func() {
		line := `{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true,"done_reason":"evicted","eval_count":1}`

		_, err := p.Parse("", line)
		var uw *resilience.UnknownWireValueError
		Expect(errors.As(err, &uw)).To(BeTrue())
		Expect(uw.Field).To(Equal("done_reason"))

		lenient := ollama.NewParser(pt.Options(pt.Lenient()))
		actions, err := pt.Run(lenient, pt.Data(line)...)
		Expect(err).NotTo(HaveOccurred())
		Expect(pt.Kinds(actions)).To(Equal([]string{"set", "set", "parser-close"}))
	})

	It("routes malformed final counters through the policy", func() {
		line := `{"model":"llama3.2","message":{"role":"assistant","content":"ok"},"done":true,"done_reason":"stop","eval_count":"four","eval_duration":-1}`

		actions, err := p.Parse("", line)
		Expect(pt.Texts(actions)).To(Equal("ok"))
		var sv *wire.SchemaViolationError
		Expect(errors.As(err, &sv)).To(BeTrue())
		Expect(sv.Path).To(Equal("eval_count"))

		lenient := ollama.NewParser(pt.Options(pt.Lenient()))
		actions, err = pt.Run(lenient, pt.Data(line)...)
		Expect(err).NotTo(HaveOccurred())
		Expect(pt.Kinds(actions)).To(Equal([]string{"set", "text", "set", "parser-close"}))

		stats := pt.Metadata(actions).Stats
		Expect(stats.OutTokens).To(BeNil())
		Expect(*stats.InTokens).To(Equal(llm.UnknownTokens))
	})

	It("reports truncation without a done line", func() {
		_, err := pt.Run(p, pt.Data(`{"model":"llama3.2","message":{"role":"assistant","content":"Hel"},"done":false}`)...)
		var te *parse.TruncatedError
		Expect(errors.As(err, &te)).To(BeTrue())
	})

	It("returns nothing after the done line", func() {
		_, err := p.Parse("", doneLine)
		Expect(err).NotTo(HaveOccurred())

		actions, err := p.Parse("", doneLine)
		Expect(err).NotTo(HaveOccurred())
		Expect(actions).To(BeEmpty())

		actions, err = p.End()
		Expect(err).NotTo(HaveOccurred())
		Expect(actions).To(BeEmpty())
	})
})

var _ = Describe("Ollama NewRequest", func() {
	It("targets /api/chat with streaming enabled", func() {
		req, err := ollama.NewRequest(context.Background(), llm.Access{}, llm.GenerateRequest{Body: []byte(`{"model":"llama3.2","messages":[],"stream":false}`)})
		Expect(err).NotTo(HaveOccurred())
		Expect(req.URL.String()).To(Equal("http://localhost:11434/api/chat"))
		Expect(req.Header.Get("Authorization")).To(BeEmpty())

		body, err := io.ReadAll(req.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(MatchJSON(`{"model":"llama3.2","messages":[],"stream":true}`))
	})
})
