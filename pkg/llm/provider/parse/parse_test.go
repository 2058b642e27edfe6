package parse_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider/parse"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/resilience"
	"github.com/papercomputeco/spool/pkg/wire"
)

var _ = Describe("Options", func() {
	It("fills defaults", func() {
		o := parse.Options{}.WithDefaults("openai")
		Expect(o.Vendor).To(Equal("openai"))
		Expect(o.Now).NotTo(BeNil())
		Expect(o.Start.IsZero()).To(BeFalse())
		Expect(o.Policy).NotTo(BeNil())
		Expect(o.Policy.Strict()).To(BeFalse())
	})
})

var _ = Describe("Degradable", func() {
	type counters struct {
		Out *int `json:"out,omitempty" validate:"omitempty,min=0"`
	}

	options := func(cfg resilience.Config, buf *bytes.Buffer) parse.Options {
		policy := resilience.New(cfg, logger.New(logger.WithWriter(buf), logger.WithJSON(true)))
		return parse.Options{Policy: policy}.WithDefaults("test")
	}

	It("decodes a valid block", func() {
		var c counters
		ok, err := parse.Options{}.WithDefaults("test").Degradable("chunk", "usage", json.RawMessage(`{"out":2}`), &c)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(*c.Out).To(Equal(2))
	})

	It("returns the violation in strict mode", func() {
		var c counters
		ok, err := options(resilience.Config{StrictParsing: true}, &bytes.Buffer{}).
			Degradable("chunk", "usage", json.RawMessage(`{"out":"two"}`), &c)
		Expect(ok).To(BeFalse())

		var violation *wire.SchemaViolationError
		Expect(errors.As(err, &violation)).To(BeTrue())
		Expect(violation.Path).To(Equal("usage.out"))
	})

	It("logs and reports the block as absent in lenient mode", func() {
		buf := &bytes.Buffer{}
		var c counters
		ok, err := options(resilience.Config{}, buf).
			Degradable("message_delta", "usage", json.RawMessage(`{"out":-4}`), &c)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())

		var entry map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &entry)).To(Succeed())
		Expect(entry["context"]).To(Equal("message_delta"))
		Expect(entry["field"]).To(Equal("usage.out"))
	})
})

var _ = Describe("Finish", func() {
	var opts parse.Options

	BeforeEach(func() {
		start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		opts = parse.Options{
			Start: start,
			Now:   func() time.Time { return start.Add(2 * time.Second) },
		}.WithDefaults("test")
	})

	It("stamps outer time and derives the rate", func() {
		stats := parse.Finish(llm.Stats{OutTokens: llm.Int(10)}, opts)
		Expect(*stats.TimeOuter).To(BeNumerically("~", 2.0))
		Expect(*stats.OutRate).To(BeNumerically("~", 5.0))
		Expect(*stats.InTokens).To(Equal(llm.UnknownTokens))
	})

	It("keeps reported input tokens", func() {
		stats := parse.Finish(llm.Stats{InTokens: llm.Int(7)}, opts)
		Expect(*stats.InTokens).To(Equal(7))
	})

	It("keeps a vendor-reported rate", func() {
		stats := parse.Finish(llm.Stats{OutTokens: llm.Int(10), OutRate: llm.Float(42)}, opts)
		Expect(*stats.OutRate).To(BeNumerically("~", 42.0))
	})

	It("leaves the rate unset without output tokens", func() {
		stats := parse.Finish(llm.Stats{}, opts)
		Expect(stats.OutRate).To(BeNil())
	})
})

var _ = Describe("Tools", func() {
	var tools *parse.Tools

	BeforeEach(func() {
		tools = &parse.Tools{}
	})

	It("joins fragments and closes by index", func() {
		tools.Open(1, "toolu_1", "get_weather")
		tools.Append(1, "", "", `{"city":`)
		tools.Append(1, "", "", `"Paris"}`)

		call, ok := tools.Close(1)
		Expect(ok).To(BeTrue())
		Expect(call).To(Equal(llm.ToolCall{ID: "toolu_1", Name: "get_weather", Arguments: `{"city":"Paris"}`}))
		Expect(tools.Has(1)).To(BeFalse())
	})

	It("reports unknown indexes", func() {
		_, ok := tools.Close(7)
		Expect(ok).To(BeFalse())
	})

	It("defaults empty arguments to an empty object", func() {
		tools.Open(0, "a", "noop")
		call, _ := tools.Close(0)
		Expect(call.Arguments).To(Equal("{}"))
	})

	It("flushes in index order and fills late identifiers", func() {
		tools.Append(2, "", "", `{}`)
		tools.Append(0, "call_0", "first", `{"a":1}`)
		tools.Append(2, "call_2", "second", "")

		calls := tools.Flush()
		Expect(calls).To(HaveLen(2))
		Expect(calls[0].Name).To(Equal("first"))
		Expect(calls[1]).To(Equal(llm.ToolCall{ID: "call_2", Name: "second", Arguments: "{}"}))
		Expect(tools.Flush()).To(BeEmpty())
	})
})

var _ = Describe("TruncatedError", func() {
	It("carries the truncation symbol", func() {
		err := &parse.TruncatedError{Vendor: "openai"}
		Expect(err.Symbol()).To(Equal("dispatch-truncated"))
		Expect(llm.IssueFromError(err).Symbol).To(Equal("dispatch-truncated"))
		Expect(err.Error()).To(ContainSubstring("openai"))
	})
})
