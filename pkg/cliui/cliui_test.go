package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/llm"
)

var _ = Describe("FormatDuration", func() {
	It("formats sub-second durations in milliseconds", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("formats longer durations in seconds", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Step", func() {
	It("returns the error from fn and prints the message", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "opening store", func() error {
			return errors.New("boom")
		})

		Expect(err).To(MatchError("boom"))
		Expect(buf.String()).To(ContainSubstring("opening store"))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
	})

	It("marks success", func() {
		var buf bytes.Buffer
		Expect(cliui.Step(&buf, "done", func() error { return nil })).To(Succeed())
		Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark))
	})
})

var _ = Describe("ActionPrinter", func() {
	var (
		buf     *bytes.Buffer
		printer *cliui.ActionPrinter
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		printer = cliui.NewActionPrinter(buf)
	})

	It("streams text and collects it", func() {
		printer.Print(llm.Text{Fragment: "Hello"})
		printer.Print(llm.Text{Fragment: " world"})
		printer.Print(llm.ParserClose{})

		Expect(buf.String()).To(HavePrefix("Hello world"))
		Expect(printer.Text()).To(Equal("Hello world"))
	})

	It("puts issues and tool calls on their own lines", func() {
		printer.Print(llm.Text{Fragment: "partial"})
		printer.Print(llm.Issue{Symbol: "dispatch-truncated", Message: "stream ended early"})
		printer.Print(llm.ToolCall{Name: "lookup", Arguments: `{"q":"x"}`})

		Expect(buf.String()).To(HavePrefix("partial\n"))
		Expect(buf.String()).To(ContainSubstring("dispatch-truncated"))
		Expect(buf.String()).To(ContainSubstring("lookup"))
		Expect(printer.Issues()).To(Equal(1))
	})

	It("folds sets into metadata and summarises them", func() {
		printer.Print(llm.SetModel("gpt-4o"))
		printer.Print(llm.SetStats(llm.Stats{InTokens: llm.Int(5), OutTokens: llm.Int(7)}))
		printer.Summary()

		Expect(printer.Metadata().Model).To(Equal("gpt-4o"))
		Expect(buf.String()).To(ContainSubstring("gpt-4o"))
		Expect(buf.String()).To(ContainSubstring("7"))
	})

	It("does not echo text when quiet", func() {
		printer.Quiet = true
		printer.Print(llm.Text{Fragment: "# Title"})

		Expect(buf.String()).To(BeEmpty())
		Expect(printer.Text()).To(Equal("# Title"))
	})
})
