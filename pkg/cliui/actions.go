package cliui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/papercomputeco/spool/pkg/llm"
)

// ActionPrinter writes a stream of actions to a terminal. Text fragments are
// written as they arrive; issues and tool calls go on their own lines.
type ActionPrinter struct {
	w io.Writer

	// Quiet suppresses Text output, for callers that render the collected
	// text themselves.
	Quiet bool

	text     strings.Builder
	metadata llm.Metadata
	issues   int
	midLine  bool
}

// NewActionPrinter creates an ActionPrinter writing to w.
func NewActionPrinter(w io.Writer) *ActionPrinter {
	return &ActionPrinter{w: w}
}

// Print renders one action.
func (p *ActionPrinter) Print(a llm.Action) {
	switch a := a.(type) {
	case llm.Text:
		p.text.WriteString(a.Fragment)
		if p.Quiet {
			return
		}
		fmt.Fprint(p.w, a.Fragment)
		p.midLine = !strings.HasSuffix(a.Fragment, "\n")
	case llm.Issue:
		p.issues++
		p.breakLine()
		fmt.Fprintf(p.w, "  %s %s %s\n",
			WarnStyle.Render("!"),
			ErrorStyle.Render(a.Symbol),
			DimStyle.Render(a.Message),
		)
	case llm.ToolCall:
		p.breakLine()
		fmt.Fprintf(p.w, "  %s %s%s\n",
			KeyStyle.Render("tool"),
			NameStyle.Render(a.Name),
			DimStyle.Render("("+a.Arguments+")"),
		)
	case llm.Set:
		p.metadata.Apply(a)
	case llm.ParserClose:
		p.breakLine()
	}
}

// Text returns every Text fragment printed so far, concatenated.
func (p *ActionPrinter) Text() string {
	return p.text.String()
}

// Metadata returns the cumulative metadata of the printed stream.
func (p *ActionPrinter) Metadata() llm.Metadata {
	return p.metadata
}

// Issues returns the number of issues printed.
func (p *ActionPrinter) Issues() int {
	return p.issues
}

// Summary writes a one line model and token summary.
func (p *ActionPrinter) Summary() {
	parts := []string{}
	if p.metadata.Model != "" {
		parts = append(parts, KeyStyle.Render("model")+" "+ValueStyle.Render(p.metadata.Model))
	}
	s := p.metadata.Stats
	if s.InTokens != nil && *s.InTokens != llm.UnknownTokens {
		parts = append(parts, KeyStyle.Render("in")+" "+ValueStyle.Render(strconv.Itoa(*s.InTokens)))
	}
	if s.OutTokens != nil {
		parts = append(parts, KeyStyle.Render("out")+" "+ValueStyle.Render(strconv.Itoa(*s.OutTokens)))
	}
	if s.OutRate != nil {
		parts = append(parts, KeyStyle.Render("rate")+" "+ValueStyle.Render(fmt.Sprintf("%.1f tok/s", *s.OutRate)))
	}
	if len(parts) == 0 {
		return
	}
	fmt.Fprintf(p.w, "\n  %s\n", strings.Join(parts, DimStyle.Render(" · ")))
}

func (p *ActionPrinter) breakLine() {
	if p.midLine {
		fmt.Fprintln(p.w)
		p.midLine = false
	}
}
