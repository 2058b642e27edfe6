package tape

import (
	"context"
	"fmt"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider"
	"github.com/papercomputeco/spool/pkg/resilience"
)

// Replay runs the frames of t through a fresh parser for the tape's vendor
// and returns the resulting actions. Parser failures end the sequence with
// an Issue and a ParserClose, the way a live dispatch does. The returned
// error is reserved for an unknown vendor or a cancelled context.
func Replay(ctx context.Context, t *Tape, policy *resilience.Policy) ([]llm.Action, error) {
	vendor, ok := provider.Lookup(t.Vendor)
	if !ok {
		return nil, fmt.Errorf("replaying tape %s: unsupported vendor %q", t.ID, t.Vendor)
	}

	parser := vendor.NewParser(provider.ParserOptions{Policy: policy})

	var out []llm.Action
	fail := func(err error) []llm.Action {
		issue := llm.IssueFromError(err)
		issue.Message = policy.Describe(err)
		return append(out, issue, llm.ParserClose{})
	}

	for _, f := range t.Frames {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		actions, err := parser.Parse(f.Name, f.Data)
		out = append(out, actions...)
		if err != nil {
			return fail(err), nil
		}
		if closed(actions) {
			return out, nil
		}
	}

	actions, err := parser.End()
	out = append(out, actions...)
	if err != nil {
		return fail(err), nil
	}
	return out, nil
}

func closed(actions []llm.Action) bool {
	return len(actions) > 0 && llm.IsClose(actions[len(actions)-1])
}
