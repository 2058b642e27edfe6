// Package tapetest holds the shared behaviour specs every tape.Recorder
// driver runs in its own suite.
package tapetest

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/tape"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// NewTape builds a small recorded openai dispatch that started offset after a
// fixed epoch.
func NewTape(id string, offset time.Duration) *tape.Tape {
	return &tape.Tape{
		ID:          id,
		Vendor:      "openai",
		Model:       "gpt-4o-mini",
		StartedAt:   epoch.Add(offset),
		CompletedAt: epoch.Add(offset + 1500*time.Millisecond),
		Frames: []tape.Frame{
			{Data: `{"choices":[{"index":0,"delta":{"content":"hi"}}]}`},
			{Name: "done", Data: "[DONE]"},
		},
		Outcome: tape.OutcomeOK,
		Metadata: llm.Metadata{
			Model: "gpt-4o-mini",
			Stats: llm.Stats{InTokens: llm.Int(3), OutTokens: llm.Int(1)},
		},
	}
}

// ItBehavesLikeARecorder registers the conformance specs. get is called in
// each spec and must return a clean recorder.
func ItBehavesLikeARecorder(get func() tape.Recorder) {
	var (
		rec tape.Recorder
		ctx context.Context
	)

	BeforeEach(func() {
		rec = get()
		ctx = context.Background()
	})

	Describe("Record and Get", func() {
		It("round trips a tape", func() {
			want := NewTape("rt-1", 0)
			Expect(rec.Record(ctx, want)).To(Succeed())

			got, err := rec.Get(ctx, "rt-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(want.ID))
			Expect(got.Vendor).To(Equal(want.Vendor))
			Expect(got.Model).To(Equal(want.Model))
			Expect(got.Outcome).To(Equal(tape.OutcomeOK))
			Expect(got.Frames).To(Equal(want.Frames))
			Expect(got.Metadata).To(Equal(want.Metadata))
			Expect(got.StartedAt.Equal(want.StartedAt)).To(BeTrue())
			Expect(got.Duration()).To(Equal(1500 * time.Millisecond))
		})

		It("ignores a second record with the same id", func() {
			first := NewTape("dup", 0)
			Expect(rec.Record(ctx, first)).To(Succeed())

			second := NewTape("dup", time.Hour)
			second.Outcome = "dispatch-truncated"
			Expect(rec.Record(ctx, second)).To(Succeed())

			got, err := rec.Get(ctx, "dup")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Outcome).To(Equal(tape.OutcomeOK))
		})

		It("returns NotFoundError for a missing id", func() {
			_, err := rec.Get(ctx, "missing")
			Expect(err).To(MatchError(tape.NotFoundError{ID: "missing"}))
		})

		It("rejects tapes without an id", func() {
			Expect(rec.Record(ctx, &tape.Tape{Vendor: "openai"})).NotTo(Succeed())
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			for i := range 5 {
				Expect(rec.Record(ctx, NewTape(fmt.Sprintf("list-%d", i), time.Duration(i)*time.Minute))).To(Succeed())
			}
		})

		It("returns the most recent first", func() {
			got, err := rec.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(5))
			Expect(got[0].ID).To(Equal("list-4"))
			Expect(got[4].ID).To(Equal("list-0"))
		})

		It("applies the limit", func() {
			got, err := rec.List(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))
			Expect(got[1].ID).To(Equal("list-3"))
		})
	})
}
