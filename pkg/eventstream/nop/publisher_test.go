package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/eventstream"
	"github.com/papercomputeco/spool/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	It("implements eventstream.Publisher", func() {
		var p eventstream.Publisher = nop.NewPublisher()
		Expect(p).NotTo(BeNil())
	})

	It("returns ErrNilTapeEvent for nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishTape(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilTapeEvent))
	})

	It("succeeds for non-nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishTape(context.Background(), &eventstream.TapeRecordedEvent{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("closes successfully", func() {
		p := nop.NewPublisher()
		Expect(p.Close()).To(Succeed())
	})
})
