package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/tape"
	"github.com/papercomputeco/spool/pkg/tape/inmemory"
	"github.com/papercomputeco/spool/pkg/tape/tapetest"
)

var _ = Describe("Driver", func() {
	tapetest.ItBehavesLikeARecorder(func() tape.Recorder {
		return inmemory.NewDriver()
	})

	It("is not affected by later changes to the recorded tape", func() {
		d := inmemory.NewDriver()
		t := tapetest.NewTape("copy", 0)
		Expect(d.Record(context.Background(), t)).To(Succeed())

		t.Frames[0].Data = "changed"

		got, err := d.Get(context.Background(), "copy")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Frames[0].Data).NotTo(Equal("changed"))
	})
})
