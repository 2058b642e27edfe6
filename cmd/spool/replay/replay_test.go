package replaycmder_test

import (
	"bytes"
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	replaycmder "github.com/papercomputeco/spool/cmd/spool/replay"
	"github.com/papercomputeco/spool/pkg/dotdir"
	"github.com/papercomputeco/spool/pkg/tape"
	"github.com/papercomputeco/spool/pkg/tape/sqlite"
	"github.com/papercomputeco/spool/pkg/tape/tapetest"
)

var _ = Describe("Replay command", func() {
	var (
		configDir string
		out       *bytes.Buffer
	)

	newCmd := func(args ...string) *cobra.Command {
		cmd := replaycmder.NewReplayCmd()
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(args, "--config-dir", configDir))
		return cmd
	}

	record := func(t *tape.Tape) {
		store, err := sqlite.NewDriver(context.Background(), filepath.Join(configDir, "spool.db"))
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()
		Expect(store.Record(context.Background(), t)).To(Succeed())
	}

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
		record(tapetest.NewTape("t1", 0))
	})

	It("replays the tape given by id", func() {
		Expect(newCmd("t1").Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("t1"))
		Expect(out.String()).To(ContainSubstring("openai"))
		Expect(out.String()).To(ContainSubstring("hi"))
	})

	It("defaults to the last dispatch", func() {
		Expect(dotdir.NewManager().SaveLastDispatch(&dotdir.LastDispatch{
			ID:     "t1",
			Vendor: "openai",
			At:     time.Now(),
		}, configDir)).To(Succeed())

		Expect(newCmd().Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("hi"))
	})

	It("fails without an id when nothing was dispatched", func() {
		err := newCmd().Execute()
		Expect(err).To(MatchError("no tape id given and no previous dispatch recorded"))
	})

	It("returns NotFoundError for an unknown tape", func() {
		err := newCmd("missing").Execute()
		Expect(err).To(MatchError(tape.NotFoundError{ID: "missing"}))
	})

	It("reads from an explicit --sqlite path", func() {
		other := filepath.Join(GinkgoT().TempDir(), "other.db")
		store, err := sqlite.NewDriver(context.Background(), other)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Record(context.Background(), tapetest.NewTape("t2", time.Minute))).To(Succeed())
		Expect(store.Close()).To(Succeed())

		Expect(newCmd("--sqlite", other, "t2").Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("t2"))
	})

	It("counts issues in a truncated recording", func() {
		truncated := tapetest.NewTape("t3", 2*time.Minute)
		truncated.Frames = truncated.Frames[:1]
		record(truncated)

		err := newCmd("t3").Execute()
		Expect(err).To(MatchError("replay of t3 produced 1 issue(s)"))
		Expect(out.String()).To(ContainSubstring("dispatch-truncated"))
	})
})
