package tapescmder

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/tape"
)

const defaultListLimit = 20

type listCommander struct {
	storeCommander
	limit  int
	follow bool
}

func newListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List the most recent tapes",
		Args:    cobra.NoArgs,
		PreRunE: cmder.preRun,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if cmder.follow {
				var stop context.CancelFunc
				ctx, stop = signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
			}
			return cmder.run(ctx)
		},
	}

	cmder.addFlags(cmd)
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", defaultListLimit, "Maximum number of tapes to list (0 lists all)")
	cmd.Flags().BoolVarP(&cmder.follow, "follow", "f", false, "Keep running and print tapes as they are recorded (SQLite only)")

	return cmd
}

func (c *listCommander) run(ctx context.Context) error {
	if c.limit < 0 {
		return errors.New("--limit must not be negative")
	}

	settings, err := c.settings()
	if err != nil {
		return err
	}
	if c.follow && settings.PostgresDSN != "" {
		return errors.New("--follow requires SQLite")
	}

	store, err := settings.OpenStore(ctx, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	tapes, err := store.List(ctx, c.limit)
	if err != nil {
		return fmt.Errorf("listing tapes: %w", err)
	}

	if len(tapes) == 0 && !c.follow {
		fmt.Fprintf(c.out, "  %s No tapes recorded yet.\n", cliui.DimStyle.Render("●"))
		return nil
	}

	seen := make(map[string]bool, len(tapes))
	for _, t := range tapes {
		seen[t.ID] = true
		c.printRow(t)
	}

	if !c.follow {
		return nil
	}

	path, err := settings.StorePath(c.configDir)
	if err != nil {
		return err
	}
	return c.followStore(ctx, store, path, seen)
}

// followStore prints tapes recorded after the initial listing. It re-reads
// the store whenever the database file or its WAL changes.
func (c *listCommander) followStore(ctx context.Context, store tape.Recorder, path string, seen map[string]bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating store watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching store dir: %w", err)
	}

	base := filepath.Base(path)
	c.logger.Debug("following tape store", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			tapes, err := store.List(ctx, c.limit)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("listing tapes: %w", err)
			}
			// List is newest first; print new arrivals in recording order.
			slices.Reverse(tapes)
			for _, t := range tapes {
				if seen[t.ID] {
					continue
				}
				seen[t.ID] = true
				c.printRow(t)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("store watcher error: %w", err)
		}
	}
}

func (c *listCommander) printRow(t *tape.Tape) {
	fmt.Fprintf(c.out, "  %s  %s  %-10s %-28s %s %s\n",
		cliui.IDStyle.Render(t.ID),
		cliui.DimStyle.Render(t.StartedAt.Local().Format("2006-01-02 15:04:05")),
		t.Vendor,
		t.Model,
		outcome(t.Outcome),
		cliui.StepStyle.Render(cliui.FormatDuration(t.Duration())),
	)
}
