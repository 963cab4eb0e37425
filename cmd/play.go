package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/lyra/internal/config"
	"github.com/tejashwikalptaru/lyra/internal/domain"
)

func newPlayCmd(c *cli) *cobra.Command {
	var (
		start time.Duration
		limit time.Duration
	)

	cmd := &cobra.Command{
		Use:   "play [track]",
		Short: "Play a track and follow its lyrics",
		Long: "Play a library track, chosen by title, and print each lyric line as it becomes active.\n" +
			"Without an argument the first track of the library is played. Stop with Ctrl+C.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if limit > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, limit)
				defer cancel()
			}

			a, err := c.newApp()
			if err != nil {
				return err
			}
			defer c.shutdown(a)

			if err := a.Start(ctx); err != nil {
				return err
			}
			coord := a.Coordinator()

			var track domain.Track
			if len(args) == 1 {
				if track, err = coord.FindTrack(args[0]); err != nil {
					return err
				}
			} else {
				visible := coord.Visible()
				if len(visible) == 0 {
					return domain.ErrCatalogEmpty
				}
				track = visible[0]
			}

			finished := make(chan error, 1)
			finish := func(err error) {
				select {
				case finished <- err:
				default:
				}
			}

			bus := a.EventBus()
			bus.Subscribe(domain.EventTrackStarted, func(e domain.Event) {
				t := e.(domain.TrackStartedEvent).Track
				c.printf("Now playing: %s%s (%s)\n", t.Title,
					lo.Ternary(t.Artist != "", " - "+t.Artist, ""), formatDuration(t.Duration))
			})
			bus.Subscribe(domain.EventLyricIndexChanged, func(e domain.Event) {
				if line := e.(domain.LyricIndexChangedEvent).Line; line.Text != "" {
					c.printf("%s %s\n", formatTimestamp(line.Time), line.Text)
				}
			})
			bus.Subscribe(domain.EventBackendSwitched, func(e domain.Event) {
				ev := e.(domain.BackendSwitchedEvent)
				c.printf("Switched to the %s decoder: %v\n", ev.To, ev.Cause)
			})
			bus.Subscribe(domain.EventPlaybackFailed, func(e domain.Event) {
				finish(e.(domain.PlaybackFailedEvent).Error)
			})
			bus.Subscribe(domain.EventTrackCompleted, func(domain.Event) {
				if a.Coordinator().View().Repeat == domain.RepeatOff {
					finish(nil)
				}
			})

			if err := coord.PlayTrack(ctx, track); err != nil {
				return err
			}
			if start > 0 {
				if err := coord.Seek(start); err != nil {
					return err
				}
			}

			select {
			case err := <-finished:
				return err
			case <-ctx.Done():
				// interrupted or --for elapsed
				return nil
			}
		},
	}

	f := cmd.Flags()
	f.DurationVar(&start, "start", 0, "start playback at this position, e.g. 1m30s")
	f.DurationVar(&limit, "for", 0, "stop after this long")
	f.String("repeat", "", "repeat mode: off, one, all")
	lo.Must0(c.loader.Viper().BindPFlag(config.KeyRepeatMode, f.Lookup("repeat")))

	return cmd
}
