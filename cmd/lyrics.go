package main

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/lyrics"
)

func newLyricsCmd(c *cli) *cobra.Command {
	var at time.Duration

	cmd := &cobra.Command{
		Use:   "lyrics <track | file.lrc>",
		Short: "Print the timed lyrics of a track",
		Long: "Print the timed lyrics of a library track, or of an .lrc file given by path.\n" +
			"With --at, the line active at that position is marked.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeline, err := c.timeline(cmd, args[0])
			if err != nil {
				return err
			}
			if timeline.Len() == 0 {
				c.printf("No timed lines\n")
				return nil
			}

			active := -1
			if cmd.Flags().Changed("at") {
				active = lyrics.Resolve(timeline, at)
			}
			for i, line := range timeline {
				marker := "  "
				if i == active {
					marker = "> "
				}
				c.printf("%s%s %s\n", marker, formatTimestamp(line.Time), line.Text)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&at, "at", 0, "mark the line active at this position, e.g. 1m05s")
	return cmd
}

// timeline loads lyrics from an .lrc path, or from the file next to a library track.
func (c *cli) timeline(cmd *cobra.Command, ref string) (domain.Timeline, error) {
	if strings.EqualFold(filepath.Ext(ref), ".lrc") {
		if ok, _ := afero.Exists(c.fs, ref); ok {
			f, err := c.fs.Open(ref)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			return lyrics.ParseReader(f)
		}
	}

	a, err := c.newApp()
	if err != nil {
		return nil, err
	}
	defer c.shutdown(a)

	coord := a.Coordinator()
	if err := coord.Refresh(cmd.Context()); err != nil {
		return nil, err
	}
	track, err := coord.FindTrack(ref)
	if err != nil {
		return nil, err
	}

	rc, err := a.LyricFiles().Lyrics(cmd.Context(), track)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return lyrics.ParseReader(rc)
}
