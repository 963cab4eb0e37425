package main

import (
	"strconv"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/lyra/internal/config"
	"github.com/tejashwikalptaru/lyra/internal/domain"
)

func newListCmd(c *cli) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the tracks in the library",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.newApp()
			if err != nil {
				return err
			}
			defer c.shutdown(a)

			coord := a.Coordinator()
			if err := coord.Refresh(cmd.Context()); err != nil {
				return err
			}
			coord.SetSearch(query)

			tracks := coord.Visible()
			if len(tracks) == 0 {
				c.printf("No tracks found in %s\n", c.settings.LibraryDir)
				return nil
			}

			rows := lo.Map(tracks, func(t domain.Track, i int) []string {
				return []string{
					strconv.Itoa(i + 1),
					t.Title,
					lo.CoalesceOrEmpty(t.Artist, "-"),
					lo.CoalesceOrEmpty(t.Album, "-"),
					formatDuration(t.Duration),
				}
			})
			c.printf("%s\n", c.styles.table([]string{"#", "TITLE", "ARTIST", "ALBUM", "LENGTH"}, rows, 0))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&query, "search", "s", "", "only list tracks whose title or artist matches")
	f.String("search-mode", "", "search mode: substring, fuzzy")
	f.String("sort", "", "sort by: title, artist, duration")

	v := c.loader.Viper()
	lo.Must0(v.BindPFlag(config.KeySearchMode, f.Lookup("search-mode")))
	lo.Must0(v.BindPFlag(config.KeySortKey, f.Lookup("sort")))

	return cmd
}
