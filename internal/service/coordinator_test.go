package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/lyra/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/logger"
)

const threeLines = "[00:01.00]one\n[00:03.00]two\n[00:05.00]three\n"

// fakeCatalog is an in-memory ports.Catalog.
type fakeCatalog struct {
	mu     sync.Mutex
	tracks []domain.Track
	err    error
	calls  int
}

func (c *fakeCatalog) Tracks(context.Context) ([]domain.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return append([]domain.Track(nil), c.tracks...), nil
}

// fakeLyrics serves lyric text by track ID.
type fakeLyrics struct {
	byID map[string]string
	err  error
}

func (l *fakeLyrics) Lyrics(_ context.Context, track domain.Track) (io.ReadCloser, error) {
	if l.err != nil {
		return nil, l.err
	}
	raw, ok := l.byID[track.ID]
	if !ok {
		return nil, domain.ErrLyricsNotFound
	}
	return io.NopCloser(strings.NewReader(raw)), nil
}

type coordinatorFixture struct {
	*controllerFixture
	coord   *PlaybackCoordinator
	clock   *PositionClock
	catalog *fakeCatalog
	lyrics  *fakeLyrics
}

func newCoordinatorFixture(t *testing.T, opts CoordinatorOptions, tracks ...domain.Track) *coordinatorFixture {
	t.Helper()
	cf := newControllerFixture(t)
	f := &coordinatorFixture{
		controllerFixture: cf,
		catalog:           &fakeCatalog{tracks: tracks},
		lyrics:            &fakeLyrics{byID: map[string]string{}},
	}
	f.clock = NewPositionClock(logger.NewTestLogger(), cf.ctrl, cf.bus, time.Hour)
	f.coord = NewPlaybackCoordinator(logger.NewTestLogger(), cf.bus, cf.ctrl, f.clock, f.catalog, f.lyrics, opts)

	// runs before the controller fixture's cleanup
	t.Cleanup(func() { _ = f.coord.Close() })
	return f
}

func threeTracks() []domain.Track {
	return []domain.Track{
		createTestTrack("c", "Cedar", "Mira", 3*time.Minute),
		createTestTrack("a", "Aspen", "Oslo", 2*time.Minute),
		createTestTrack("b", "Birch", "Lund", time.Minute),
	}
}

func TestPlaybackCoordinator_Refresh(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)

	require.NoError(t, f.coord.Refresh(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, ids(f.coord.Visible()))
	updates := f.events.ofType(domain.EventCatalogUpdated)
	require.Len(t, updates, 1)
	assert.Equal(t, []string{"a", "b", "c"}, ids(updates[0].(domain.CatalogUpdatedEvent).Tracks))

	// catalog is pulled once per refresh
	assert.Equal(t, 1, f.catalog.calls)
}

func TestPlaybackCoordinator_RefreshError(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{})
	f.catalog.err = errors.New("disk gone")

	err := f.coord.Refresh(context.Background())
	require.Error(t, err)
	var svcErr *domain.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "Refresh", svcErr.Op)
	assert.Zero(t, f.events.count(domain.EventCatalogUpdated))
}

func TestPlaybackCoordinator_ViewControls(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{Sort: domain.SortDuration}, threeTracks()...)
	require.NoError(t, f.coord.Refresh(context.Background()))
	assert.Equal(t, []string{"b", "a", "c"}, ids(f.coord.Visible()))

	f.coord.SetSort(domain.SortArtist)
	assert.Equal(t, []string{"b", "c", "a"}, ids(f.coord.Visible()))

	f.coord.SetSearch("ced")
	assert.Equal(t, []string{"c"}, ids(f.coord.Visible()))

	f.coord.SetSearch("cdr")
	assert.Empty(t, f.coord.Visible())
	f.coord.SetSearchMode(domain.SearchFuzzy)
	assert.Equal(t, []string{"c"}, ids(f.coord.Visible()))

	view := f.coord.View()
	assert.Equal(t, "cdr", view.Search)
	assert.Equal(t, domain.SearchFuzzy, view.SearchMode)
	assert.Equal(t, domain.SortArtist, view.Sort)

	// one update per change, plus the refresh
	assert.Equal(t, 5, f.events.count(domain.EventCatalogUpdated))
}

func TestPlaybackCoordinator_FindTrack(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)
	require.NoError(t, f.coord.Refresh(context.Background()))

	track, err := f.coord.FindTrack("b")
	require.NoError(t, err)
	assert.Equal(t, "Birch", track.Title)

	track, err = f.coord.FindTrack("ASPEN")
	require.NoError(t, err)
	assert.Equal(t, "a", track.ID)

	_, err = f.coord.FindTrack("oak")
	assert.ErrorIs(t, err, domain.ErrTrackNotFound)
}

func TestPlaybackCoordinator_PlayTrackLoadsLyrics(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)
	f.lyrics.byID["a"] = threeLines
	track := threeTracks()[1]

	require.NoError(t, f.coord.PlayTrack(context.Background(), track))

	view := f.coord.View()
	require.NotNil(t, view.Current)
	assert.Equal(t, "a", view.Current.ID)
	require.Len(t, view.Lyrics, 3)
	assert.Equal(t, 0, view.LyricIndex)
	assert.Equal(t, "one", view.CurrentLine().Text)
	assert.Equal(t, domain.BackendPrimary, view.Backend)

	loaded := f.events.ofType(domain.EventLyricsLoaded)
	require.Len(t, loaded, 1)
	assert.Len(t, loaded[0].(domain.LyricsLoadedEvent).Timeline, 3)

	require.Eventually(t, func() bool { return f.coord.View().Playing }, waitFor, tick)
}

func TestPlaybackCoordinator_LyricsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeLyrics
	}{
		{name: "not found", src: &fakeLyrics{byID: map[string]string{}}},
		{name: "source error", src: &fakeLyrics{err: errors.New("permission denied")}},
		{name: "empty file", src: &fakeLyrics{byID: map[string]string{"a": ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)
			f.coord.SetLyrics(threeLines)
			f.coord.lyricSrc = tt.src

			require.NoError(t, f.coord.PlayTrack(context.Background(), threeTracks()[1]))

			view := f.coord.View()
			assert.Empty(t, view.Lyrics, "previous timeline must be replaced")
			assert.Equal(t, 0, view.LyricIndex)
			assert.Equal(t, domain.LyricLine{}, view.CurrentLine())
			assert.True(t, f.ctrl.State().Playing, "missing lyrics never block playback")
		})
	}
}

func TestPlaybackCoordinator_NilLyricSource(t *testing.T) {
	cf := newControllerFixture(t)
	clock := NewPositionClock(logger.NewTestLogger(), cf.ctrl, cf.bus, time.Hour)
	coord := NewPlaybackCoordinator(logger.NewTestLogger(), cf.bus, cf.ctrl, clock, &fakeCatalog{}, nil, CoordinatorOptions{})
	t.Cleanup(func() { _ = coord.Close() })

	require.NoError(t, coord.PlayTrack(context.Background(), createTestTrack("a", "A", "", 0)))
	assert.Empty(t, coord.View().Lyrics)
}

func TestPlaybackCoordinator_LyricIndexFollowsProgress(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)
	f.lyrics.byID["a"] = threeLines
	require.NoError(t, f.coord.PlayTrack(context.Background(), threeTracks()[1]))

	indexEvents := func() []int {
		var out []int
		for _, e := range f.events.ofType(domain.EventLyricIndexChanged) {
			out = append(out, e.(domain.LyricIndexChangedEvent).Index)
		}
		return out
	}
	require.Equal(t, []int{0}, indexEvents())

	steps := []struct {
		seek time.Duration
		want int
	}{
		{seek: time.Second, want: 0},
		{seek: 3500 * time.Millisecond, want: 1},
		{seek: 4 * time.Second, want: 1},
		{seek: 10 * time.Second, want: 2},
		{seek: 0, want: 0},
	}
	for _, s := range steps {
		require.NoError(t, f.coord.Seek(s.seek))
		view := f.coord.View()
		assert.Equal(t, s.seek, view.Position)
		assert.Equal(t, s.want, view.LyricIndex, "after seek to %s", s.seek)
	}

	// events only when the index moves
	assert.Equal(t, []int{0, 1, 2, 0}, indexEvents())

	last := f.events.ofType(domain.EventLyricIndexChanged)
	assert.Equal(t, "one", last[len(last)-1].(domain.LyricIndexChangedEvent).Line.Text)
}

func TestPlaybackCoordinator_SeekSamplesImmediately(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)

	assert.ErrorIs(t, f.coord.Seek(time.Second), domain.ErrNoTrackLoaded)
	assert.Zero(t, f.events.count(domain.EventProgress))

	require.NoError(t, f.coord.PlayTrack(context.Background(), threeTracks()[0]))
	require.NoError(t, f.coord.Seek(30*time.Second))

	progress := f.events.ofType(domain.EventProgress)
	require.Len(t, progress, 1)
	assert.Equal(t, 30*time.Second, progress[0].(domain.ProgressEvent).Position)
	assert.Equal(t, 30*time.Second, f.coord.View().Position)
}

func TestPlaybackCoordinator_SetLyricsMidTrack(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)
	require.NoError(t, f.coord.PlayTrack(context.Background(), threeTracks()[0]))
	require.NoError(t, f.coord.Seek(4*time.Second))

	f.coord.SetLyrics(threeLines)
	assert.Equal(t, 1, f.coord.View().LyricIndex)

	require.NoError(t, f.coord.LoadLyrics(strings.NewReader("[00:00.00]only")))
	view := f.coord.View()
	assert.Len(t, view.Lyrics, 1)
	assert.Equal(t, "only", view.CurrentLine().Text)
}

func TestPlaybackCoordinator_NextPrevious(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)
	ctx := context.Background()
	require.NoError(t, f.coord.Refresh(ctx))

	current := func() string {
		v := f.coord.View()
		require.NotNil(t, v.Current)
		return v.Current.ID
	}

	// nothing playing yet: start at the top of the list
	require.NoError(t, f.coord.Next(ctx))
	assert.Equal(t, "a", current())

	require.NoError(t, f.coord.Next(ctx))
	require.NoError(t, f.coord.Next(ctx))
	assert.Equal(t, "c", current())
	assert.ErrorIs(t, f.coord.Next(ctx), domain.ErrEndOfCatalog)
	assert.Equal(t, "c", current())

	require.NoError(t, f.coord.Previous(ctx))
	require.NoError(t, f.coord.Previous(ctx))
	assert.Equal(t, "a", current())
	assert.ErrorIs(t, f.coord.Previous(ctx), domain.ErrStartOfCatalog)

	assert.Equal(t, []string{"/music/a.mp3", "/music/b.mp3", "/music/c.mp3", "/music/b.mp3", "/music/a.mp3"},
		f.primaryBackend(t).Calls().Locators)
}

func TestPlaybackCoordinator_NextWrapsWithRepeatAll(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{Repeat: domain.RepeatAll}, threeTracks()...)
	ctx := context.Background()
	require.NoError(t, f.coord.Refresh(ctx))

	require.NoError(t, f.coord.PlayTrack(ctx, threeTracks()[0]))
	require.NoError(t, f.coord.Next(ctx))
	assert.Equal(t, "a", f.coord.View().Current.ID)

	require.NoError(t, f.coord.Previous(ctx))
	assert.Equal(t, "c", f.coord.View().Current.ID)
}

func TestPlaybackCoordinator_NextWhenCurrentFilteredOut(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)
	ctx := context.Background()
	require.NoError(t, f.coord.Refresh(ctx))
	require.NoError(t, f.coord.PlayTrack(ctx, threeTracks()[0]))

	f.coord.SetSearch("birch")
	require.NoError(t, f.coord.Next(ctx))
	assert.Equal(t, "b", f.coord.View().Current.ID)

	f.coord.SetSearch("nothing matches")
	assert.ErrorIs(t, f.coord.Next(ctx), domain.ErrCatalogEmpty)
}

func TestPlaybackCoordinator_RepeatModes(t *testing.T) {
	t.Run("off stays stopped", func(t *testing.T) {
		f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)
		require.NoError(t, f.coord.Refresh(context.Background()))
		require.NoError(t, f.coord.PlayTrack(context.Background(), threeTracks()[1]))

		require.True(t, f.primaryBackend(t).SimulateCompletion())
		f.events.waitCount(t, domain.EventTrackCompleted, 1)

		require.Eventually(t, func() bool { return !f.coord.View().Playing }, waitFor, tick)
		assert.Equal(t, 1, f.primaryBackend(t).Calls().Load)
	})

	t.Run("one replays", func(t *testing.T) {
		f := newCoordinatorFixture(t, CoordinatorOptions{Repeat: domain.RepeatOne}, threeTracks()...)
		require.NoError(t, f.coord.Refresh(context.Background()))
		require.NoError(t, f.coord.PlayTrack(context.Background(), threeTracks()[1]))

		require.True(t, f.primaryBackend(t).SimulateCompletion())

		require.Eventually(t, func() bool { return f.primaryBackend(t).Calls().Load == 2 }, waitFor, tick)
		assert.Equal(t, []string{"/music/a.mp3", "/music/a.mp3"}, f.primaryBackend(t).Calls().Locators)
		require.Eventually(t, func() bool { return f.ctrl.State().Playing }, waitFor, tick)
	})

	t.Run("completion of another track is ignored", func(t *testing.T) {
		f := newCoordinatorFixture(t, CoordinatorOptions{Repeat: domain.RepeatOne}, threeTracks()...)
		require.NoError(t, f.coord.Refresh(context.Background()))
		require.NoError(t, f.coord.PlayTrack(context.Background(), threeTracks()[1]))

		f.bus.Publish(domain.NewTrackCompletedEvent(threeTracks()[2], domain.BackendPrimary))

		assert.Never(t, func() bool { return f.primaryBackend(t).Calls().Load > 1 }, 50*time.Millisecond, tick)
	})

	t.Run("all advances and wraps", func(t *testing.T) {
		f := newCoordinatorFixture(t, CoordinatorOptions{Repeat: domain.RepeatAll}, threeTracks()...)
		require.NoError(t, f.coord.Refresh(context.Background()))
		require.NoError(t, f.coord.PlayTrack(context.Background(), threeTracks()[0]))

		require.True(t, f.primaryBackend(t).SimulateCompletion())

		require.Eventually(t, func() bool {
			v := f.coord.View()
			return v.Current != nil && v.Current.ID == "a"
		}, waitFor, tick)
		require.Eventually(t, func() bool { return f.ctrl.State().Playing }, waitFor, tick)
	})
}

func TestPlaybackCoordinator_SetRepeat(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)

	f.coord.SetRepeat(domain.RepeatOff)
	f.coord.SetRepeat(domain.RepeatOne)
	f.coord.SetRepeat(domain.RepeatOne)
	f.coord.SetRepeat(domain.RepeatAll)

	changes := f.events.ofType(domain.EventRepeatModeChanged)
	require.Len(t, changes, 2)
	assert.Equal(t, domain.RepeatOne, changes[0].(domain.RepeatModeChangedEvent).Mode)
	assert.Equal(t, domain.RepeatAll, changes[1].(domain.RepeatModeChangedEvent).Mode)
	assert.Equal(t, domain.RepeatAll, f.coord.View().Repeat)
}

func TestPlaybackCoordinator_ViewTracksFailover(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)
	require.NoError(t, f.coord.PlayTrack(context.Background(), threeTracks()[0]))

	require.True(t, f.primaryBackend(t).SimulateError(nil))

	require.Eventually(t, func() bool {
		v := f.coord.View()
		return v.Backend == domain.BackendFallback && v.Playing
	}, waitFor, tick)

	// a new track goes back to the primary
	require.NoError(t, f.coord.PlayTrack(context.Background(), threeTracks()[1]))
	assert.Equal(t, domain.BackendPrimary, f.coord.View().Backend)
}

func TestPlaybackCoordinator_ViewTracksFallbackFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *coordinatorFixture)
	}{
		{
			name:  "fallback construction",
			setup: func(f *coordinatorFixture) { f.fallback.SetFailNew(true) },
		},
		{
			name:  "fallback load",
			setup: func(f *coordinatorFixture) { f.fallback.Configure(func(b *mock.Backend) { b.SetFailLoad(true) }) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)
			f.primary.Configure(func(b *mock.Backend) { b.SetFailLoad(true) })
			tt.setup(f)

			require.NoError(t, f.coord.PlayTrack(context.Background(), threeTracks()[0]))
			f.events.waitCount(t, domain.EventPlaybackFailed, 1)

			state := f.ctrl.State()
			assert.Equal(t, domain.BackendFallback, state.Backend)
			require.Eventually(t, func() bool {
				v := f.coord.View()
				return v.Backend == state.Backend && !v.Playing
			}, waitFor, tick)
			assert.Empty(t, f.events.ofType(domain.EventBackendSwitched))
		})
	}
}

func TestPlaybackCoordinator_PauseResumeToggle(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)
	require.NoError(t, f.coord.PlayTrack(context.Background(), threeTracks()[0]))

	require.NoError(t, f.coord.Pause())
	require.Eventually(t, func() bool { return !f.coord.View().Playing }, waitFor, tick)

	require.NoError(t, f.coord.Resume())
	require.Eventually(t, func() bool { return f.coord.View().Playing }, waitFor, tick)

	require.NoError(t, f.coord.TogglePlayPause())
	assert.Equal(t, domain.StatusPaused, f.ctrl.State().Status)
}

func TestPlaybackCoordinator_Close(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorOptions{}, threeTracks()...)
	before := f.bus.SubscriberCount()

	f.coord.Start(context.Background())
	require.True(t, f.clock.Running())
	require.NoError(t, f.coord.PlayTrack(context.Background(), threeTracks()[0]))

	require.NoError(t, f.coord.Close())

	assert.False(t, f.clock.Running())
	assert.True(t, f.primaryBackend(t).IsReleased())
	assert.Equal(t, before-4, f.bus.SubscriberCount())
	assert.Equal(t, domain.StatusReleased, f.ctrl.State().Status)

	assert.ErrorIs(t, f.coord.PlayTrack(context.Background(), threeTracks()[1]), domain.ErrReleased)
	assert.ErrorIs(t, f.coord.TogglePlayPause(), domain.ErrReleased)
	require.NoError(t, f.coord.Close())
}
