package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/lyrics"
	"github.com/tejashwikalptaru/lyra/internal/ports"
)

// ViewState is a snapshot of everything a front end renders.
type ViewState struct {
	Tracks     []domain.Track
	Search     string
	SearchMode domain.SearchMode
	Sort       domain.SortKey
	Repeat     domain.RepeatMode
	Current    *domain.Track
	Playing    bool
	Position   time.Duration
	Duration   time.Duration
	Backend    domain.BackendKind
	Lyrics     domain.Timeline
	LyricIndex int
}

// CurrentLine returns the active lyric line, or an empty line.
func (v ViewState) CurrentLine() domain.LyricLine {
	return v.Lyrics.Line(v.LyricIndex)
}

// CoordinatorOptions are the initial catalog view and completion policy.
type CoordinatorOptions struct {
	Sort       domain.SortKey
	SearchMode domain.SearchMode
	Repeat     domain.RepeatMode
}

// PlaybackCoordinator composes the catalog view, the playback controller,
// the position clock and the lyric timeline into one view state.
// All operations are thread-safe via sync.RWMutex.
type PlaybackCoordinator struct {
	// Dependencies (injected)
	logger     *slog.Logger
	bus        ports.FilteringEventBus
	controller *PlaybackController
	clock      *PositionClock
	catalog    ports.Catalog
	lyricSrc   ports.LyricSource

	// State
	tracks     []domain.Track
	visible    []domain.Track
	search     string
	searchMode domain.SearchMode
	sortKey    domain.SortKey
	repeat     domain.RepeatMode
	current    *domain.Track
	playing    bool
	position   time.Duration
	duration   time.Duration
	backend    domain.BackendKind
	timeline   domain.Timeline
	lyricIndex int
	subs       []domain.SubscriptionID
	closed     bool

	mu sync.RWMutex
}

// NewPlaybackCoordinator wires the coordinator to the bus and the clock.
// lyricSrc may be nil, in which case tracks start without lyrics.
func NewPlaybackCoordinator(
	logger *slog.Logger,
	bus ports.FilteringEventBus,
	controller *PlaybackController,
	clock *PositionClock,
	catalog ports.Catalog,
	lyricSrc ports.LyricSource,
	opts CoordinatorOptions,
) *PlaybackCoordinator {
	c := &PlaybackCoordinator{
		logger:     logger,
		bus:        bus,
		controller: controller,
		clock:      clock,
		catalog:    catalog,
		lyricSrc:   lyricSrc,
		searchMode: opts.SearchMode,
		sortKey:    opts.Sort,
		repeat:     opts.Repeat,
		timeline:   domain.Timeline{},
		visible:    []domain.Track{},
	}

	clock.SetSink(c.onProgress)

	c.subs = []domain.SubscriptionID{
		bus.Subscribe(domain.EventPlayingStateChanged, c.handlePlayingChanged),
		bus.Subscribe(domain.EventBackendSwitched, c.handleBackendSwitched),
		bus.Subscribe(domain.EventPlaybackFailed, c.handlePlaybackFailed),
		bus.SubscribeFiltered(domain.EventTrackCompleted, c.completedCurrent, c.handleTrackCompleted),
	}

	logger.Debug("playback coordinator initialized",
		slog.String("sort", opts.Sort.String()),
		slog.String("search_mode", opts.SearchMode.String()),
		slog.String("repeat", opts.Repeat.String()))
	return c
}

// Start begins position sampling. It stops when ctx is cancelled or on Close.
func (c *PlaybackCoordinator) Start(ctx context.Context) {
	c.clock.Start(ctx)
}

// Refresh fetches the catalog once and recomputes the visible list.
func (c *PlaybackCoordinator) Refresh(ctx context.Context) error {
	tracks, err := c.catalog.Tracks(ctx)
	if err != nil {
		return domain.NewServiceError("PlaybackCoordinator", "Refresh", "fetch catalog", err)
	}

	c.mu.Lock()
	c.tracks = tracks
	visible := c.recomputeLocked()
	c.mu.Unlock()

	c.bus.Publish(domain.NewCatalogUpdatedEvent(visible))
	return nil
}

// SetSearch filters the visible list by text.
func (c *PlaybackCoordinator) SetSearch(query string) {
	c.updateView(func() { c.search = query })
}

// SetSort reorders the visible list.
func (c *PlaybackCoordinator) SetSort(key domain.SortKey) {
	c.updateView(func() { c.sortKey = key })
}

// SetSearchMode switches between substring and fuzzy matching.
func (c *PlaybackCoordinator) SetSearchMode(mode domain.SearchMode) {
	c.updateView(func() { c.searchMode = mode })
}

func (c *PlaybackCoordinator) updateView(change func()) {
	c.mu.Lock()
	change()
	visible := c.recomputeLocked()
	c.mu.Unlock()

	c.bus.Publish(domain.NewCatalogUpdatedEvent(visible))
}

// recomputeLocked rebuilds the visible list and returns a copy for publishing.
func (c *PlaybackCoordinator) recomputeLocked() []domain.Track {
	c.visible = VisibleTracks(c.tracks, c.search, c.searchMode, c.sortKey)
	return append([]domain.Track(nil), c.visible...)
}

// Visible returns a copy of the filtered and sorted track list.
func (c *PlaybackCoordinator) Visible() []domain.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Track(nil), c.visible...)
}

// FindTrack looks a track up by ID, or by a case-insensitive title match.
func (c *PlaybackCoordinator) FindTrack(ref string) (domain.Track, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if t, ok := lo.Find(c.tracks, func(t domain.Track) bool { return t.ID == ref }); ok {
		return t, nil
	}
	if t, ok := lo.Find(c.tracks, func(t domain.Track) bool { return strings.EqualFold(t.Title, ref) }); ok {
		return t, nil
	}
	return domain.Track{}, domain.ErrTrackNotFound
}

// PlayTrack loads the track's lyrics and starts playback.
func (c *PlaybackCoordinator) PlayTrack(ctx context.Context, track domain.Track) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrReleased
	}
	c.current = &track
	c.position = 0
	c.duration = 0
	c.backend = domain.BackendPrimary
	c.mu.Unlock()

	c.loadTrackLyrics(ctx, track)

	return c.controller.Play(track)
}

// loadTrackLyrics replaces the timeline with the track's lyric file, or clears it.
func (c *PlaybackCoordinator) loadTrackLyrics(ctx context.Context, track domain.Track) {
	if c.lyricSrc == nil {
		c.setTimeline(domain.Timeline{})
		return
	}

	rc, err := c.lyricSrc.Lyrics(ctx, track)
	if err != nil {
		if !errors.Is(err, domain.ErrLyricsNotFound) {
			c.logger.Warn("failed to open lyrics", slog.String("track_id", track.ID), slog.Any("error", err))
		}
		c.setTimeline(domain.Timeline{})
		return
	}
	defer rc.Close()

	if err := c.LoadLyrics(rc); err != nil {
		c.logger.Warn("failed to read lyrics", slog.String("track_id", track.ID), slog.Any("error", err))
		c.setTimeline(domain.Timeline{})
	}
}

// LoadLyrics parses r and replaces the timeline wholesale.
func (c *PlaybackCoordinator) LoadLyrics(r io.Reader) error {
	timeline, err := lyrics.ParseReader(r)
	if err != nil {
		return err
	}
	c.setTimeline(timeline)
	return nil
}

// SetLyrics parses raw lyric text and replaces the timeline wholesale.
func (c *PlaybackCoordinator) SetLyrics(raw string) {
	c.setTimeline(lyrics.Parse(raw))
}

func (c *PlaybackCoordinator) setTimeline(timeline domain.Timeline) {
	c.mu.Lock()
	c.timeline = timeline
	c.lyricIndex = lyrics.Resolve(timeline, c.position)
	idx, line := c.lyricIndex, timeline.Line(c.lyricIndex)
	c.mu.Unlock()

	c.bus.Publish(domain.NewLyricsLoadedEvent(timeline))
	c.bus.Publish(domain.NewLyricIndexChangedEvent(idx, line))
}

// onProgress is the clock sink: it records position and tracks the lyric index.
func (c *PlaybackCoordinator) onProgress(position, duration time.Duration) {
	c.mu.Lock()
	c.position = position
	c.duration = duration
	idx := lyrics.Resolve(c.timeline, position)
	changed := idx != c.lyricIndex
	c.lyricIndex = idx
	line := c.timeline.Line(idx)
	c.mu.Unlock()

	if changed {
		c.bus.Publish(domain.NewLyricIndexChangedEvent(idx, line))
	}
}

// TogglePlayPause pauses or resumes the current track.
func (c *PlaybackCoordinator) TogglePlayPause() error {
	return c.controller.TogglePlayPause()
}

// Pause pauses playback.
func (c *PlaybackCoordinator) Pause() error {
	return c.controller.Pause()
}

// Resume resumes playback.
func (c *PlaybackCoordinator) Resume() error {
	return c.controller.Resume()
}

// Seek moves playback and samples the clock immediately so the view does not
// wait for the next tick.
func (c *PlaybackCoordinator) Seek(position time.Duration) error {
	if err := c.controller.SeekTo(position); err != nil {
		return err
	}
	c.clock.Sample()
	return nil
}

// Next plays the track after the current one in the visible list.
// With RepeatAll it wraps around; otherwise the last track returns ErrEndOfCatalog.
func (c *PlaybackCoordinator) Next(ctx context.Context) error {
	track, err := c.neighbour(1)
	if err != nil {
		return err
	}
	return c.PlayTrack(ctx, track)
}

// Previous plays the track before the current one in the visible list.
func (c *PlaybackCoordinator) Previous(ctx context.Context) error {
	track, err := c.neighbour(-1)
	if err != nil {
		return err
	}
	return c.PlayTrack(ctx, track)
}

func (c *PlaybackCoordinator) neighbour(step int) (domain.Track, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := len(c.visible)
	if n == 0 {
		return domain.Track{}, domain.ErrCatalogEmpty
	}

	i := -1
	if c.current != nil {
		_, i, _ = lo.FindIndexOf(c.visible, func(t domain.Track) bool { return t.ID == c.current.ID })
	}
	if i < 0 {
		return c.visible[0], nil
	}

	next := i + step
	if next < 0 || next >= n {
		if c.repeat != domain.RepeatAll {
			if step > 0 {
				return domain.Track{}, domain.ErrEndOfCatalog
			}
			return domain.Track{}, domain.ErrStartOfCatalog
		}
		next = (next + n) % n
	}
	return c.visible[next], nil
}

// SetRepeat changes the completion policy.
func (c *PlaybackCoordinator) SetRepeat(mode domain.RepeatMode) {
	c.mu.Lock()
	changed := c.repeat != mode
	c.repeat = mode
	c.mu.Unlock()

	if changed {
		c.bus.Publish(domain.NewRepeatModeChangedEvent(mode))
	}
}

func (c *PlaybackCoordinator) handlePlayingChanged(event domain.Event) {
	e, ok := event.(domain.PlayingStateChangedEvent)
	if !ok {
		return
	}
	c.mu.Lock()
	c.playing = e.Playing
	c.mu.Unlock()
}

func (c *PlaybackCoordinator) handleBackendSwitched(event domain.Event) {
	e, ok := event.(domain.BackendSwitchedEvent)
	if !ok {
		return
	}
	c.mu.Lock()
	c.backend = e.To
	c.mu.Unlock()
}

// handlePlaybackFailed records the backend that gave up. The controller
// does not announce a switch when the fallback never started.
func (c *PlaybackCoordinator) handlePlaybackFailed(event domain.Event) {
	e, ok := event.(domain.PlaybackFailedEvent)
	if !ok {
		return
	}
	backend := domain.BackendFallback
	var be *domain.BackendError
	if errors.As(e.Error, &be) {
		backend = be.Backend
	}

	c.mu.Lock()
	c.backend = backend
	c.playing = false
	c.mu.Unlock()
}

// completedCurrent accepts completions of the track the view considers current.
func (c *PlaybackCoordinator) completedCurrent(event domain.Event) bool {
	e, ok := event.(domain.TrackCompletedEvent)
	if !ok {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed && c.current != nil && c.current.ID == e.Track.ID
}

// handleTrackCompleted applies the repeat policy. It runs on the controller's
// event goroutine, so it may call back into the controller.
func (c *PlaybackCoordinator) handleTrackCompleted(event domain.Event) {
	e, ok := event.(domain.TrackCompletedEvent)
	if !ok {
		return
	}

	c.mu.RLock()
	mode := c.repeat
	c.mu.RUnlock()

	var err error
	switch mode {
	case domain.RepeatOne:
		err = c.PlayTrack(context.Background(), e.Track)
	case domain.RepeatAll:
		err = c.Next(context.Background())
	default:
		return
	}
	if err != nil && !errors.Is(err, domain.ErrReleased) {
		c.logger.Warn("repeat failed", slog.String("mode", mode.String()), slog.Any("error", err))
	}
}

// View returns a snapshot of the view state.
func (c *PlaybackCoordinator) View() ViewState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v := ViewState{
		Tracks:     append([]domain.Track(nil), c.visible...),
		Search:     c.search,
		SearchMode: c.searchMode,
		Sort:       c.sortKey,
		Repeat:     c.repeat,
		Playing:    c.playing,
		Position:   c.position,
		Duration:   c.duration,
		Backend:    c.backend,
		Lyrics:     append(domain.Timeline(nil), c.timeline...),
		LyricIndex: c.lyricIndex,
	}
	if c.current != nil {
		track := *c.current
		v.Current = &track
	}
	return v
}

// Close stops the clock, then releases the controller, then drops bus
// subscriptions. Calling it again is a no-op.
func (c *PlaybackCoordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	c.clock.Stop()
	err := c.controller.Release()
	for _, id := range subs {
		c.bus.Unsubscribe(id)
	}

	c.logger.Debug("playback coordinator closed")
	return err
}
