package beepaudio

import (
	"fmt"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Output is the sink the backend mixes its streamers into.
// Lock and Unlock guard every access to a streamer that is being played.
type Output interface {
	Play(s beep.Streamer)
	Lock()
	Unlock()
}

var (
	speakerOnce sync.Once
	speakerRate beep.SampleRate
	speakerErr  error
)

type speakerOutput struct{}

// NewSpeakerOutput initializes the process-wide beep speaker on first use.
// Later calls reuse the first sample rate; requesting a different one is an error.
func NewSpeakerOutput(sampleRate beep.SampleRate, bufferFrames int) (Output, error) {
	speakerOnce.Do(func() {
		speakerRate = sampleRate
		speakerErr = speaker.Init(sampleRate, bufferFrames)
	})
	if speakerErr != nil {
		return nil, fmt.Errorf("init speaker: %w", speakerErr)
	}
	if speakerRate != sampleRate {
		return nil, fmt.Errorf("speaker already running at %d Hz, requested %d Hz", speakerRate, sampleRate)
	}
	return speakerOutput{}, nil
}

func (speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (speakerOutput) Lock()                { speaker.Lock() }
func (speakerOutput) Unlock()              { speaker.Unlock() }
