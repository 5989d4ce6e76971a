package driver

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// MusicStream decodes and streams a music track (OGG Vorbis or WAV)
// without loading the whole file into memory, resampling to the
// mixer's target rate on the fly (spec §4.5 "music interface",
// adapted from this codebase's streaming music player).
type MusicStream struct {
	mu sync.Mutex

	streamer beep.StreamSeekCloser
	format   beep.Format
	resampled beep.Streamer

	volume  float64
	enabled bool
	loaded  bool
	looping bool

	filePath         string
	targetSampleRate int
}

// NewMusicStream creates a stream targeting targetSampleRate. Load must
// be called before streaming begins.
func NewMusicStream(targetSampleRate int) *MusicStream {
	return &MusicStream{
		volume:           1.0,
		enabled:          true,
		targetSampleRate: targetSampleRate,
	}
}

// Load opens filePath and initializes the streaming decoder, picking the
// decoder by file extension. Returns an error without panicking; callers
// are expected to fall back to silence on failure (spec §7 graceful
// degradation pattern).
func (m *MusicStream) Load(filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streamer != nil {
		m.streamer.Close()
	}

	file, err := os.Open(filePath)
	if err != nil {
		return err
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch {
	case strings.HasSuffix(strings.ToLower(filePath), ".wav"):
		streamer, format, err = wav.Decode(file)
	default:
		streamer, format, err = vorbis.Decode(file)
	}
	if err != nil {
		file.Close()
		return fmt.Errorf("music stream: decode %s: %w", filePath, err)
	}

	m.streamer = streamer
	m.format = format
	m.filePath = filePath
	m.loaded = true

	log.Printf("music stream loaded: %s (%d Hz, %d channels)", filePath, format.SampleRate, format.NumChannels)

	if int(format.SampleRate) != m.targetSampleRate {
		m.resampled = beep.Resample(4, format.SampleRate, beep.SampleRate(m.targetSampleRate), m.streamer)
	} else {
		m.resampled = m.streamer
	}
	return nil
}

// ReadSamples fills buffer with interleaved stereo int16 PCM, looping
// seamlessly at end of stream when looping is enabled. Returns silence
// if nothing is loaded or playback is disabled.
func (m *MusicStream) ReadSamples(buffer []int16) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded || !m.enabled || m.resampled == nil {
		for i := range buffer {
			buffer[i] = 0
		}
		return len(buffer)
	}

	numStereo := len(buffer) / 2
	work := make([][2]float64, numStereo)
	n, ok := m.resampled.Stream(work)

	if (!ok || n < numStereo) && m.looping {
		if seeker, isSeeker := m.streamer.(beep.StreamSeeker); isSeeker {
			if err := seeker.Seek(0); err != nil {
				log.Printf("music stream: loop seek failed: %v", err)
			}
		}
		if n < numStereo {
			m.resampled.Stream(work[n:numStereo])
		}
	}

	vol := m.volume
	for i := 0; i < numStereo; i++ {
		buffer[i*2] = floatToInt16(work[i][0] * vol)
		buffer[i*2+1] = floatToInt16(work[i][1] * vol)
	}
	return len(buffer)
}

func floatToInt16(s float64) int16 {
	scaled := s * 32767.0
	if scaled > 30000 {
		scaled = 30000 + (scaled-30000)/4
	} else if scaled < -30000 {
		scaled = -30000 + (scaled+30000)/4
	}
	if scaled > 32767 {
		scaled = 32767
	} else if scaled < -32768 {
		scaled = -32768
	}
	return int16(scaled)
}

// SetVolume sets playback volume, clamped to 0..1.
func (m *MusicStream) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	m.volume = v
}

// SetLooping toggles seamless looping at end of stream.
func (m *MusicStream) SetLooping(loop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.looping = loop
}

// SetEnabled enables or disables playback without discarding the decoder.
func (m *MusicStream) SetEnabled(e bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = e
}

// IsLoaded reports whether a track is currently loaded.
func (m *MusicStream) IsLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Close releases the underlying decoder.
func (m *MusicStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streamer != nil {
		return m.streamer.Close()
	}
	m.loaded = false
	return nil
}
