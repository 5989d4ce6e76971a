package sample

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// FileLoader resolves an effect id to a WAV or OGG Vorbis file named
// "<effectID>.wav" / "<effectID>.ogg" under Dir, decoding it fully into
// mono 16-bit PCM on first reference (spec §4.1 "Loader").
type FileLoader struct {
	Dir string
}

// Load implements Loader by scanning Dir for a file stem matching effectID.
func (f FileLoader) Load(effectID int32) (data []byte, bytesPerSample int, rateHz uint32, numSamples uint32, ok bool) {
	stem := strconv.Itoa(int(effectID))
	path, ext := f.resolve(stem)
	if path == "" {
		return nil, 0, 0, 0, false
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, 0, false
	}
	defer file.Close()

	var streamer beep.StreamSeekCloser
	var format beep.Format
	if ext == ".wav" {
		streamer, format, err = wav.Decode(file)
	} else {
		streamer, format, err = vorbis.Decode(file)
	}
	if err != nil {
		return nil, 0, 0, 0, false
	}
	defer streamer.Close()

	samples := make([][2]float64, streamer.Len())
	n, _ := beep.Take(streamer.Len(), streamer).Stream(samples)
	samples = samples[:n]

	out := make([]byte, n*2)
	for i, pair := range samples {
		mono := (pair[0] + pair[1]) / 2
		v := int16(mono * 32767.0)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}

	return out, 2, uint32(format.SampleRate), uint32(n), true
}

func (f FileLoader) resolve(stem string) (path string, ext string) {
	for _, candidate := range []string{".wav", ".ogg"} {
		p := filepath.Join(f.Dir, stem+candidate)
		if _, err := os.Stat(p); err == nil {
			return p, candidate
		}
	}
	return "", ""
}

// NewFileLoader validates dir and returns a FileLoader rooted there.
func NewFileLoader(dir string) (FileLoader, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return FileLoader{}, fmt.Errorf("sample: sound directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return FileLoader{}, fmt.Errorf("sample: %s is not a directory", dir)
	}
	return FileLoader{Dir: strings.TrimRight(dir, "/")}, nil
}
