// Package audio plays voice-over clips for matched script lines.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Library locates voice-over clips by script line id. Clips are raw mono
// signed 16-bit little-endian PCM files named "<id>.pcm".
type Library struct {
	dir string
}

// NewLibrary returns a library rooted at dir. An empty dir yields no clips.
func NewLibrary(dir string) *Library { return &Library{dir: dir} }

// Path returns where the clip for id lives.
func (l *Library) Path(id int) string {
	return filepath.Join(l.dir, fmt.Sprintf("%d.pcm", id))
}

// Load reads the clip for id. ok is false when no clip exists.
func (l *Library) Load(id int) (samples []float32, ok bool, err error) {
	if l == nil || l.dir == "" {
		return nil, false, nil
	}
	data, err := os.ReadFile(l.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return DecodePCM16(data), true, nil
}

// DecodePCM16 converts little-endian int16 samples to float32 in [-1, 1).
// A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		out[i] = float32(v) / 32768
	}
	return out
}
