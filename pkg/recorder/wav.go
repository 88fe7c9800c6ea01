// Package recorder writes captured mono float32 audio to 16-bit PCM WAV
// files.
package recorder

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth  = 16
	numChans  = 1
	wavFormat = 1 // PCM
	maxInt16  = float32(math.MaxInt16)
)

// WAVRecorder encodes buffers into a WAV file. The file is only valid once
// Close has returned.
type WAVRecorder struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	file    *os.File
	encoder *wav.Encoder
	buf     *goaudio.IntBuffer
	frames  int64
	closed  bool
}

// NewWAVRecorder creates the file at path for audio at sampleRate.
func NewWAVRecorder(path string, sampleRate int, logger *slog.Logger) (*WAVRecorder, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	encoder := wav.NewEncoder(f, sampleRate, bitDepth, numChans, wavFormat)

	logger.Info("recording started", "path", path, "sample_rate", sampleRate)

	return &WAVRecorder{
		path:    path,
		logger:  logger,
		file:    f,
		encoder: encoder,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				SampleRate:  sampleRate,
				NumChannels: numChans,
			},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// WriteFrames appends frames to the file. Samples outside [-1, 1] are
// clipped and NaN samples are written as silence.
func (r *WAVRecorder) WriteFrames(frames []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("recorder closed")
	}

	if cap(r.buf.Data) < len(frames) {
		r.buf.Data = make([]int, len(frames))
	}
	r.buf.Data = r.buf.Data[:len(frames)]
	for i, s := range frames {
		r.buf.Data[i] = toPCM16(s)
	}

	if err := r.encoder.Write(r.buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", r.path, err)
	}
	r.frames += int64(len(frames))
	return nil
}

// toPCM16 clips s to [-1, 1] and scales it to a 16-bit sample. NaN maps
// to 0.
func toPCM16(s float32) int {
	if math.IsNaN(float64(s)) {
		return 0
	}
	return int(max(-1, min(1, s)) * maxInt16)
}

// Frames returns the number of frames written.
func (r *WAVRecorder) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Duration returns the length of the recorded audio.
func (r *WAVRecorder) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(float64(r.frames) / float64(r.buf.Format.SampleRate) * float64(time.Second))
}

// Path returns the output file path.
func (r *WAVRecorder) Path() string {
	return r.path
}

// Close finalizes the WAV header and closes the file.
func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	encErr := r.encoder.Close()
	syncErr := r.file.Sync()
	closeErr := r.file.Close()

	r.logger.Info("recording finished", "path", r.path, "frames", r.frames)

	for _, err := range []error{encErr, syncErr, closeErr} {
		if err != nil {
			return fmt.Errorf("failed to finalize %s: %w", r.path, err)
		}
	}
	return nil
}
