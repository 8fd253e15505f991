package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// ErrNotWAV reports a file that is not a decodable PCM WAV.
var ErrNotWAV = errors.New("not a PCM wav file")

// ReadWAV decodes a PCM WAV file into a float32 waveform scaled to [-1, 1).
func ReadWAV(path string) (Waveform, error) {
	file, err := os.Open(path)
	if err != nil {
		return Waveform{}, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return Waveform{}, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}
	if decoder.WavAudioFormat != wavFormatPCM && decoder.WavAudioFormat != wavFormatExtensible {
		return Waveform{}, fmt.Errorf("%s: audio format %d: %w", path, decoder.WavAudioFormat, ErrNotWAV)
	}
	bitDepth := int(decoder.BitDepth)
	if bitDepth != 8 && bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return Waveform{}, fmt.Errorf("%s: unsupported bit depth %d", path, bitDepth)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("decode %s: %w", path, err)
	}

	channels := int(decoder.NumChans)
	if channels <= 0 {
		return Waveform{}, fmt.Errorf("%s: no channels", path)
	}
	frames := len(buf.Data) / channels

	// 8-bit PCM is unsigned; everything wider is signed.
	scale := float32(int64(1) << (bitDepth - 1))
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	data := make([]float32, frames*channels)
	for i := range data {
		data[i] = float32(buf.Data[i]-offset) / scale
	}
	return Deinterleave(int(decoder.SampleRate), channels, data)
}

// WriteWAV encodes w as PCM WAV at the given bit depth (16 or 24). Samples are
// clamped to [-1, 1]. The file is written to a temporary sibling and renamed
// into place, so readers never observe a partial file.
func WriteWAV(path string, w Waveform, bitDepth int) (err error) {
	if bitDepth != 16 && bitDepth != 24 {
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if err := w.Validate(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	channels := w.Channels()
	encoder := wav.NewEncoder(tmp, w.SampleRate, bitDepth, channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: w.SampleRate},
		Data:           quantize(w, bitDepth),
		SourceBitDepth: bitDepth,
	}
	if err = encoder.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err = encoder.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod wav: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync wav: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename wav into place: %w", err)
	}
	return nil
}

func quantize(w Waveform, bitDepth int) []int {
	peak := float64(int64(1)<<(bitDepth-1) - 1)
	samples := w.Interleave()
	data := make([]int, len(samples))
	for i, v := range samples {
		x := float64(v)
		switch {
		case math.IsNaN(x):
			x = 0
		case x > 1:
			x = 1
		case x < -1:
			x = -1
		}
		data[i] = int(math.Round(x * peak))
	}
	return data
}
