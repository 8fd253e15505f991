package demucs

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strings"
	"testing"

	"voiceover/internal/audio"
)

func TestWriteRequestFraming(t *testing.T) {
	w := audio.Waveform{SampleRate: 44100, Samples: [][]float32{{1, 2}, {3, 4}}}
	var buf bytes.Buffer
	if err := writeRequest(&buf, 7, w); err != nil {
		t.Fatalf("writeRequest: %v", err)
	}
	r := bufio.NewReader(&buf)
	var req request
	if err := readHeader(r, &req); err != nil {
		t.Fatalf("readHeader: %v", err)
	}
	if req.ID != 7 || req.Channels != 2 || req.Frames != 2 {
		t.Fatalf("unexpected header %+v", req)
	}
	payload, _ := io.ReadAll(r)
	if len(payload) != 16 {
		t.Fatalf("expected 16 payload bytes, got %d", len(payload))
	}
	// Channel-major: channel 0 frames then channel 1 frames.
	for i, want := range []float32{1, 2, 3, 4} {
		got := math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:]))
		if got != want {
			t.Fatalf("sample %d = %v, want %v", i, got, want)
		}
	}
}

func TestReadStems(t *testing.T) {
	var payload []byte
	for _, v := range []float32{1, 2, 3, 4, 5, 6, 7, 8} {
		payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(v))
	}
	stems, err := readStems(bytes.NewReader(payload), response{Stems: 2, Channels: 2, Frames: 2}, 44100)
	if err != nil {
		t.Fatalf("readStems: %v", err)
	}
	if stems[1].Samples[0][1] != 6 || stems[0].Samples[1][0] != 3 || stems[1].SampleRate != 44100 {
		t.Fatalf("unexpected stems %+v", stems)
	}
	if _, err := readStems(bytes.NewReader(payload[:10]), response{Stems: 2, Channels: 2, Frames: 2}, 44100); err == nil {
		t.Fatal("expected short read error")
	}
	if _, err := readStems(bytes.NewReader(nil), response{Stems: 0, Channels: 2, Frames: 2}, 44100); err == nil {
		t.Fatal("expected invalid shape error")
	}
}

func TestReadHeaderRejectsGarbage(t *testing.T) {
	var resp response
	if err := readHeader(bufio.NewReader(strings.NewReader("Downloading model...\n")), &resp); err == nil {
		t.Fatal("expected decode error for non-JSON line")
	}
}
