package demucs

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"voiceover/internal/audio"
)

// maxHeaderBytes bounds a single protocol header line.
const maxHeaderBytes = 64 << 10

type handshake struct {
	Ready      bool     `json:"ready"`
	Error      string   `json:"error,omitempty"`
	Model      string   `json:"model"`
	SampleRate int      `json:"samplerate"`
	Channels   int      `json:"channels"`
	Sources    []string `json:"sources"`
	Device     string   `json:"device"`
}

type request struct {
	ID       uint64 `json:"id"`
	Channels int    `json:"channels"`
	Frames   int    `json:"frames"`
}

type response struct {
	ID       uint64 `json:"id"`
	Error    string `json:"error,omitempty"`
	Stems    int    `json:"stems"`
	Channels int    `json:"channels"`
	Frames   int    `json:"frames"`
}

func readHeader(r *bufio.Reader, v any) error {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return err
		}
		line = append(line, chunk...)
		if len(line) > maxHeaderBytes {
			return fmt.Errorf("protocol header exceeds %d bytes", maxHeaderBytes)
		}
		if !isPrefix {
			break
		}
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("decode protocol header %q: %w", truncate(string(line), 200), err)
	}
	return nil
}

func writeRequest(w io.Writer, id uint64, wf audio.Waveform) error {
	channels, frames := wf.Shape()
	header, err := json.Marshal(request{ID: id, Channels: channels, Frames: frames})
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(w, 1<<20)
	if _, err := bw.Write(append(header, '\n')); err != nil {
		return err
	}
	buf := make([]byte, 4*frames)
	for _, ch := range wf.Samples {
		for f, v := range ch {
			binary.LittleEndian.PutUint32(buf[4*f:], math.Float32bits(v))
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func readStems(r io.Reader, resp response, sampleRate int) ([]audio.Waveform, error) {
	if resp.Stems <= 0 || resp.Channels <= 0 || resp.Frames < 0 {
		return nil, fmt.Errorf("invalid response shape (%d, %d, %d)", resp.Stems, resp.Channels, resp.Frames)
	}
	buf := make([]byte, 4*resp.Frames)
	stems := make([]audio.Waveform, resp.Stems)
	for s := range stems {
		stem := audio.New(sampleRate, resp.Channels, resp.Frames)
		for c := 0; c < resp.Channels; c++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				return nil, fmt.Errorf("read stem %d channel %d: %w", s, c, err)
			}
			dst := stem.Samples[c]
			for f := range dst {
				dst[f] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*f:]))
			}
		}
		stems[s] = stem
	}
	return stems, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
