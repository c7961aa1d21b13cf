// Package wav reads and writes RIFF/WAVE containers around raw PCM.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/haivivi/loopscribe/pkg/audio/pcm"
)

const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

// ErrInvalid is returned when a stream is not a usable WAVE file.
var ErrInvalid = errors.New("wav: invalid file")

// header is the canonical 44-byte WAVE header.
type header struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// Write writes data as a WAVE file in format f.
func Write(w io.Writer, f pcm.Format, data []byte) error {
	if err := f.Validate(); err != nil {
		return err
	}
	tag := uint16(formatPCM)
	if f.Float {
		tag = formatIEEEFloat
	}
	h := header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(data)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   tag,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.BytesRate()),
		BlockAlign:    uint16(f.FrameBytes()),
		BitsPerSample: uint16(f.Depth),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(data)),
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("wav: write header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("wav: write data: %w", err)
	}
	return nil
}

// Marshal returns data wrapped in a WAVE container.
func Marshal(f pcm.Format, data []byte) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 44+len(data)))
	if err := Write(buf, f, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Read parses a WAVE stream and returns its format and sample data.
// Chunks other than "fmt " and "data" are skipped.
func Read(r io.Reader) (pcm.Format, []byte, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return pcm.Format{}, nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return pcm.Format{}, nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalid)
	}

	var (
		f       pcm.Format
		haveFmt bool
	)
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			return pcm.Format{}, nil, fmt.Errorf("%w: missing data chunk", ErrInvalid)
		}
		id := string(ch[0:4])
		size := int64(binary.LittleEndian.Uint32(ch[4:8]))

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return pcm.Format{}, nil, fmt.Errorf("%w: short fmt chunk", ErrInvalid)
			}
			var err error
			if f, err = parseFmt(body); err != nil {
				return pcm.Format{}, nil, err
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return pcm.Format{}, nil, fmt.Errorf("%w: data before fmt", ErrInvalid)
			}
			data, err := io.ReadAll(io.LimitReader(r, size))
			if err != nil {
				return pcm.Format{}, nil, fmt.Errorf("wav: read data: %w", err)
			}
			return f, data, nil
		default:
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return pcm.Format{}, nil, fmt.Errorf("%w: short %q chunk", ErrInvalid, id)
			}
			continue
		}
		if size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return pcm.Format{}, nil, fmt.Errorf("%w: %v", ErrInvalid, err)
			}
		}
	}
}

func parseFmt(b []byte) (pcm.Format, error) {
	if len(b) < 16 {
		return pcm.Format{}, fmt.Errorf("%w: fmt chunk too short", ErrInvalid)
	}
	tag := binary.LittleEndian.Uint16(b[0:2])
	if tag == formatExtensible && len(b) >= 26 {
		tag = binary.LittleEndian.Uint16(b[24:26])
	}
	f := pcm.Format{
		Channels:   int(binary.LittleEndian.Uint16(b[2:4])),
		SampleRate: int(binary.LittleEndian.Uint32(b[4:8])),
		Depth:      int(binary.LittleEndian.Uint16(b[14:16])),
	}
	switch tag {
	case formatPCM:
	case formatIEEEFloat:
		f.Float = true
	default:
		return pcm.Format{}, fmt.Errorf("%w: unsupported audio format %d", ErrInvalid, tag)
	}
	if err := f.Validate(); err != nil {
		return pcm.Format{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return f, nil
}
