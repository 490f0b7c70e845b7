// Package wav encodes and decodes 16-bit PCM audio in a WAV container.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	headerSize     = 44
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
	formatPCM      = 1
)

// ErrInvalidFormat is returned when the data is not a PCM WAV file.
var ErrInvalidFormat = errors.New("invalid wav format")

// Encode wraps raw s16le PCM samples in a WAV container.
func Encode(pcm []byte, sampleRate, channels int) []byte {
	dataSize := len(pcm)
	buf := make([]byte, headerSize+dataSize)

	byteRate := sampleRate * channels * bytesPerSample
	blockAlign := channels * bytesPerSample

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[headerSize:], pcm)

	return buf
}

// Decode extracts s16le PCM samples from a WAV container.
// Only uncompressed 16-bit PCM is supported.
func Decode(data []byte) (pcm []byte, sampleRate, channels int, err error) {
	if len(data) < headerSize {
		return nil, 0, 0, fmt.Errorf("%w: %d bytes is too short", ErrInvalidFormat, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("%w: missing RIFF/WAVE magic", ErrInvalidFormat)
	}

	// Walk the chunks. Some encoders insert LIST or fact chunks before data.
	var (
		fmtFound  bool
		format    uint16
		bits      uint16
		dataChunk []byte
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, fmt.Errorf("%w: fmt chunk too small", ErrInvalidFormat)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = binary.LittleEndian.Uint16(data[body+14 : body+16])
			fmtFound = true
		case "data":
			dataChunk = data[body : body+size]
		}

		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !fmtFound || dataChunk == nil {
		return nil, 0, 0, fmt.Errorf("%w: missing fmt or data chunk", ErrInvalidFormat)
	}
	if format != formatPCM || bits != bitsPerSample {
		return nil, 0, 0, fmt.Errorf("%w: only 16-bit PCM is supported (format=%d bits=%d)", ErrInvalidFormat, format, bits)
	}

	return dataChunk, sampleRate, channels, nil
}
