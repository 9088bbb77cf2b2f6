package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"imagetalk/core"

	"github.com/zaf/g711"
)

// WAV format constants
const (
	bitsPerSample  = 16
	audioFormatPCM = 1
	subchunk1Size  = 16
	wavHeaderSize  = 44
)

// ULawBytesToPCM converts µ-law bytes to PCM bytes
func ULawBytesToPCM(uBytes []byte) []byte {
	return g711.DecodeUlaw(uBytes)
}

// ALawBytesToPCM converts A-law bytes to PCM bytes
func ALawBytesToPCM(aBytes []byte) []byte {
	return g711.DecodeAlaw(aBytes)
}

// ToPCM returns the chunk payload as 16-bit linear PCM, decoding G.711 if needed.
// A PCM payload that still carries a WAV header is unwrapped.
func ToPCM(chunk core.AudioChunk) ([]byte, error) {
	data := chunk.Bytes()
	if len(data) == 0 {
		return nil, errors.New("audio chunk is empty")
	}
	switch chunk.Format {
	case core.PCM:
		pcm, err := UnwrapWAV(data)
		if err != nil {
			return nil, err
		}
		if len(pcm) == 0 {
			return nil, errors.New("audio chunk is empty")
		}
		return pcm, nil
	case core.ULAW:
		return ULawBytesToPCM(data), nil
	case core.ALAW:
		return ALawBytesToPCM(data), nil
	default:
		return nil, fmt.Errorf("unsupported audio format %d", chunk.Format)
	}
}

// PCMBytesToWavBytes wraps PCM []byte into WAV []byte (16-bit little endian)
func PCMBytesToWavBytes(pcm []byte, numChannels, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("PCM data is empty")
	}
	if numChannels <= 0 || numChannels > 2 {
		return nil, errors.New("only mono (1) or stereo (2) channels supported")
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if len(pcm)%(2*numChannels) != 0 {
		return nil, errors.New("PCM data length doesn't match channel count")
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))

	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)
	fileSize := 36 + dataSize

	// RIFF header
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(fileSize))
	buf.WriteString("WAVE")

	// fmt sub-chunk
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(subchunk1Size))
	binary.Write(buf, binary.LittleEndian, uint16(audioFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	// data sub-chunk
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// ChunkToWavBytes converts a captured or synthesized chunk into a WAV file.
func ChunkToWavBytes(chunk core.AudioChunk) ([]byte, error) {
	pcm, err := ToPCM(chunk)
	if err != nil {
		return nil, err
	}
	return PCMBytesToWavBytes(pcm, chunk.Channels, chunk.SampleRate)
}

// UnwrapWAV returns the samples of the "data" chunk when b is a RIFF/WAVE
// file and b itself otherwise.
func UnwrapWAV(b []byte) ([]byte, error) {
	if len(b) < 12 || string(b[:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return b, nil
	}
	for rest := b[12:]; len(rest) >= 8; {
		id := string(rest[:4])
		size := int(binary.LittleEndian.Uint32(rest[4:8]))
		body := rest[8:]
		if id == "data" {
			if size > len(body) {
				return nil, fmt.Errorf("wav data chunk declares %d bytes, %d present", size, len(body))
			}
			return body[:size], nil
		}
		// Chunks are word aligned.
		skip := size + size%2
		if skip > len(body) {
			break
		}
		rest = body[skip:]
	}
	return nil, errors.New("wav file has no data chunk")
}
