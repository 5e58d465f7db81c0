package audio

import (
	"encoding/binary"
	"errors"
)

// ErrOddPayload is returned when a raw stream cannot be 16-bit samples.
var ErrOddPayload = errors.New("audio: pcm payload is not 16-bit aligned")

const headerSize = 44

// EncodeWAV applies gain to raw 16-bit little-endian mono PCM, clips to the
// int16 range, and wraps the result in a standard WAV container at the given
// sample rate. The wearable's microphone is quiet; without gain the
// transcription worker hears silence.
func EncodeWAV(raw []byte, gain, sampleRate int) ([]byte, error) {
	if len(raw)%2 != 0 {
		return nil, ErrOddPayload
	}

	out := make([]byte, headerSize+len(raw))
	writeHeader(out, len(raw), sampleRate)

	for i := 0; i < len(raw); i += 2 {
		sample := int(int16(binary.LittleEndian.Uint16(raw[i:]))) * gain
		if sample > 32767 {
			sample = 32767
		} else if sample < -32768 {
			sample = -32768
		}
		binary.LittleEndian.PutUint16(out[headerSize+i:], uint16(int16(sample)))
	}

	return out, nil
}

// writeHeader fills in a canonical 44-byte PCM WAV header: mono, 16-bit.
func writeHeader(buf []byte, dataLen, sampleRate int) {
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)          // fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)           // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1)           // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)           // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)          // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
}
