// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package stt

import (
	"bytes"
	"encoding/binary"
)

const (
	wavHeaderSize  = 44
	bytesPerSample = 2
)

// segmentBuffer accumulates PCM frames for one speech segment and
// renders them as a WAV container for the recognizer.
type segmentBuffer struct {
	sampleRate int
	channels   int
	pcm        bytes.Buffer
}

func newSegmentBuffer(sampleRate, channels int) *segmentBuffer {
	return &segmentBuffer{sampleRate: sampleRate, channels: channels}
}

func (b *segmentBuffer) WriteFrame(frame []byte) {
	b.pcm.Write(frame)
}

func (b *segmentBuffer) Len() int {
	return b.pcm.Len()
}

func (b *segmentBuffer) Reset() {
	b.pcm.Reset()
}

// Bytes renders the buffered PCM as a 16-bit little-endian WAV file.
func (b *segmentBuffer) Bytes() []byte {
	data := b.pcm.Bytes()
	out := make([]byte, 0, wavHeaderSize+len(data))
	buf := bytes.NewBuffer(out)

	byteRate := b.sampleRate * b.channels * bytesPerSample
	blockAlign := b.channels * bytesPerSample

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(data))) //nolint:golint,errcheck
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))            //nolint:golint,errcheck
	binary.Write(buf, binary.LittleEndian, uint16(1))             //nolint:golint,errcheck
	binary.Write(buf, binary.LittleEndian, uint16(b.channels))    //nolint:golint,errcheck
	binary.Write(buf, binary.LittleEndian, uint32(b.sampleRate))  //nolint:golint,errcheck
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))      //nolint:golint,errcheck
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))    //nolint:golint,errcheck
	binary.Write(buf, binary.LittleEndian, uint16(8*bytesPerSample)) //nolint:golint,errcheck

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(data))) //nolint:golint,errcheck
	buf.Write(data)

	return buf.Bytes()
}
