package backend

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/hraban/opus"
)

// Ogg Opus always decodes at 48 kHz.
const opusSampleRate = beep.SampleRate(48000)

// opusStreamer adapts an Ogg Opus stream to beep. The stream is not seekable.
type opusStreamer struct {
	stream   *opus.Stream
	src      io.Closer
	channels int
	pcm      []int16
	buffer   [][2]float64
	position int
	done     bool
	err      error
}

func decodeOpus(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	br := bufio.NewReaderSize(rc, 4096)
	channels := opusChannels(br)

	stream, err := opus.NewStream(br)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to open opus stream: %w", err)
	}

	s := &opusStreamer{
		stream:   stream,
		src:      rc,
		channels: channels,
		pcm:      make([]int16, 5760*channels),
	}
	return s, beep.Format{SampleRate: opusSampleRate, NumChannels: 2, Precision: 2}, nil
}

// opusChannels reads the channel count from the OpusHead packet, defaulting to stereo.
func opusChannels(br *bufio.Reader) int {
	head, _ := br.Peek(512)
	idx := bytes.Index(head, []byte("OpusHead"))
	if idx < 0 || idx+9 >= len(head) {
		return 2
	}
	if head[idx+9] == 1 {
		return 1
	}
	return 2
}

func (s *opusStreamer) Stream(samples [][2]float64) (int, bool) {
	filled := 0
	for filled < len(samples) {
		if len(s.buffer) == 0 {
			if s.done || !s.fill() {
				break
			}
		}
		n := copy(samples[filled:], s.buffer)
		s.buffer = s.buffer[n:]
		filled += n
	}
	s.position += filled
	return filled, filled > 0
}

func (s *opusStreamer) fill() bool {
	n, err := s.stream.Read(s.pcm)
	if err != nil {
		s.done = true
		if !errors.Is(err, io.EOF) {
			s.err = err
		}
		return false
	}

	for i := 0; i < n; i++ {
		var l, r float64
		if s.channels == 1 {
			l = float64(s.pcm[i]) / 32768.0
			r = l
		} else {
			l = float64(s.pcm[i*2]) / 32768.0
			r = float64(s.pcm[i*2+1]) / 32768.0
		}
		s.buffer = append(s.buffer, [2]float64{l, r})
	}
	return true
}

func (s *opusStreamer) Err() error    { return s.err }
func (s *opusStreamer) Len() int      { return 0 }
func (s *opusStreamer) Position() int { return s.position }

func (s *opusStreamer) Seek(int) error { return ErrUnsupported }

func (s *opusStreamer) Close() error {
	err := s.stream.Close()
	if cerr := s.src.Close(); err == nil {
		err = cerr
	}
	return err
}
