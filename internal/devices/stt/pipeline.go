// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package stt

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lnxusr1/kenzy/internal/config"
)

// frameEntry pairs a frame with its voice-activity score inside the
// padding ring.
type frameEntry struct {
	frame  []byte
	voiced bool
}

// ring is the fixed-size padding window the segmenter looks at before
// a trigger and while deciding to close.
type ring struct {
	entries []frameEntry
	max     int
}

func newRing(max int) *ring {
	if max < 1 {
		max = 1
	}
	return &ring{max: max}
}

func (r *ring) Add(entry frameEntry) {
	r.entries = append(r.entries, entry)
	if len(r.entries) > r.max {
		r.entries = r.entries[1:]
	}
}

func (r *ring) Voiced() int {
	n := 0
	for _, e := range r.entries {
		if e.voiced {
			n++
		}
	}
	return n
}

func (r *ring) Unvoiced() int {
	return len(r.entries) - r.Voiced()
}

func (r *ring) Clear() {
	r.entries = nil
}

// pipeline is the staged STT runtime:
//
//	mic → capture → [frame] → VAD+wake+ASR → [text] → emitter → hub
//
// The inter-stage channels hold a single element and senders drop the
// oldest entry when full: when the model stage falls behind, frames
// are discarded rather than buffered so the pipeline stays real-time.
type pipeline struct {
	cfg        config.STT
	source     Source
	vad        VAD
	wake       WakeDetector
	recognizer Recognizer

	muted *atomic.Bool
	emit  func(text string)
	fail  func()

	frameCh chan []byte
	textCh  chan string
	stop    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

func newPipeline(cfg config.STT, source Source, vad VAD, wake WakeDetector, recognizer Recognizer,
	muted *atomic.Bool, emit func(string), fail func()) *pipeline {
	return &pipeline{
		cfg:        cfg,
		source:     source,
		vad:        vad,
		wake:       wake,
		recognizer: recognizer,
		muted:      muted,
		emit:       emit,
		fail:       fail,
		frameCh:    make(chan []byte, 1),
		textCh:     make(chan string, 1),
		stop:       make(chan struct{}),
	}
}

func (p *pipeline) start() error {
	if err := p.source.Start(); err != nil {
		return err
	}
	p.running.Store(true)
	p.wg.Add(3)
	go p.capture()
	go p.model()
	go p.emitter()
	return nil
}

func (p *pipeline) shutdown() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	p.source.Close()
	p.wg.Wait()
	p.running.Store(false)
}

func (p *pipeline) alive() bool {
	return p.running.Load()
}

// abort is called by a worker that hit an unrecoverable error: flag
// the device for a supervisor restart and wind the pipeline down.
func (p *pipeline) abort(stage string, err error) {
	slog.Error("STT stage failed, requesting restart", "stage", stage, "error", err)
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	p.running.Store(false)
	p.fail()
}

func (p *pipeline) stopped() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

// tryPut implements newest-wins delivery on a capacity-1 channel.
func tryPut[T any](ch chan T, value T) {
	select {
	case ch <- value:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- value:
	default:
	}
}

// capture reads fixed-size frames from the audio source. Muted frames
// are discarded here, at the source, so nothing downstream sees them.
func (p *pipeline) capture() {
	defer p.wg.Done()
	for {
		if p.stopped() {
			return
		}
		frame, err := p.source.Read()
		if err != nil {
			if !p.stopped() {
				p.abort("capture", err)
			}
			return
		}
		if p.muted.Load() {
			continue
		}
		tryPut(p.frameCh, frame)
	}
}

// model is the single worker allowed to touch the VAD, wake-word, and
// recognition models. Triggering requires both a wake-word hit within
// the current window and sustained voice activity; when unvoiced
// frames dominate the padded window the segment closes and is
// transcribed.
func (p *pipeline) model() {
	defer p.wg.Done()

	frameMillis := p.cfg.FrameLength * 1000 / p.cfg.SampleRate
	padding := newRing(p.cfg.BufferPadding / frameMillis)
	segment := newSegmentBuffer(p.cfg.SampleRate, p.cfg.Channels)

	triggered := false
	wakeHit := false

	for {
		var frame []byte
		select {
		case <-p.stop:
			return
		case frame = <-p.frameCh:
		}

		if len(frame) < p.cfg.FrameLength*bytesPerSample {
			continue
		}

		if !wakeHit && !triggered {
			if p.wake.Score(frame) > p.cfg.WakeThreshold {
				slog.Debug("Wake word detected")
				wakeHit = true
			}
		}
		if !wakeHit {
			continue
		}

		voiced := p.vad.IsSpeech(frame, p.cfg.SampleRate)
		if !triggered {
			padding.Add(frameEntry{frame: frame, voiced: voiced})
			if float64(padding.Voiced()) > p.cfg.SpeechRatio*float64(padding.max) {
				triggered = true
				for _, e := range padding.entries {
					segment.WriteFrame(e.frame)
				}
				padding.Clear()
			}
			continue
		}

		segment.WriteFrame(frame)
		padding.Add(frameEntry{frame: frame, voiced: voiced})
		if float64(padding.Unvoiced()) > p.cfg.SpeechRatio*float64(padding.max) {
			triggered = false
			wakeHit = false
			p.wake.Reset()
			padding.Clear()

			text, err := p.recognizer.Transcribe(segment.Bytes())
			segment.Reset()
			if err != nil {
				p.abort("recognize", err)
				return
			}
			if p.stopped() {
				return
			}
			text = strings.TrimSpace(clipText(text))
			if text != "" {
				slog.Info("HEARD " + text)
				tryPut(p.textCh, text)
			}
		}
	}
}

// emitter forwards transcriptions to the hub.
func (p *pipeline) emitter() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case text := <-p.textCh:
			p.emit(text)
		}
	}
}

const maxTextLength = 255

func clipText(text string) string {
	if len(text) > maxTextLength {
		return text[:maxTextLength]
	}
	return text
}
