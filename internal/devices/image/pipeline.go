// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package image

import (
	"io"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
)

// Frame is one captured image in whatever encoding the source
// produces.
type Frame []byte

// Source produces frames from the camera. Read blocks until a frame
// is available and returns io.EOF when the input closes.
type Source interface {
	Start() error
	Read() (Frame, error)
	Close() error
}

// Detection is what the detector stage extracted from one frame.
type Detection struct {
	Motion  bool     `json:"motion"`
	Objects []string `json:"objects"`
	Faces   []string `json:"faces"`
}

// Detector analyzes one frame. Model-backed motion, object, and face
// detectors plug in through this interface.
type Detector interface {
	Detect(frame Frame) (Detection, error)
}

// pipeline mirrors the speech pipeline's shape: capture feeds a
// capacity-1 channel with newest-wins delivery, a single worker owns
// the detector models, and the emitter reports scene changes.
type pipeline struct {
	source   Source
	detector Detector
	emit     func(Detection)
	fail     func()

	frameCh chan Frame
	eventCh chan Detection
	stop    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

func newPipeline(source Source, detector Detector, emit func(Detection), fail func()) *pipeline {
	return &pipeline{
		source:   source,
		detector: detector,
		emit:     emit,
		fail:     fail,
		frameCh:  make(chan Frame, 1),
		eventCh:  make(chan Detection, 1),
		stop:     make(chan struct{}),
	}
}

func (p *pipeline) start() error {
	if err := p.source.Start(); err != nil {
		return err
	}
	p.running.Store(true)
	p.wg.Add(3)
	go p.capture()
	go p.detect()
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

func (p *pipeline) stopped() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

func (p *pipeline) abort(stage string, err error) {
	slog.Error("Image stage failed, requesting restart", "stage", stage, "error", err)
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	p.running.Store(false)
	p.fail()
}

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
		tryPut(p.frameCh, frame)
	}
}

// detect is the single worker allowed to touch the detector models.
// Only scene changes are forwarded.
func (p *pipeline) detect() {
	defer p.wg.Done()
	var last Detection
	seen := false
	for {
		var frame Frame
		select {
		case <-p.stop:
			return
		case frame = <-p.frameCh:
		}

		detection, err := p.detector.Detect(frame)
		if err != nil {
			p.abort("detect", err)
			return
		}
		if seen && reflect.DeepEqual(detection, last) {
			continue
		}
		last = detection
		seen = true
		tryPut(p.eventCh, detection)
	}
}

func (p *pipeline) emitter() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case detection := <-p.eventCh:
			p.emit(detection)
		}
	}
}

// nullSource produces no frames; it stands in until a camera-backed
// source is wired and keeps the device startable on headless nodes.
type nullSource struct {
	closed chan struct{}
}

// NewNullSource creates a source that blocks until closed.
func NewNullSource() Source {
	return &nullSource{closed: make(chan struct{})}
}

func (s *nullSource) Start() error { return nil }

func (s *nullSource) Read() (Frame, error) {
	<-s.closed
	return nil, io.EOF
}

func (s *nullSource) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

// FrameDiffDetector is the built-in motion detector: it reports motion
// when the byte-level difference between consecutive frames crosses
// the threshold fraction.
type FrameDiffDetector struct {
	threshold float64
	mu        sync.Mutex
	last      Frame
}

// NewFrameDiffDetector creates the default detector.
func NewFrameDiffDetector(threshold float64) *FrameDiffDetector {
	return &FrameDiffDetector{threshold: threshold}
}

// Detect compares the frame against the previous one.
func (d *FrameDiffDetector) Detect(frame Frame) (Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	detection := Detection{Objects: []string{}, Faces: []string{}}
	if d.last != nil && len(d.last) == len(frame) {
		diff := 0
		for i := range frame {
			if frame[i] != d.last[i] {
				diff++
			}
		}
		if len(frame) > 0 && float64(diff)/float64(len(frame)) > d.threshold {
			detection.Motion = true
		}
	}
	d.last = frame
	return detection, nil
}
