package kml

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"indicadores/dashboard-go/internal/mapview"
)

type loadState int

const (
	stateLoading loadState = iota
	stateReady
	stateFailed
)

// ErrEmpty is reported when a document parses but holds no drawable placemark.
var ErrEmpty = errors.New("kml: no placemarks with geometry")

// Sublayer is one placemark drawn on the map. It is only valid inside EachLayer.
type Sublayer struct {
	Placemark Placemark
	style     mapview.Style
}

// SetStyle restyles vector sublayers. Points have no path style and report false.
func (s *Sublayer) SetStyle(st mapview.Style) bool {
	if _, ok := s.Placemark.Geometry.(orb.Point); ok {
		return false
	}
	s.style = st
	return true
}

func (s *Sublayer) Style() mapview.Style { return s.style }

// Layer is a KML overlay that is attachable before its content has loaded. It implements
// mapview.Layer and mapview.Watcher.
type Layer struct {
	id     string
	source string

	mu        sync.Mutex
	state     loadState
	err       error
	sublayers []*Sublayer
	onReady   []func(*Layer)
	onError   []func(error)
	watchers  map[int]func()
	nextWatch int
}

func newLayer(id, source string) *Layer {
	return &Layer{id: id, source: source, watchers: map[int]func(){}}
}

func (l *Layer) ID() string     { return l.id }
func (l *Layer) Source() string { return l.source }

// Loaded reports whether loading has settled, and its error if it failed.
func (l *Layer) Loaded() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state != stateLoading, l.err
}

// OnReady registers fn for the ready event. If the layer is already ready fn runs at once.
func (l *Layer) OnReady(fn func(*Layer)) *Layer {
	l.mu.Lock()
	if l.state == stateLoading {
		l.onReady = append(l.onReady, fn)
		l.mu.Unlock()
		return l
	}
	ready := l.state == stateReady
	l.mu.Unlock()
	if ready {
		fn(l)
	}
	return l
}

// OnError registers fn for the error event. If loading already failed fn runs at once.
func (l *Layer) OnError(fn func(error)) *Layer {
	l.mu.Lock()
	if l.state == stateLoading {
		l.onError = append(l.onError, fn)
		l.mu.Unlock()
		return l
	}
	err := l.err
	failed := l.state == stateFailed
	l.mu.Unlock()
	if failed {
		fn(err)
	}
	return l
}

func (l *Layer) settle(pms []Placemark, err error) {
	l.mu.Lock()
	if l.state != stateLoading {
		l.mu.Unlock()
		return
	}
	var (
		ready  []func(*Layer)
		failed []func(error)
	)
	if err != nil {
		l.state, l.err = stateFailed, err
		failed = l.onError
	} else {
		l.state = stateReady
		l.sublayers = make([]*Sublayer, 0, len(pms))
		for _, pm := range pms {
			l.sublayers = append(l.sublayers, &Sublayer{Placemark: pm})
		}
		ready = l.onReady
	}
	l.onReady, l.onError = nil, nil
	l.mu.Unlock()

	if err == nil {
		l.changed()
	}
	for _, fn := range ready {
		fn(l)
	}
	for _, fn := range failed {
		fn(err)
	}
}

// EachLayer visits every sublayer. Style changes made by fn are published once it returns.
func (l *Layer) EachLayer(fn func(*Sublayer)) {
	l.mu.Lock()
	for _, s := range l.sublayers {
		fn(s)
	}
	l.mu.Unlock()
	l.changed()
}

// SetStyle restyles every vector sublayer.
func (l *Layer) SetStyle(st mapview.Style) {
	l.EachLayer(func(s *Sublayer) { s.SetStyle(st) })
}

func (l *Layer) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sublayers)
}

func (l *Layer) Watch(fn func()) func() {
	l.mu.Lock()
	id := l.nextWatch
	l.nextWatch++
	l.watchers[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.watchers, id)
		l.mu.Unlock()
	}
}

func (l *Layer) changed() {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.watchers))
	for _, fn := range l.watchers {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (l *Layer) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.sublayers {
		f := geojson.NewFeature(s.Placemark.Geometry)
		f.Properties["name"] = s.Placemark.Name
		if s.Placemark.Description != "" {
			f.Properties["popup"] = s.Placemark.Description
		}
		if s.Placemark.Folder != "" {
			f.Properties["folder"] = s.Placemark.Folder
		}
		if !s.style.IsZero() {
			f.Properties["style"] = s.style
		}
		fc.Append(f)
	}
	return fc
}

// Bounds is empty until the layer is ready.
func (l *Layer) Bounds() (orb.Bound, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var (
		b  orb.Bound
		ok bool
	)
	for _, s := range l.sublayers {
		b, ok = mapview.Extend(b, ok, s.Placemark.Geometry.Bound())
	}
	return b, ok
}

// Loader opens KML documents from a file system, typically the static assets.
type Loader struct {
	log  zerolog.Logger
	fsys fs.FS
}

func NewLoader(log zerolog.Logger, fsys fs.FS) *Loader {
	return &Loader{log: log.With().Str("component", "kml").Logger(), fsys: fsys}
}

// Load returns the provisional layer at once and parses path in the background; the layer
// fires ready or error when parsing settles.
func (ld *Loader) Load(ctx context.Context, id, path string) *Layer {
	layer := newLayer(id, path)
	go func() {
		pms, err := ld.read(path)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			ld.log.Warn().Err(err).Str("layer", id).Str("path", path).Msg("kml load failed")
		} else {
			ld.log.Info().Str("layer", id).Str("path", path).Int("placemarks", len(pms)).Msg("kml loaded")
		}
		layer.settle(pms, err)
	}()
	return layer
}

// ReadFile parses path synchronously.
func (ld *Loader) ReadFile(path string) ([]Placemark, error) { return ld.read(path) }

func (ld *Loader) read(path string) ([]Placemark, error) {
	f, err := ld.fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("kml: open %s: %w", path, err)
	}
	defer f.Close()

	pms, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(pms) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return pms, nil
}
