package mapview

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const subscriberBuffer = 16

type EventKind string

const (
	EventLayerAdded   EventKind = "layer_added"
	EventLayerRemoved EventKind = "layer_removed"
	EventLayerChanged EventKind = "layer_changed"
	EventViewport     EventKind = "viewport"
)

type Event struct {
	Kind    EventKind `json:"kind"`
	LayerID string    `json:"layer_id,omitempty"`
	Version uint64    `json:"version"`
}

type LayerState struct {
	ID       string                     `json:"id"`
	Features *geojson.FeatureCollection `json:"features"`
}

type State struct {
	Version  uint64       `json:"version"`
	Viewport Viewport     `json:"viewport"`
	Layers   []LayerState `json:"layers"`
}

// Watcher is implemented by layers whose content changes after they are attached.
type Watcher interface {
	Watch(fn func()) (cancel func())
}

var _ Map = (*Canvas)(nil)

// Canvas is the shared map. It implements Map.
type Canvas struct {
	mu      sync.RWMutex
	layers  map[string]Layer
	watches map[string]func()
	order   []string
	view    Viewport
	version uint64

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

func NewCanvas(center orb.Point, zoom int) *Canvas {
	return &Canvas{
		layers:  map[string]Layer{},
		watches: map[string]func(){},
		view:    Viewport{Center: center, Zoom: zoom},
		subs:    map[int]chan Event{},
	}
}

func (c *Canvas) AddLayer(l Layer) error {
	id := l.ID()
	c.mu.Lock()
	if _, ok := c.layers[id]; ok {
		c.mu.Unlock()
		return layerError(id, ErrDuplicateLayer)
	}
	c.layers[id] = l
	c.order = append(c.order, id)
	c.version++
	v := c.version
	c.mu.Unlock()

	if w, ok := l.(Watcher); ok {
		cancel := w.Watch(func() { c.layerChanged(l) })
		c.mu.Lock()
		if cur, ok := c.layers[id]; ok && cur == l {
			c.watches[id] = cancel
			cancel = nil
		}
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}

	c.publish(Event{Kind: EventLayerAdded, LayerID: id, Version: v})
	return nil
}

func (c *Canvas) RemoveLayer(id string) error {
	c.mu.Lock()
	if _, ok := c.layers[id]; !ok {
		c.mu.Unlock()
		return layerError(id, ErrUnknownLayer)
	}
	delete(c.layers, id)
	cancel := c.watches[id]
	delete(c.watches, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.version++
	v := c.version
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.publish(Event{Kind: EventLayerRemoved, LayerID: id, Version: v})
	return nil
}

func (c *Canvas) FitBounds(b orb.Bound, paddingPx int) {
	c.mu.Lock()
	bound := b
	c.view.Bounds = &bound
	c.view.Padding = paddingPx
	c.version++
	v := c.version
	c.mu.Unlock()

	c.publish(Event{Kind: EventViewport, Version: v})
}

// LayerChanged tells subscribers that an attached layer redrew itself. Unknown ids are ignored.
func (c *Canvas) LayerChanged(id string) {
	c.mu.Lock()
	if _, ok := c.layers[id]; !ok {
		c.mu.Unlock()
		return
	}
	c.version++
	v := c.version
	c.mu.Unlock()

	c.publish(Event{Kind: EventLayerChanged, LayerID: id, Version: v})
}

// layerChanged only reports changes of the exact layer instance still attached.
func (c *Canvas) layerChanged(l Layer) {
	c.mu.Lock()
	if cur, ok := c.layers[l.ID()]; !ok || cur != l {
		c.mu.Unlock()
		return
	}
	c.version++
	v := c.version
	c.mu.Unlock()

	c.publish(Event{Kind: EventLayerChanged, LayerID: l.ID(), Version: v})
}

func (c *Canvas) HasLayer(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.layers[id]
	return ok
}

func (c *Canvas) LayerIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

func (c *Canvas) State() State {
	c.mu.RLock()
	layers := make([]Layer, 0, len(c.order))
	for _, id := range c.order {
		layers = append(layers, c.layers[id])
	}
	st := State{Version: c.version, Viewport: c.view}
	if c.view.Bounds != nil {
		b := *c.view.Bounds
		st.Viewport.Bounds = &b
	}
	c.mu.RUnlock()

	st.Layers = make([]LayerState, 0, len(layers))
	for _, l := range layers {
		st.Layers = append(st.Layers, LayerState{ID: l.ID(), Features: l.GeoJSON()})
	}
	return st
}

// Subscribe registers for change events. Slow subscribers lose events rather than block the
// canvas; each event carries the version so they can resync from State.
func (c *Canvas) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
}

func (c *Canvas) publish(ev Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Holder publishes the map handle once it exists. Readiness probes poll Load.
type Holder struct {
	mu sync.RWMutex
	v  any
}

func (h *Holder) Publish(m any) {
	h.mu.Lock()
	h.v = m
	h.mu.Unlock()
}

func (h *Holder) Load() any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.v
}
