package mapview

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func testMarkers() []Marker {
	return []Marker{
		{Name: "1", Point: orb.Point{-74.07175, 4.58012}, Color: "green", Popup: "uno"},
		{Name: "2", Point: orb.Point{-74.07009, 4.57981}, Color: "red", Popup: "dos"},
	}
}

func TestCanvas_AddRemovePublishes(t *testing.T) {
	c := NewCanvas(orb.Point{-74.07, 4.58}, 16)
	events, stop := c.Subscribe()
	defer stop()

	if err := c.AddLayer(NewMarkerLayer("puntos", testMarkers())); err != nil {
		t.Fatalf("add: %v", err)
	}
	if ev := <-events; ev.Kind != EventLayerAdded || ev.LayerID != "puntos" || ev.Version != 1 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !c.HasLayer("puntos") {
		t.Fatalf("expected layer attached")
	}

	if err := c.RemoveLayer("puntos"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if ev := <-events; ev.Kind != EventLayerRemoved || ev.Version != 2 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(c.LayerIDs()) != 0 {
		t.Fatalf("expected empty canvas, got %v", c.LayerIDs())
	}
}

func TestCanvas_RejectsDuplicateAndUnknown(t *testing.T) {
	c := NewCanvas(orb.Point{}, 10)
	l := NewMarkerLayer("a", nil)
	if err := c.AddLayer(l); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.AddLayer(l); !errors.Is(err, ErrDuplicateLayer) {
		t.Fatalf("expected ErrDuplicateLayer, got %v", err)
	}
	if err := c.RemoveLayer("missing"); !errors.Is(err, ErrUnknownLayer) {
		t.Fatalf("expected ErrUnknownLayer, got %v", err)
	}
}

func TestCanvas_StateIsSnapshot(t *testing.T) {
	c := NewCanvas(orb.Point{-74.07, 4.58}, 16)
	layer := NewMarkerLayer("puntos", testMarkers())
	_ = c.AddLayer(layer)
	b, _ := layer.Bounds()
	c.FitBounds(b, 50)

	st := c.State()
	if st.Version != 2 || len(st.Layers) != 1 {
		t.Fatalf("unexpected state %+v", st)
	}
	if st.Viewport.Padding != 50 || st.Viewport.Bounds == nil || *st.Viewport.Bounds != b {
		t.Fatalf("unexpected viewport %+v", st.Viewport)
	}
	if n := len(st.Layers[0].Features.Features); n != 2 {
		t.Fatalf("expected 2 features, got %d", n)
	}

	st.Viewport.Bounds.Min = orb.Point{0, 0}
	if got := c.State().Viewport.Bounds.Min; got == (orb.Point{0, 0}) {
		t.Fatalf("state must not alias canvas viewport")
	}

	raw, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["layers"]; !ok {
		t.Fatalf("expected layers key in %s", raw)
	}
}

func TestCanvas_LayerChangedIgnoresUnknown(t *testing.T) {
	c := NewCanvas(orb.Point{}, 10)
	c.LayerChanged("nope")
	if c.State().Version != 0 {
		t.Fatalf("expected no version bump for unknown layer")
	}
	_ = c.AddLayer(NewMarkerLayer("a", nil))
	c.LayerChanged("a")
	if c.State().Version != 2 {
		t.Fatalf("expected version bump")
	}
}

func TestCanvas_UnsubscribeClosesChannel(t *testing.T) {
	c := NewCanvas(orb.Point{}, 10)
	events, stop := c.Subscribe()
	stop()
	stop()
	if _, ok := <-events; ok {
		t.Fatalf("expected closed channel")
	}
	if err := c.AddLayer(NewMarkerLayer("a", nil)); err != nil {
		t.Fatalf("add after unsubscribe: %v", err)
	}
}

func TestMarkerLayer_Bounds(t *testing.T) {
	if _, ok := NewMarkerLayer("x", nil).Bounds(); ok {
		t.Fatalf("empty layer has no bounds")
	}
	b, ok := NewMarkerLayer("x", testMarkers()).Bounds()
	if !ok {
		t.Fatalf("expected bounds")
	}
	if b.Min != (orb.Point{-74.07175, 4.57981}) || b.Max != (orb.Point{-74.07009, 4.58012}) {
		t.Fatalf("unexpected bounds %+v", b)
	}
}

func TestHolder_PublishLoad(t *testing.T) {
	var h Holder
	if h.Load() != nil {
		t.Fatalf("expected empty holder")
	}
	c := NewCanvas(orb.Point{}, 1)
	h.Publish(c)
	if m, ok := h.Load().(Map); !ok || m != c {
		t.Fatalf("expected published canvas")
	}
}
