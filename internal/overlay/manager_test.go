package overlay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"indicadores/dashboard-go/internal/kml"
	"indicadores/dashboard-go/internal/mapview"
	"indicadores/dashboard-go/internal/readiness"
	"indicadores/dashboard-go/internal/toggle"
)

func TestManager_BindsAndAutoLoadsOnceMapReady(t *testing.T) {
	fc := clockwork.NewFakeClock()
	holder := &mapview.Holder{}
	sw := newSwitchboard(t)
	ld := kml.NewLoader(zerolog.Nop(), kmlFS())
	mg := NewManager(zerolog.Nop(), holder, sw, nil, ManagerOptions{
		AutoLoad: toggle.ElConsuelo,
		Clock:    fc,
	}, CriticalPoints(DefaultCriticalPoints, DefaultIntervened), ElConsueloOverlay(ld, DefaultElConsueloKML))

	if _, err := mg.Controller(); !errors.Is(err, ErrMapNotReady) {
		t.Fatalf("expected ErrMapNotReady before Run, got %v", err)
	}
	if st := mg.Status(); len(st) != 2 || st[0].Attached {
		t.Fatalf("unexpected pre-ready status %+v", st)
	}

	canvas := mapview.NewCanvas(orb.Point{-74.07, 4.58}, 16)
	done := make(chan error, 1)
	go func() { done <- mg.Run(context.Background()) }()

	// first probe fails: nothing published yet
	fc.BlockUntil(1)
	holder.Publish(canvas)
	fc.Advance(readiness.DefaultInterval)
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	ctrl, err := mg.Controller()
	if err != nil || ctrl == nil {
		t.Fatalf("expected controller after ready, got %v", err)
	}

	fc.BlockUntil(1)
	fc.Advance(DefaultAutoLoadDelay)

	deadline := time.Now().Add(2 * time.Second)
	for !canvas.HasLayer(ElConsuelo) {
		if time.Now().After(deadline) {
			t.Fatalf("el consuelo never auto-loaded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if on, _ := sw.State(toggle.ElConsuelo); !on {
		t.Fatalf("auto-load must check the el consuelo control")
	}

	if _, err := sw.Set(toggle.PuntosCriticos, true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !canvas.HasLayer(PuntosCriticos) {
		t.Fatalf("bound toggle must attach critical points")
	}
}

func TestManager_TimesOutWithoutMap(t *testing.T) {
	fc := clockwork.NewFakeClock()
	mg := NewManager(zerolog.Nop(), &mapview.Holder{}, newSwitchboard(t), nil, ManagerOptions{
		Clock:     fc,
		Readiness: readiness.Options{MaxAttempts: 2},
	})

	done := make(chan error, 1)
	go func() { done <- mg.Run(context.Background()) }()
	fc.BlockUntil(1)
	fc.Advance(readiness.DefaultInterval)

	if err := <-done; !errors.Is(err, readiness.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if _, err := mg.Controller(); !errors.Is(err, readiness.ErrTimeout) {
		t.Fatalf("controller must report the readiness error, got %v", err)
	}
}

func TestManager_RunHonoursContext(t *testing.T) {
	mg := NewManager(zerolog.Nop(), &mapview.Holder{}, newSwitchboard(t), nil, ManagerOptions{Clock: clockwork.NewFakeClock()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := mg.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
