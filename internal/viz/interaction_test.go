package viz

import (
	"math"
	"testing"
)

func TestInteraction_DragStateMachine(t *testing.T) {
	in := NewInteraction()
	if in.State != Idle {
		t.Fatal("initial state should be Idle")
	}
	if in.PointerMove(10, 10) {
		t.Error("move while Idle should not pan")
	}

	in.PointerDown(100, 100)
	if in.State != Dragging {
		t.Fatal("pointer down should enter Dragging")
	}
	if !in.PointerMove(110, 95) {
		t.Fatal("move while Dragging should pan")
	}
	if in.View.PanX != 10 || in.View.PanY != -5 {
		t.Errorf("pan=(%v,%v), want (10,-5)", in.View.PanX, in.View.PanY)
	}

	in.PointerUp()
	if in.State != Idle {
		t.Error("pointer up should return to Idle")
	}

	// A second drag composes with the existing pan.
	in.PointerDown(0, 0)
	in.PointerMove(5, 5)
	if in.View.PanX != 15 || in.View.PanY != 0 {
		t.Errorf("pan after second drag=(%v,%v), want (15,0)", in.View.PanX, in.View.PanY)
	}

	in.PointerLeave()
	if in.State != Idle {
		t.Error("pointer leave should return to Idle")
	}
}

func TestInteraction_ZoomClamping(t *testing.T) {
	in := NewInteraction()
	for i := 0; i < 100; i++ {
		in.ZoomIn()
	}
	if in.View.Zoom != ZoomMax {
		t.Errorf("zoom=%v, want clamped to %v", in.View.Zoom, ZoomMax)
	}
	for i := 0; i < 100; i++ {
		in.WheelZoom(false)
	}
	if in.View.Zoom != ZoomMin {
		t.Errorf("zoom=%v, want clamped to %v", in.View.Zoom, ZoomMin)
	}
}

func TestInteraction_ZoomRoundTrip(t *testing.T) {
	// 1 * 1.2^10 ≈ 6.19 exceeds ZoomMax, so start low enough that ten
	// zoom-ins stay unclamped.
	in := NewInteraction()
	in.View.Zoom = 0.5
	for i := 0; i < 10; i++ {
		in.ZoomIn()
	}
	for i := 0; i < 10; i++ {
		in.ZoomOut()
	}
	if math.Abs(in.View.Zoom-0.5) > 1e-9 {
		t.Errorf("zoom after round trip=%v, want 0.5", in.View.Zoom)
	}
}

func TestInteraction_WheelSteps(t *testing.T) {
	in := NewInteraction()
	in.WheelZoom(true)
	if math.Abs(in.View.Zoom-1.1) > 1e-9 {
		t.Errorf("wheel up: zoom=%v, want 1.1", in.View.Zoom)
	}
	in.Reset()
	in.WheelZoom(false)
	if math.Abs(in.View.Zoom-0.9) > 1e-9 {
		t.Errorf("wheel down: zoom=%v, want 0.9", in.View.Zoom)
	}
}

func TestInteraction_Reset(t *testing.T) {
	in := NewInteraction()
	in.PointerDown(10, 10)
	in.PointerMove(50, 60)
	in.ZoomIn()
	in.Reset()
	if in.View.Zoom != 1 || in.View.PanX != 0 || in.View.PanY != 0 {
		t.Errorf("after reset view=%+v, want zoom 1 pan (0,0)", in.View)
	}
	if in.State != Idle {
		t.Error("reset should end dragging")
	}
}
