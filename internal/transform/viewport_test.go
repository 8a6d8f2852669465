package transform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"card-annotator/internal/annotation"
	"card-annotator/pkg/geometry"
)

func TestViewportRoundTrip(t *testing.T) {
	v := &Viewport{Zoom: 2.5, PanX: 120, PanY: -40}
	p := v.ViewportToImage(300, 200)
	back := v.ImageToViewport(p.X, p.Y)
	require.InDelta(t, 300, back.X, 1e-9)
	require.InDelta(t, 200, back.Y, 1e-9)
}

func TestZoomAt_KeepsCursorPointFixed(t *testing.T) {
	v := &Viewport{Zoom: 1.0, PanX: 35, PanY: -12}
	const vx, vy = 417.0, 266.0

	before := v.ViewportToImage(vx, vy)
	v.ZoomAt(1.1, vx, vy)
	after := v.ViewportToImage(vx, vy)

	require.InDelta(t, before.X, after.X, 1e-9)
	require.InDelta(t, before.Y, after.Y, 1e-9)
	require.InDelta(t, 1.1, v.Zoom, 1e-9)
}

func TestZoomAt_RepeatedStepsStayAnchored(t *testing.T) {
	v := NewViewport()
	const vx, vy = 100.0, 80.0
	anchor := v.ViewportToImage(vx, vy)
	for i := 0; i < 6; i++ {
		v.ZoomInAt(vx, vy)
	}
	for i := 0; i < 3; i++ {
		v.ZoomOutAt(vx, vy)
	}
	got := v.ViewportToImage(vx, vy)
	require.InDelta(t, anchor.X, got.X, 1e-6)
	require.InDelta(t, anchor.Y, got.Y, 1e-6)
}

func TestSetZoom_Clamped(t *testing.T) {
	v := NewViewport()
	v.SetZoom(100)
	require.Equal(t, MaxZoom, v.Zoom)
	v.SetZoom(0.0001)
	require.Equal(t, MinZoom, v.Zoom)
}

func TestDeriveScale_HalfResolution(t *testing.T) {
	cal := annotation.Calibration{ReferenceResolution: geometry.NewSize(6000, 4000)}
	res := DeriveScale(cal, 3000, 2000)
	require.InDelta(t, 0.5, res.ScaleX, 1e-9)
	require.InDelta(t, 0.5, res.ScaleY, 1e-9)
	require.Nil(t, res.Warning)
}

func TestDeriveScale_AspectMismatchIsAdvisory(t *testing.T) {
	cal := annotation.Calibration{ReferenceResolution: geometry.NewSize(6000, 4000)}
	res := DeriveScale(cal, 3000, 2400) // 1.25 vs reference 1.5

	require.NotNil(t, res.Warning)
	require.InDelta(t, 0.5, res.ScaleX, 1e-9)
	require.InDelta(t, 0.6, res.ScaleY, 1e-9)
	require.Contains(t, res.Warning.String(), "cropped or distorted")
}
