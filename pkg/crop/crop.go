// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

// Package crop computes and renders cover-fit crops of source images
// into fixed-size viewports. The geometry is pure; the only side effect
// is the final encode.
package crop

import "math"

// Frame describes how a source image maps onto the output viewport:
// pan offsets in viewport pixels relative to center, and a zoom factor
// applied on top of cover-fit scaling.
type Frame struct {
	NaturalWidth  int
	NaturalHeight int
	Zoom          float64
	OffsetX       float64
	OffsetY       float64
}

// Viewport is the output raster size in pixels.
type Viewport struct {
	W int
	H int
}

// ViewportFor returns a viewport of the given width whose height is
// derived from a target aspect ratio (width/height).
func ViewportFor(width int, aspect float64) Viewport {
	if aspect <= 0 {
		aspect = 1
	}
	h := int(math.Round(float64(width) / aspect))
	if h < 1 {
		h = 1
	}
	return Viewport{W: width, H: h}
}

// Rect is a source-space rectangle in pixels.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// SourceRect computes the region of the source image that the viewport
// displays. Zoom below 1 is clamped to 1 so the image never shrinks
// below cover size, and the result is always clamped inside the natural
// bounds with a 1px floor.
func SourceRect(f Frame, vp Viewport) Rect {
	nw := float64(f.NaturalWidth)
	nh := float64(f.NaturalHeight)
	vw := float64(vp.W)
	vh := float64(vp.H)

	// Minimal scale that makes the image cover the viewport.
	baseScale := math.Max(vw/nw, vh/nh)

	zoom := f.Zoom
	if zoom < 1 {
		zoom = 1
	}
	scale := baseScale * zoom

	// Displayed image extent and top-left, pan relative to viewport center.
	dw := nw * scale
	dh := nh * scale
	imgLeft := vw/2 + f.OffsetX - dw/2
	imgTop := vh/2 + f.OffsetY - dh/2

	// Invert the viewport origin back into source space.
	r := Rect{
		X: -imgLeft / scale,
		Y: -imgTop / scale,
		W: vw / scale,
		H: vh / scale,
	}

	return clampRect(r, nw, nh)
}

func clampRect(r Rect, nw, nh float64) Rect {
	r.X = clamp(r.X, 0, nw-1)
	r.Y = clamp(r.Y, 0, nh-1)
	if r.W < 1 {
		r.W = 1
	}
	if r.H < 1 {
		r.H = 1
	}
	if r.X+r.W > nw {
		r.W = nw - r.X
	}
	if r.Y+r.H > nh {
		r.H = nh - r.Y
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
