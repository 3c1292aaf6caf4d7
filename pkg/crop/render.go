// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package crop

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"time"

	"golang.org/x/image/draw"
)

// Terminal failures of a single crop attempt. The engine holds no retry
// state; callers retry with a new selection if they want.
var (
	ErrDecode = errors.New("crop: source image failed to decode")
	ErrEncode = errors.New("crop: encoded output is empty")
)

const jpegQuality = 90

// Result is the encoded crop output fed into an upload session.
type Result struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
}

// Render draws the frame's source rectangle into a raster of viewport
// size using a bicubic scaler.
func Render(src image.Image, f Frame, vp Viewport) image.Image {
	r := SourceRect(f, vp)
	srcRect := image.Rect(
		int(r.X), int(r.Y),
		int(r.X+r.W), int(r.Y+r.H),
	)

	dst := image.NewRGBA(image.Rect(0, 0, vp.W, vp.H))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, srcRect, draw.Src, nil)
	return dst
}

// Crop decodes a source image, renders the framed region into the
// viewport, and encodes the result as JPEG with a deterministic name
// derived from prefix and timestamp.
func Crop(src io.Reader, f Frame, vp Viewport, prefix string) (*Result, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	f.NaturalWidth = bounds.Dx()
	f.NaturalHeight = bounds.Dy()

	out := Render(img, f, vp)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("crop: encode: %w", err)
	}
	if buf.Len() == 0 {
		return nil, ErrEncode
	}

	return &Result{
		Name:        fmt.Sprintf("%s-%d.jpg", prefix, time.Now().UnixMilli()),
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
		Width:       vp.W,
		Height:      vp.H,
	}, nil
}
