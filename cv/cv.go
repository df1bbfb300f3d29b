// Copyright 2019 Brian Starkey <stark3y@gmail.com>

// Package cv finds the coloured target in camera frames. Nothing
// clever: threshold the chroma plane, take the centroid of whatever
// is left.
package cv

import (
	"image"
	"image/color"
)

// Window is the chroma slice that counts as "target": a Cb/Cr centre
// with Span either side on both axes.
type Window struct {
	Cb   uint8
	Cr   uint8
	Span uint8
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}

	return b - a
}

func (w Window) contains(c color.YCbCr) bool {
	return absDiff(c.Cb, w.Cb) <= w.Span && absDiff(c.Cr, w.Cr) <= w.Span
}

type Blob struct {
	X      int
	Y      int
	Pixels int
}

// FindTarget scans img for pixels inside the chroma window and returns
// their centroid. Fewer than minPixels hits means no target. Frames
// are small (the camera scales them down), so a full scan per tick is
// cheap enough.
func FindTarget(img image.Image, w Window, minPixels int) (Blob, bool) {
	bounds := img.Bounds()

	var sumX, sumY, n int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.YCbCrModel.Convert(img.At(x, y)).(color.YCbCr)
			if !w.contains(c) {
				continue
			}

			sumX += x
			sumY += y
			n++
		}
	}

	if n < minPixels {
		return Blob{}, false
	}

	return Blob{X: sumX / n, Y: sumY / n, Pixels: n}, true
}

type Side int

const (
	Centered Side = iota
	Left
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	}

	return "centered"
}

// Pick decides which side of the frame's midline the target sits on.
// Within band pixels of the midline counts as Centered.
func Pick(cx, width, band int) Side {
	mid := width / 2

	switch {
	case cx < mid-band:
		return Left
	case cx > mid+band:
		return Right
	}

	return Centered
}

// Offset maps the target's x onto [-1, 1] across the frame, negative
// left of the midline.
func Offset(cx, width int) float64 {
	mid := float64(width) / 2

	return (float64(cx) - mid) / mid
}
