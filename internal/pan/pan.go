// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package pan converts pointer motion into camera translation and
// distinguishes a click from a drag via a movement threshold.
package pan

import (
	"math"

	"github.com/tomtom215/atelier/internal/geometry"
)

// State is the controller state.
type State int

const (
	// Idle means no pointer is held down.
	Idle State = iota
	// Dragging means a pointer is held and moves pan the camera.
	Dragging
)

// Controller tracks one pointer and owns the camera translation.
// It is not safe for concurrent use; the engine serializes pointer events
// through its command queue.
type Controller struct {
	// ClickThreshold is the accumulated movement in pixels beyond which a
	// pointer-up no longer counts as a click.
	ClickThreshold float64

	state    State
	camera   geometry.Camera
	offsetX  float64
	offsetY  float64
	lastX    float64
	lastY    float64
	traveled float64
}

// NewController creates a Controller with the given click threshold.
func NewController(clickThreshold float64) *Controller {
	if clickThreshold <= 0 {
		clickThreshold = 5
	}
	return &Controller{ClickThreshold: clickThreshold}
}

// Camera returns the current camera translation.
func (c *Controller) Camera() geometry.Camera { return c.camera }

// SetCamera replaces the camera translation, e.g. to jump to a focal chunk.
// Ignored mid-drag so a jump cannot fight an active pointer.
func (c *Controller) SetCamera(cam geometry.Camera) {
	if c.state == Dragging {
		return
	}
	c.camera = cam
}

// State returns the current controller state.
func (c *Controller) State() State { return c.state }

// PointerDown begins a potential drag, recording the pointer-to-camera
// offset. A second down event while dragging re-anchors the pointer.
func (c *Controller) PointerDown(px, py float64) {
	c.state = Dragging
	c.offsetX = px - c.camera.TranslateX
	c.offsetY = py - c.camera.TranslateY
	c.lastX = px
	c.lastY = py
	c.traveled = 0
}

// PointerMove updates the camera while dragging and accumulates absolute
// movement. Moves while idle are ignored.
func (c *Controller) PointerMove(px, py float64) geometry.Camera {
	if c.state != Dragging {
		return c.camera
	}
	c.traveled += math.Hypot(px-c.lastX, py-c.lastY)
	c.lastX = px
	c.lastY = py
	c.camera.TranslateX = px - c.offsetX
	c.camera.TranslateY = py - c.offsetY
	return c.camera
}

// PointerUp ends the drag. It reports whether a consumer click handler
// must be suppressed because accumulated movement exceeded the threshold,
// preventing accidental navigation at the end of a pan.
func (c *Controller) PointerUp() (suppressClick bool) {
	if c.state != Dragging {
		return false
	}
	c.state = Idle
	return c.traveled > c.ClickThreshold
}

// Cancel aborts an active drag without click semantics, e.g. on
// pointer-cancel or session teardown.
func (c *Controller) Cancel() {
	c.state = Idle
	c.traveled = 0
}
