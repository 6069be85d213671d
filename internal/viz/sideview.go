package viz

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

const armLength = 0.08

// SideView draws the x-z plane: the reference path as loose dots, the live
// path as a connected trail and the live airframe tilted by its pitch.
type SideView struct {
	canvas *Canvas
	limit  int
	ref    []r3.Vec
	live   []r3.Vec
	pitch  float64
}

// NewSideView keeps at most limit points of each path.
func NewSideView(cols, rows, limit int) *SideView {
	return &SideView{canvas: NewCanvas(cols, rows), limit: max(limit, 2)}
}

func (v *SideView) Push(rec dynamo.StepRecord) {
	v.ref = appendCapped(v.ref, rec.Reference.Pos, v.limit)
	v.live = appendCapped(v.live, rec.Live.Pos, v.limit)
	v.pitch = rec.Live.RPY.Y
}

func appendCapped(path []r3.Vec, p r3.Vec, limit int) []r3.Vec {
	if len(path) >= limit {
		path = append(path[:0], path[len(path)-limit+1:]...)
	}
	return append(path, p)
}

// bounds covers both paths and the ground with a margin, never narrower
// than one meter on either axis.
func (v *SideView) bounds() (minX, maxX, minZ, maxZ float64) {
	minX, maxX = math.Inf(1), math.Inf(-1)
	minZ, maxZ = 0, math.Inf(-1)
	for _, path := range [][]r3.Vec{v.ref, v.live} {
		for _, p := range path {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minZ, maxZ = math.Min(minZ, p.Z), math.Max(maxZ, p.Z)
		}
	}
	if math.IsInf(minX, 1) {
		return -0.5, 0.5, 0, 1
	}
	widen := func(lo, hi float64) (float64, float64) {
		pad := math.Max(0.1*(hi-lo), 0.05)
		lo, hi = lo-pad, hi+pad
		if hi-lo < 1 {
			mid := (lo + hi) / 2
			lo, hi = mid-0.5, mid+0.5
		}
		return lo, hi
	}
	minX, maxX = widen(minX, maxX)
	minZ, maxZ = widen(minZ, maxZ)
	return minX, maxX, minZ, maxZ
}

func (v *SideView) Render() string {
	c := v.canvas
	c.Clear()
	minX, maxX, minZ, maxZ := v.bounds()
	w, h := float64(c.DotWidth()-1), float64(c.DotHeight()-1)
	project := func(x, z float64) (int, int) {
		px := (x - minX) / (maxX - minX) * w
		pz := h - (z-minZ)/(maxZ-minZ)*h
		return int(math.Round(px)), int(math.Round(pz))
	}

	if minZ <= 0 && maxZ >= 0 {
		_, gy := project(0, 0)
		for x := 0; x < c.DotWidth(); x += 2 {
			c.Set(x, gy)
		}
	}

	for i, p := range v.ref {
		if i%3 == 0 {
			c.Set(project(p.X, p.Z))
		}
	}

	for i := 1; i < len(v.live); i++ {
		x0, y0 := project(v.live[i-1].X, v.live[i-1].Z)
		x1, y1 := project(v.live[i].X, v.live[i].Z)
		c.Line(x0, y0, x1, y1)
	}

	if n := len(v.live); n > 0 {
		p := v.live[n-1]
		dx, dz := armLength*math.Cos(v.pitch), armLength*math.Sin(v.pitch)
		lx, ly := project(p.X-dx, p.Z+dz)
		rx, ry := project(p.X+dx, p.Z-dz)
		c.Line(lx, ly, rx, ry)
		cx, cy := project(p.X, p.Z)
		c.Line(cx, cy, cx, cy-2)
	}
	return c.String()
}
