package tracker

import "github.com/zeusync/ardice/internal/core/spatial"

// Alignment is the orientation a tracking service reports for a plane.
type Alignment string

const (
	AlignmentHorizontal Alignment = "horizontal"
	AlignmentVertical   Alignment = "vertical"
)

// Geometry is what the tracking service reports about a plane anchor.
type Geometry struct {
	Center    spatial.Vec2
	Extent    spatial.Extent
	Alignment Alignment
}

func (g Geometry) horizontal() bool {
	return g.Alignment == "" || g.Alignment == AlignmentHorizontal
}

// Surface is the tracker's record of one detected horizontal plane.
type Surface struct {
	AnchorID string
	Center   spatial.Vec2
	Extent   spatial.Extent
}

func (s Surface) grid() SurfaceGridCommand {
	return SurfaceGridCommand{
		AnchorID:  s.AnchorID,
		Center:    s.Center,
		Extent:    s.Extent,
		Transform: spatial.SurfaceTransform(s.Center),
	}
}

// SurfaceRegistry tracks known planes keyed by anchor id. Listing order is
// first-detection order.
type SurfaceRegistry struct {
	order []string
	byID  map[string]*Surface
}

func NewSurfaceRegistry() *SurfaceRegistry {
	return &SurfaceRegistry{byID: make(map[string]*Surface)}
}

// Detected records a new plane. A repeated detection of a known anchor is an update.
// Planes that are not horizontal are ignored and produce no command.
func (r *SurfaceRegistry) Detected(anchorID string, g Geometry) (SurfaceGridCommand, bool) {
	if !g.horizontal() {
		return SurfaceGridCommand{}, false
	}
	if s, ok := r.byID[anchorID]; ok {
		s.Center, s.Extent = g.Center, g.Extent
		return s.grid(), true
	}
	s := &Surface{AnchorID: anchorID, Center: g.Center, Extent: g.Extent}
	r.byID[anchorID] = s
	r.order = append(r.order, anchorID)
	return s.grid(), true
}

// Updated refreshes a known plane. Unknown anchors are ignored.
func (r *SurfaceRegistry) Updated(anchorID string, g Geometry) (SurfaceGridCommand, bool) {
	s, ok := r.byID[anchorID]
	if !ok || !g.horizontal() {
		return SurfaceGridCommand{}, false
	}
	s.Center, s.Extent = g.Center, g.Extent
	return s.grid(), true
}

// Removed forgets a plane. Removing an unknown anchor is a no-op.
func (r *SurfaceRegistry) Removed(anchorID string) (RemoveSurfaceGridCommand, bool) {
	if _, ok := r.byID[anchorID]; !ok {
		return RemoveSurfaceGridCommand{}, false
	}
	delete(r.byID, anchorID)
	for i, id := range r.order {
		if id == anchorID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return RemoveSurfaceGridCommand{AnchorID: anchorID}, true
}

func (r *SurfaceRegistry) Get(anchorID string) (Surface, bool) {
	s, ok := r.byID[anchorID]
	if !ok {
		return Surface{}, false
	}
	return *s, true
}

func (r *SurfaceRegistry) Len() int {
	return len(r.order)
}

// List returns a copy of every tracked surface.
func (r *SurfaceRegistry) List() []Surface {
	out := make([]Surface, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}
