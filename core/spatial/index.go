package spatial

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"arxcore/core/entity"
)

// DefaultCellSize is the grid cell edge length in metres. Rooms are a few
// metres across, so typical radius queries touch a handful of cells.
const DefaultCellSize = 4.0

// cellKey addresses one grid cell.
type cellKey struct {
	x, y, z int
}

// generation is one immutable version of the index. Readers work against
// a single generation for the duration of a query.
type generation struct {
	cells  map[cellKey][]string
	points map[string]entity.Point3D
}

// Index is the spatial index. The zero value is not usable; construct
// with New.
type Index struct {
	cellSize float64

	// writeMu serializes writers. Readers only load the pointer.
	writeMu sync.Mutex
	current atomic.Pointer[generation]
}

// New creates an empty index with the given cell size; size <= 0 selects
// DefaultCellSize.
func New(cellSize float64) *Index {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	idx := &Index{cellSize: cellSize}
	idx.current.Store(&generation{
		cells:  map[cellKey][]string{},
		points: map[string]entity.Point3D{},
	})
	return idx
}

func (i *Index) key(p entity.Point3D) cellKey {
	return cellKey{
		x: int(math.Floor(p.X / i.cellSize)),
		y: int(math.Floor(p.Y / i.cellSize)),
		z: int(math.Floor(p.Z / i.cellSize)),
	}
}

// Len returns the number of indexed entities.
func (i *Index) Len() int {
	return len(i.current.Load().points)
}

// Insert adds or moves a single entity. Equivalent to Apply with one
// update.
func (i *Index) Insert(id string, p entity.Point3D) {
	i.Apply([]Update{{ID: id, Point: &p}})
}

// Remove drops a single entity from the index.
func (i *Index) Remove(id string) {
	i.Apply([]Update{{ID: id}})
}

// Update is one incremental index change. A nil Point removes the entity.
type Update struct {
	ID    string
	Point *entity.Point3D
}

// Apply builds the next generation with the given updates and swaps it
// in. Cost is proportional to the number of updates, not the index size:
// only touched cells are copied.
func (i *Index) Apply(updates []Update) {
	if len(updates) == 0 {
		return
	}

	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	prev := i.current.Load()
	next := &generation{
		cells:  make(map[cellKey][]string, len(prev.cells)),
		points: make(map[string]entity.Point3D, len(prev.points)),
	}
	// Shallow-copy map headers; cell slices are shared until touched.
	for k, v := range prev.cells {
		next.cells[k] = v
	}
	for k, v := range prev.points {
		next.points[k] = v
	}

	for _, u := range updates {
		if old, ok := next.points[u.ID]; ok {
			removeFromCell(next, i.key(old), u.ID)
			delete(next.points, u.ID)
		}
		if u.Point != nil {
			k := i.key(*u.Point)
			cell := next.cells[k]
			// Copy-on-write: never mutate a slice shared with the
			// previous generation.
			updated := make([]string, len(cell), len(cell)+1)
			copy(updated, cell)
			next.cells[k] = append(updated, u.ID)
			next.points[u.ID] = *u.Point
		}
	}

	i.current.Store(next)
}

func removeFromCell(g *generation, k cellKey, id string) {
	cell := g.cells[k]
	updated := make([]string, 0, len(cell))
	for _, v := range cell {
		if v != id {
			updated = append(updated, v)
		}
	}
	if len(updated) == 0 {
		delete(g.cells, k)
	} else {
		g.cells[k] = updated
	}
}

// RebuildFrom replaces the entire index with the positioned entities of a
// snapshot. Used at startup and on corruption or mismatch detection.
func (i *Index) RebuildFrom(snap *entity.Snapshot) {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	next := &generation{
		cells:  map[cellKey][]string{},
		points: map[string]entity.Point3D{},
	}
	for _, e := range snap.Entities {
		if e.Position == nil {
			continue
		}
		k := i.key(*e.Position)
		next.cells[k] = append(next.cells[k], e.ID)
		next.points[e.ID] = *e.Position
	}
	i.current.Store(next)
}

// Result is one query hit.
type Result struct {
	// ID is the entity ID.
	ID string
	// Point is the indexed position.
	Point entity.Point3D
	// Distance is the distance to the query center; zero for bounding
	// box queries.
	Distance float64
}

// QueryRadius returns all entities within radius of center, nearest
// first.
func (i *Index) QueryRadius(center entity.Point3D, radius float64) []Result {
	if radius < 0 {
		return nil
	}
	g := i.current.Load()

	min := i.key(entity.Point3D{X: center.X - radius, Y: center.Y - radius, Z: center.Z - radius})
	max := i.key(entity.Point3D{X: center.X + radius, Y: center.Y + radius, Z: center.Z + radius})

	var out []Result
	for x := min.x; x <= max.x; x++ {
		for y := min.y; y <= max.y; y++ {
			for z := min.z; z <= max.z; z++ {
				for _, id := range g.cells[cellKey{x, y, z}] {
					p := g.points[id]
					d := center.DistanceTo(p)
					if d <= radius {
						out = append(out, Result{ID: id, Point: p, Distance: d})
					}
				}
			}
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Distance != out[b].Distance {
			return out[a].Distance < out[b].Distance
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// QueryBBox returns all entities inside the axis-aligned box [min, max],
// in deterministic ID order.
func (i *Index) QueryBBox(min, max entity.Point3D) []Result {
	g := i.current.Load()

	lo := i.key(min)
	hi := i.key(max)

	var out []Result
	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			for z := lo.z; z <= hi.z; z++ {
				for _, id := range g.cells[cellKey{x, y, z}] {
					p := g.points[id]
					if p.X >= min.X && p.X <= max.X &&
						p.Y >= min.Y && p.Y <= max.Y &&
						p.Z >= min.Z && p.Z <= max.Z {
						out = append(out, Result{ID: id, Point: p})
					}
				}
			}
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// QueryFloor returns all entities whose z coordinate falls inside the
// floor's vertical band [zMin, zMax], in deterministic ID order.
func (i *Index) QueryFloor(zMin, zMax float64) []Result {
	g := i.current.Load()

	var out []Result
	for id, p := range g.points {
		if p.Z >= zMin && p.Z <= zMax {
			out = append(out, Result{ID: id, Point: p})
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Nearest returns the entity closest to the point, expanding the search
// ring by ring. It returns false when the index is empty.
func (i *Index) Nearest(p entity.Point3D) (Result, bool) {
	g := i.current.Load()
	if len(g.points) == 0 {
		return Result{}, false
	}

	// Expand the search radius until something is found, then one more
	// ring to catch closer entities in diagonal cells.
	for r := i.cellSize; ; r *= 2 {
		hits := i.QueryRadius(p, r)
		if len(hits) > 0 {
			return hits[0], true
		}
		if r > 1e6 {
			break
		}
	}

	// Degenerate fallback: linear scan.
	best := Result{Distance: math.Inf(1)}
	for id, point := range g.points {
		if d := p.DistanceTo(point); d < best.Distance {
			best = Result{ID: id, Point: point, Distance: d}
		}
	}
	return best, !math.IsInf(best.Distance, 1)
}
