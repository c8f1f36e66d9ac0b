// Package spatial maintains a derived index from 3D positions to entity
// IDs, answering radius, bounding-box, nearest-neighbour and per-floor
// queries over committed equipment positions.
//
// The index is a uniform grid: positions hash into fixed-size cells, and
// queries scan only the cells overlapping the query region. It is a
// cache, never a source of truth — it can always be rebuilt in full from
// the latest committed snapshot, and incremental updates after a commit
// cost time proportional to the diff, not the dataset.
//
// # Concurrency
//
// Readers never block on writers beyond an atomic pointer load: the
// current generation is immutable, and writers assemble the next
// generation off to the side before swapping it in. Cells touched by an
// update are copied; untouched cells are shared between generations.
package spatial
