// Package address implements the hierarchical path identifiers used to
// locate building entities.
//
// An address is an ordered sequence of path segments rooted at a building,
// written in canonical form as a slash-separated path:
//
//	/hq-tower/floor-3/room-301/electrical/outlet-2b
//
// The segments identify, in order: building, floor, wing or room, system,
// and equipment. Shorter addresses identify containers (a floor, a room).
//
// Addresses are immutable values. Equality and ordering are defined over the
// canonical string form, so addresses can be used directly as map keys and
// sorted deterministically.
//
// # Pattern Matching
//
// Match supports glob-style patterns: '*' and '?' match within a single
// segment, and a '**' segment matches any number of segments (including
// zero). For example:
//
//	/hq-tower/*/room-301/**        matches every entity under room-301 on any floor
//	/hq-tower/floor-3/**/vav-*     matches all VAV boxes on floor 3
package address
