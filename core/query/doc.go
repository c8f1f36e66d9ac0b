// Package query evaluates the read-only filter grammar over the derived
// relational index and the spatial index.
//
// The grammar is deliberately small:
//
//	query     = [ "COUNT" | "GROUP" "BY" field ] [ predicates ]
//	predicates = predicate { "AND" predicate }
//	predicate = field op value
//	          | "WITHIN" "(" x "," y "," z "," radius ")"
//	op        = "=" | "!=" | "<" | "<=" | ">" | ">="
//
// Fields are the indexed entity columns (path, kind, status, confidence,
// room_id, pos_x, pos_y, pos_z). WITHIN delegates to the spatial index
// and may appear at most once. Unknown fields, unknown operators and
// malformed predicates fail fast with a *SyntaxError; a query never
// silently matches nothing.
//
// Evaluation never mutates the object store or either index.
package query
