// Package whery implements the core of a small relational storage
// engine: a paged, sorted tuple store and a B+-tree index built on top
// of it.
//
// The engine lays out heterogeneous scalar fields in raw byte buffers
// with correct alignment (Layout, Field, the manipulators in field.go),
// stores prefix-ordered multisets of such tuples in fixed-size pages
// (SortedPage), and indexes pages with a B+-tree (BTree) that splits nodes on
// overflow and links leaves into a sibling chain for ordered scans.
//
// It has no file-format persistence, no CLI, and no query planner: it
// is a library for callers who already know their schema and want an
// in-memory ordered tuple store with B+-tree range queries.
package whery
