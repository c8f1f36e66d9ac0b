// Package bimjson adapts a directory of exported BIM JSON documents to
// the driver contract.
//
// The export layout mirrors the address space: one document per entity
// at <dir>/<building>/<floor>/.../<leaf>.json, each holding one entity
// in the canonical JSON shape. The layout is human-diffable and plays
// well with file-level tooling.
//
// Locators use the bimjson:// scheme followed by the export directory.
// The driver is bidirectional: Sync writes the merged state back as the
// same document tree, pruning documents whose entities were removed. It
// also advertises the watch capability, backed by fsnotify, so edits to
// the export trigger reconciliation ahead of schedule.
package bimjson
