// Package formats provides the on-disk formats of baked lighting.
//
// An .ml file is a little-endian version word followed by chunks: a
// mission chunk carrying the scene CRC, then one chunk per lit object in
// bake order, each tagged with the object's type and CRC so a stale file
// can be rejected before any lightmap is used.
package formats
