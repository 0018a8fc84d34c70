// Package ir provides the value model shared by every layer of the adapter.
//
// Records exchanged with callers and with the remote client are ordered
// mappings from field name to a tagged Value. The package imports nothing
// internal so that every other package can depend on it.
//
// Key design constraints:
//   - Value is sealed: Null, String, Int, Float, Bool, Array and *Record
//   - Record preserves insertion order for iteration and JSON encoding
//   - Int and Float compare numerically in Equal
package ir
