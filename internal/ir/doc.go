// Package ir provides the value types shared by the library store, its
// persistence backends and the host dispatcher.
//
// ir imports nothing internal. Every other internal package may import it,
// which keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types in journaled objects - use int64 for numbers
//   - Logical clocks (seq) only, never wall-clock timestamps
//   - All JSON tags use snake_case
//   - Identity is opaque: compared for equality, never parsed
package ir
