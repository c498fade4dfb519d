// Package ir provides the workflow and value types shared by every cascade
// package.
//
// This package contains type definitions and serialization only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Workflow definitions are immutable once compiled
//   - Rule slices keep declaration order; evaluation order depends on it
//   - Array items are either IRString (scalar) or IRRecord (composite)
//   - All JSON tags use snake_case
package ir
