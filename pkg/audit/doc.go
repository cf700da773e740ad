// Package audit implements the group-fairness measurement engine:
// single-pass confusion tallies per protected group ([Compute]) and
// threshold-based disparity evaluation ([Evaluate]) producing an
// immutable [Report]. The package is pure computation: no I/O, no
// persistence, no shared state.
package audit
