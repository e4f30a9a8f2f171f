// Package natives names lumen's built-in global functions. It exists so the
// compiler (which must treat them as immutable globals, the same as a
// user-declared const) and the VM (which defines them) agree on exactly one
// list rather than keeping two copies of the same four names in sync by
// hand.
package natives

const (
	Clock = "clock"
	Sqrt  = "sqrt"
	Pow   = "pow"
	Atof  = "atof"
)

// Names enumerates every native global lumen predeclares.
var Names = []string{Clock, Sqrt, Pow, Atof}
