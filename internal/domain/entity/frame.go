package entity

// Frame is one still image with its offset window. Start and End are in
// frame units of the configured rate; Index only drives reordering.
type Frame struct {
	Index int
	Path  string
	Start float64
	End   float64
}
