package request

import "fmt"

// StreamKind selects one of the three logical streams of a request cycle.
type StreamKind int

const (
	StreamOut StreamKind = iota
	StreamIn
	StreamErr
)

// String returns the stream name
func (k StreamKind) String() string {
	switch k {
	case StreamOut:
		return "out"
	case StreamIn:
		return "in"
	case StreamErr:
		return "err"
	default:
		panic(fmt.Sprintf("request: unknown stream kind %d", int(k)))
	}
}
