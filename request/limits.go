package request

// DefaultChunkSize is the read size used by ReadAll / ReadAllBytes (512
// bytes, matching the classic FCGX buffered-read granularity).
const DefaultChunkSize int = 512

// Limits holds per-request tuning knobs.
type Limits struct {
	// ChunkSize is the buffer size for each underlying read issued by
	// ReadAll and ReadAllBytes.
	ChunkSize int
}

// DefaultLimits returns the default request limits
func DefaultLimits() Limits {
	return Limits{
		ChunkSize: DefaultChunkSize,
	}
}
