package fcgitest

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Cycle is the record of one completed request cycle: the parameters and
// body the cycle was scripted with, and the output the handler produced.
type Cycle struct {
	ID     string            `cbor:"id"`
	Params map[string]string `cbor:"params"`
	Stdin  []byte            `cbor:"stdin"`
	Stdout []byte            `cbor:"stdout"`
	Stderr []byte            `cbor:"stderr"`
}

// Transcript returns a copy of all finished cycles, in finish order.
func (e *Engine) Transcript() []Cycle {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Cycle, len(e.transcript))
	copy(out, e.transcript)
	return out
}

// EncodeTranscript serializes the finished cycles as CBOR, for golden
// files and replay fixtures.
func (e *Engine) EncodeTranscript() ([]byte, error) {
	t := e.Transcript()
	data, err := cbor.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("fcgitest: encode transcript: %w", err)
	}
	return data, nil
}

// DecodeTranscript parses a CBOR transcript produced by EncodeTranscript.
func DecodeTranscript(data []byte) ([]Cycle, error) {
	var t []Cycle
	if err := cbor.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("fcgitest: decode transcript: %w", err)
	}
	return t, nil
}

// Replay scripts every cycle of a decoded transcript onto the engine, in
// order, using each cycle's original parameters and body.
func (e *Engine) Replay(t []Cycle) {
	for _, c := range t {
		e.Push(c.Params, c.Stdin)
	}
}
