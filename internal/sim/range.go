package sim

import "fmt"

// Span is an inclusive range of op indexes or block numbers.
type Span struct {
	From uint64
	To   uint64
}

// SplitRange splits [from, to] into spans of at most size elements.
func SplitRange(from, to, size uint64) ([]Span, error) {
	if size == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("range end %d before start %d", to, from)
	}

	spans := make([]Span, 0, (to-from)/size+1)
	for start := from; ; {
		end := to
		if to-start >= size {
			end = start + size - 1
		}
		spans = append(spans, Span{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}
	return spans, nil
}
