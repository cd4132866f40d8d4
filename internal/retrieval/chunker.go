package retrieval

// Span is one contiguous slice of a document's text produced by chunking.
// Offsets and lengths are in runes.
type Span struct {
	Ordinal     int
	Text        string
	StartOffset int
	CharLength  int
}

// ChunkText splits text into overlapping spans of at most size runes.
// Adjacent spans share exactly overlap runes; only the final span may be
// shorter than size. Invalid overlap values are clamped to size/2.
func ChunkText(text string, size, overlap int) []Span {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 2
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	var spans []Span
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		spans = append(spans, Span{
			Ordinal:     len(spans),
			Text:        string(runes[i:end]),
			StartOffset: i,
			CharLength:  end - i,
		})
		if end == len(runes) {
			break
		}
	}
	return spans
}
