package chunking

import (
	"regexp"
	"unicode/utf8"
)

const (
	DefaultChunkSize   = 4000
	DefaultOverlapSize = 200

	// a break point is accepted only past this fraction of the chunk size
	minBreakRatio = 0.7

	mathLookBehind = 50
	mathLookAhead  = 200
)

// break markers in priority order; the first acceptable one wins
var breakMarkers = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
}

var mathSpanPattern = regexp.MustCompile(`\$\$[^$]+\$\$|\$[^$]+\$|\\[a-zA-Z]+`)

// Options controls chunk creation
type Options struct {
	ChunkSize              int
	OverlapSize            int
	PreserveSpecialContent bool
}

// DefaultOptions returns the standard chunking options
func DefaultOptions() Options {
	return Options{ChunkSize: DefaultChunkSize, OverlapSize: DefaultOverlapSize, PreserveSpecialContent: true}
}

// CreateChunks splits text into ordered chunks. Text no longer than the chunk
// size yields a single chunk equal to the text.
func CreateChunks(text string, opts Options) []DocumentChunk {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.OverlapSize < 0 {
		opts.OverlapSize = 0
	}

	runes := []rune(text)
	n := len(runes)
	if n <= opts.ChunkSize {
		return []DocumentChunk{newChunk(0, runes, 0, n, 0)}
	}

	var spans [][2]int
	if opts.PreserveSpecialContent {
		spans = mathSpans(text)
	}

	var chunks []DocumentChunk
	start := 0
	for idx := 0; start < n; idx++ {
		end := start + opts.ChunkSize
		if end > n {
			end = n
		}
		if end < n {
			end = breakPoint(runes, start, end, opts.ChunkSize)
		}

		chunkStart := start
		if idx > 0 {
			chunkStart = start - opts.OverlapSize
			if chunkStart < 0 {
				chunkStart = 0
			}
			if opts.PreserveSpecialContent {
				chunkStart = extendOverMath(spans, chunkStart)
			}
		}

		chunks = append(chunks, newChunk(idx, runes, chunkStart, end, start-chunkStart))
		start = end
	}
	return chunks
}

// breakPoint returns the chunk end: one past the first marker, in priority
// order, found in [start, end) and far enough from start. Falls back to end.
func breakPoint(runes []rune, start, end, size int) int {
	minPos := float64(start) + float64(size)*minBreakRatio
	for _, marker := range breakMarkers {
		bp := lastIndex(runes, marker, start, end)
		if bp >= 0 && float64(bp) > minPos {
			return bp + 1
		}
	}
	return end
}

// lastIndex finds the last occurrence of sub lying entirely within [lo, hi)
func lastIndex(runes, sub []rune, lo, hi int) int {
	for i := hi - len(sub); i >= lo; i-- {
		match := true
		for j := range sub {
			if runes[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// mathSpans returns rune ranges of complete math expressions in text
func mathSpans(text string) [][2]int {
	locs := mathSpanPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	spans := make([][2]int, 0, len(locs))
	// convert byte offsets to rune offsets in one pass
	runeAt, byteAt := 0, 0
	advance := func(to int) int {
		runeAt += utf8.RuneCountInString(text[byteAt:to])
		byteAt = to
		return runeAt
	}
	for _, loc := range locs {
		s := advance(loc[0])
		e := advance(loc[1])
		spans = append(spans, [2]int{s, e})
	}
	return spans
}

// extendOverMath moves a chunk start that cuts through a complete math span
// near the boundary back to the beginning of that span
func extendOverMath(spans [][2]int, chunkStart int) int {
	lo, hi := chunkStart-mathLookBehind, chunkStart+mathLookAhead
	for _, sp := range spans {
		if sp[0] >= chunkStart {
			break
		}
		if sp[0] < lo || sp[1] > hi {
			continue
		}
		if sp[0] < chunkStart && chunkStart < sp[1] {
			return sp[0]
		}
	}
	return chunkStart
}

// Reconstruct joins chunk bodies back into the source text
func Reconstruct(chunks []DocumentChunk) string {
	var size int
	for _, c := range chunks {
		size += len(c.Content)
	}
	buf := make([]byte, 0, size)
	for _, c := range chunks {
		buf = append(buf, c.Body()...)
	}
	return string(buf)
}
