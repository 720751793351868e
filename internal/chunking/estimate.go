package chunking

import (
	"math"
	"regexp"
	"strings"
)

// Estimate describes the expected cost of chunked processing
type Estimate struct {
	EstimatedSeconds  int    `json:"estimated_time_seconds"`
	ChunksRequired    int    `json:"chunks_required"`
	Complexity        string `json:"complexity"`
	RecommendChunking bool   `json:"recommend_chunking"`
}

const secondsPerChunk = 5.0

// EstimateProcessingTime predicts chunk count and wall time for a text length
func EstimateProcessingTime(textLength, chunkSize, concurrency int) Estimate {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	chunks := int(math.Ceil(float64(textLength) / float64(chunkSize)))
	if chunks < 1 {
		chunks = 1
	}

	multiplier := 1.0
	if textLength > 10000 {
		multiplier = 1.5
	}
	if textLength > 20000 {
		multiplier = 2.0
	}
	sequential := float64(chunks) * secondsPerChunk * multiplier

	complexity := "low"
	if chunks > 3 {
		complexity = "medium"
	}
	if chunks > 8 {
		complexity = "high"
	}

	return Estimate{
		EstimatedSeconds:  int(math.RoundToEven(sequential / float64(concurrency))),
		ChunksRequired:    chunks,
		Complexity:        complexity,
		RecommendChunking: chunks > 1,
	}
}

var (
	ocrZero      = regexp.MustCompile(`(\d)\s*[oO]\s*(\d)`)
	ocrOne       = regexp.MustCompile(`([Il])\s*(\d)`)
	operatorGaps = regexp.MustCompile(`(\d)\s*([+\-*/=])\s*(\d)`)
	fraction     = regexp.MustCompile(`(\d+)/(\d+)`)
)

// PreprocessMath normalizes OCR'd math: operator symbols, letter/digit
// confusions, operator spacing and simple fractions.
func PreprocessMath(text string) string {
	text = strings.NewReplacer("×", "*", "÷", "/").Replace(text)
	text = ocrZero.ReplaceAllString(text, "${1} 0 ${2}")
	text = ocrOne.ReplaceAllString(text, "1 ${2}")
	// fractions first so operator spacing does not split them
	text = fraction.ReplaceAllString(text, `\frac{${1}}{${2}}`)
	text = operatorGaps.ReplaceAllString(text, "${1} ${2} ${3}")
	return text
}
