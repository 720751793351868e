package generate

import (
	"strings"

	"github.com/tendant/simple-study-pipeline/internal/parse"
	"github.com/tendant/simple-study-pipeline/internal/study"
)

const (
	fallbackSentenceLimit = 5
	fallbackMinSentence   = 20
	fallbackMinWords      = 5
	fallbackMinQuestions  = 3
	blank                 = "______"
)

var blankStopwords = map[string]bool{"the": true, "and": true, "for": true, "with": true, "from": true}

var optionPrefixes = []string{"A)", "B)", "C)", "D)", "a)", "b)", "c)", "d)"}

// ParseQuiz reads questions from a model answer: the "questions" array of the
// first JSON object, or failing that, blank-line separated text blocks.
func ParseQuiz(resp string, limit int) []study.QuizQuestion {
	if limit <= 0 {
		limit = defaultQuizParseLimit
	}
	if obj, err := parse.Object(resp); err == nil {
		if _, ok := obj["questions"]; ok {
			return quizFromJSON(parse.Objects(obj, "questions"), limit)
		}
	}
	return quizFromText(resp)
}

func quizFromJSON(items []map[string]any, limit int) []study.QuizQuestion {
	out := make([]study.QuizQuestion, 0, len(items))
	for _, q := range items {
		if len(out) == limit {
			break
		}
		options := parse.Strings(q, "options")
		if _, ok := q["options"]; !ok {
			options = []string{"Option A", "Option B", "Option C", "Option D"}
		}
		out = append(out, study.QuizQuestion{
			Question:      stringOr(q, "question", "Sample question"),
			QuestionType:  stringOr(q, "type", study.QuestionMultipleChoice),
			Options:       options,
			CorrectAnswer: stringOr(q, "correct_answer", "Option A"),
			Explanation:   stringOr(q, "explanation", "Generated explanation"),
			Difficulty:    stringOr(q, "difficulty", "medium"),
			Topic:         stringOr(q, "topic", "General"),
		})
	}
	return out
}

func quizFromText(resp string) []study.QuizQuestion {
	out := []study.QuizQuestion{}
	blocks := strings.Split(resp, "\n\n")
	if len(blocks) > textQuizParseLimit {
		blocks = blocks[:textQuizParseLimit]
	}
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if len([]rune(block)) <= fallbackMinSentence {
			continue
		}
		lines := strings.Split(block, "\n")
		question := lines[0]

		var options []string
		for _, line := range lines[1:] {
			line = strings.TrimSpace(line)
			for _, p := range optionPrefixes {
				if strings.HasPrefix(line, p) {
					options = append(options, line)
					break
				}
			}
		}
		if len(options) == 0 {
			lower := strings.ToLower(question)
			if strings.Contains(lower, "true") || strings.Contains(lower, "false") {
				options = []string{"True", "False"}
			} else {
				options = []string{"Option A", "Option B", "Option C", "Option D"}
			}
		}
		if len(options) > 4 {
			options = options[:4]
		}

		qtype := study.QuestionMultipleChoice
		if len(options) == 2 {
			qtype = study.QuestionTrueFalse
		}
		out = append(out, study.QuizQuestion{
			Question:      prefix(question, maxParsedQuestionRunes),
			QuestionType:  qtype,
			Options:       options,
			CorrectAnswer: options[0],
			Explanation:   "This question tests understanding of the concept discussed in the content.",
			Difficulty:    "medium",
			Topic:         "Content Analysis",
		})
	}
	return out
}

// FallbackQuiz builds fill-in-the-blank questions from the first sentences of
// text without a model. The first word longer than three characters that is
// not a stopword becomes the blank. When fewer than three questions result a
// general comprehension question is appended.
func FallbackQuiz(text string) []study.QuizQuestion {
	out := []study.QuizQuestion{}
	sentences := strings.Split(text, ". ")
	if len(sentences) > fallbackSentenceLimit {
		sentences = sentences[:fallbackSentenceLimit]
	}
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if len([]rune(sentence)) <= fallbackMinSentence {
			continue
		}
		words := strings.Fields(sentence)
		if len(words) <= fallbackMinWords {
			continue
		}
		missing := ""
		for _, w := range words {
			if len([]rune(w)) > 3 && !blankStopwords[strings.ToLower(w)] {
				missing = w
				break
			}
		}
		if missing == "" {
			continue
		}
		out = append(out, study.QuizQuestion{
			Question:      "Fill in the blank: " + strings.Replace(sentence, missing, blank, 1),
			QuestionType:  study.QuestionFillInBlank,
			Options:       []string{missing, "placeholder1", "placeholder2", "placeholder3"},
			CorrectAnswer: missing,
			Explanation:   "The correct answer is '" + missing + "' based on the context in the original text.",
			Difficulty:    "medium",
			Topic:         "Content Comprehension",
		})
	}

	if text != "" && len(out) < fallbackMinQuestions {
		out = append(out, study.QuizQuestion{
			Question:      "What is the main topic discussed in this content?",
			QuestionType:  study.QuestionShortAnswer,
			Options:       []string{},
			CorrectAnswer: "The main topic relates to the educational content provided.",
			Explanation:   "This question tests general comprehension of the material.",
			Difficulty:    "easy",
			Topic:         "General Comprehension",
		})
	}
	return out
}

func stringOr(m map[string]any, key, def string) string {
	if v, ok := parse.String(m, key); ok {
		return v
	}
	return def
}
