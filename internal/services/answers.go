package services

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"quizforge-backend/internal/models"
)

const (
	minOptions        = 2
	maxOptions        = 5
	minQuestionLength = 10
)

var (
	optionLine   = regexp.MustCompile(`^([A-Ea-e])[.)]\s*(.+)$`)
	usernameRule = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)
)

// ParseOptions reads "A. text" / "A) text" lines. Letters must run from A
// without gaps and there must be between two and five of them.
func ParseOptions(optionsText string) ([]models.Option, error) {
	var opts []models.Option
	for _, raw := range strings.Split(optionsText, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		m := optionLine.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("invalid option line %q: expected format \"A. text\"", line)
		}
		opts = append(opts, models.Option{Letter: strings.ToUpper(m[1]), Text: strings.TrimSpace(m[2])})
	}

	if len(opts) < minOptions {
		return nil, fmt.Errorf("at least %d options are required", minOptions)
	}
	if len(opts) > maxOptions {
		return nil, fmt.Errorf("at most %d options are allowed", maxOptions)
	}
	for i, o := range opts {
		want := string(rune('A' + i))
		if o.Letter != want {
			return nil, fmt.Errorf("options must be lettered sequentially from A: expected %s, got %s", want, o.Letter)
		}
	}
	return opts, nil
}

// NormalizeAnswer returns the canonical form of an answer: upper-case letters,
// de-duplicated, sorted and comma-joined. "c, a,A" → "A,C".
func NormalizeAnswer(answer string) string {
	seen := make(map[string]bool)
	var letters []string
	for _, part := range strings.FieldsFunc(strings.ToUpper(answer), func(r rune) bool {
		return r == ',' || r == ' ' || r == ';' || r == '\t'
	}) {
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		letters = append(letters, part)
	}
	sort.Strings(letters)
	return strings.Join(letters, ",")
}

// AnswerLetters splits a canonical answer into its letters.
func AnswerLetters(answer string) []string {
	n := NormalizeAnswer(answer)
	if n == "" {
		return nil
	}
	return strings.Split(n, ",")
}

// AnswersMatch compares two answers as sets, ignoring order, case and spacing.
func AnswersMatch(a, b string) bool {
	na, nb := NormalizeAnswer(a), NormalizeAnswer(b)
	return na != "" && na == nb
}

// ValidateAnswer checks an answer against the question's options and response type.
func ValidateAnswer(answer, responseType string, expectedCount *int, opts []models.Option) error {
	letters := AnswerLetters(answer)
	valid := make(map[string]bool, len(opts))
	for _, o := range opts {
		valid[o.Letter] = true
	}
	for _, l := range letters {
		if !valid[l] {
			return fmt.Errorf("answer letter %s is not one of the options", l)
		}
	}

	switch responseType {
	case models.ResponseSingle:
		if len(letters) != 1 {
			return fmt.Errorf("single-choice answer must be exactly one letter")
		}
	case models.ResponseMultiple:
		if len(letters) < 2 {
			return fmt.Errorf("multiple-choice answer must have at least two letters")
		}
		if expectedCount != nil && len(letters) != *expectedCount {
			return fmt.Errorf("expected %d selections, got %d", *expectedCount, len(letters))
		}
	default:
		return fmt.Errorf("unknown response type %q", responseType)
	}
	return nil
}

// ValidateQuestionInput applies the content rules to a question. A declared
// answer is optional unless requireAnswer is set.
func ValidateQuestionInput(in models.QuestionInput, requireAnswer bool) ([]models.Option, error) {
	if err := ValidateRequest(in); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if len(strings.TrimSpace(in.QuestionText)) < minQuestionLength {
		fields["question_text"] = fmt.Sprintf("must be at least %d characters", minQuestionLength)
	}

	opts, err := ParseOptions(in.OptionsText)
	if err != nil {
		fields["options_text"] = err.Error()
	}

	if in.ResponseType == models.ResponseSingle && in.ExpectedCount != nil {
		fields["expected_count"] = "only applies to multiple-choice questions"
	}
	if opts != nil && in.ExpectedCount != nil {
		switch {
		case *in.ExpectedCount > len(opts):
			fields["expected_count"] = "cannot exceed the number of options"
		case *in.ExpectedCount == len(opts):
			fields["expected_count"] = "must be less than the number of options"
		}
	}

	switch {
	case strings.TrimSpace(in.CorrectAnswer) == "":
		if requireAnswer {
			fields["correct_answer"] = "is required"
		}
	case opts != nil:
		if err := ValidateAnswer(in.CorrectAnswer, in.ResponseType, in.ExpectedCount, opts); err != nil {
			fields["correct_answer"] = err.Error()
		}
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return opts, nil
}

// ValidUsername reports whether a quiz-taker name is 3-50 letters, digits, '_' or '-'.
func ValidUsername(username string) bool {
	return usernameRule.MatchString(username)
}

// Percentage rounds part/total to one decimal place.
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(total)) / 10
}
