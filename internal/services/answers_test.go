package services

import (
	"testing"

	"quizforge-backend/internal/models"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr bool
	}{
		{"dot format", "A. Paris\nB. Rome\nC. Madrid", 3, false},
		{"paren format with blank lines", "A) one\n\nB) two\n", 2, false},
		{"lower case letters", "a. one\nb. two", 2, false},
		{"single option", "A. only", 0, true},
		{"six options", "A. 1\nB. 2\nC. 3\nD. 4\nE. 5\nF. 6", 0, true},
		{"gap in letters", "A. one\nC. three", 0, true},
		{"not an option line", "A. one\nsomething else", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts, err := ParseOptions(tc.text)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d options", len(opts))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(opts) != tc.want {
				t.Fatalf("expected %d options, got %d", tc.want, len(opts))
			}
			if opts[0].Letter != "A" {
				t.Fatalf("expected first letter A, got %q", opts[0].Letter)
			}
		})
	}
}

func TestNormalizeAnswer(t *testing.T) {
	tests := map[string]string{
		"b":         "B",
		"c, a,A":    "A,C",
		" D ; b ":   "B,D",
		"":          "",
		"A,B,C,B,A": "A,B,C",
	}
	for in, want := range tests {
		if got := NormalizeAnswer(in); got != want {
			t.Errorf("NormalizeAnswer(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAnswersMatch(t *testing.T) {
	if !AnswersMatch("a,c", "C, A") {
		t.Fatal("expected set-equal answers to match")
	}
	if AnswersMatch("A", "A,B") {
		t.Fatal("expected subset not to match")
	}
	if AnswersMatch("", "") {
		t.Fatal("expected empty answers not to match")
	}
}

func TestValidateAnswer(t *testing.T) {
	opts, _ := ParseOptions("A. 1\nB. 2\nC. 3\nD. 4")
	two := 2

	tests := []struct {
		name         string
		answer       string
		responseType string
		expected     *int
		wantErr      bool
	}{
		{"single ok", "B", models.ResponseSingle, nil, false},
		{"single with two letters", "A,B", models.ResponseSingle, nil, true},
		{"unknown letter", "E", models.ResponseSingle, nil, true},
		{"multiple ok", "A,C", models.ResponseMultiple, &two, false},
		{"multiple with one letter", "A", models.ResponseMultiple, nil, true},
		{"multiple wrong count", "A,B,C", models.ResponseMultiple, &two, true},
		{"unknown response type", "A", "essay", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAnswer(tc.answer, tc.responseType, tc.expected, opts)
			if (err != nil) != tc.wantErr {
				t.Fatalf("expected error=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateQuestionInput_CollectsFieldErrors(t *testing.T) {
	in := models.QuestionInput{
		QuestionText:  "   What?    ",
		OptionsText:   "A. one\nB. two",
		ResponseType:  models.ResponseSingle,
		CorrectAnswer: "C",
		Difficulty:    models.DifficultyEasy,
	}

	_, err := ValidateQuestionInput(in, true)
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
	}
	if _, ok := verr.Fields["question_text"]; !ok {
		t.Fatalf("expected question_text error, got %v", verr.Fields)
	}
	if _, ok := verr.Fields["correct_answer"]; !ok {
		t.Fatalf("expected correct_answer error, got %v", verr.Fields)
	}
}

func TestValidateQuestionInput_AnswerOptionalUnlessRequired(t *testing.T) {
	in := models.QuestionInput{
		QuestionText: "Which port does HTTPS use by default?",
		OptionsText:  "A. 80\nB. 443\nC. 8080",
		ResponseType: models.ResponseSingle,
		Difficulty:   models.DifficultyEasy,
	}

	if _, err := ValidateQuestionInput(in, false); err != nil {
		t.Fatalf("expected no error without declared answer, got %v", err)
	}
	if _, err := ValidateQuestionInput(in, true); err == nil {
		t.Fatal("expected error when a declared answer is required")
	}
}

func TestValidateQuestionInput_ExpectedCount(t *testing.T) {
	count := func(n int) *int { return &n }
	tests := []struct {
		name    string
		options string
		answer  string
		count   *int
		wantErr bool
	}{
		{"below options", "A. S3\nB. EBS\nC. EFS\nD. SQS", "A,B,C", count(3), false},
		{"equals options", "A. S3\nB. EBS\nC. EFS", "A,B,C", count(3), true},
		{"exceeds options", "A. S3\nB. EBS\nC. EFS", "A,B", count(4), true},
		{"unset", "A. S3\nB. EBS\nC. EFS", "A,B", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateQuestionInput(models.QuestionInput{
				QuestionText:  "Which AWS services provide storage?",
				OptionsText:   tc.options,
				ResponseType:  models.ResponseMultiple,
				CorrectAnswer: tc.answer,
				ExpectedCount: tc.count,
				Difficulty:    models.DifficultyMedium,
			}, true)

			hasField := false
			if verr, ok := err.(*ValidationError); ok {
				_, hasField = verr.Fields["expected_count"]
			}
			if tc.wantErr != hasField {
				t.Fatalf("expected expected_count error %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidUsername(t *testing.T) {
	valid := []string{"bob", "alice_01", "a-b-c"}
	invalid := []string{"ab", "has space", "emoji🙂", ""}
	for _, u := range valid {
		if !ValidUsername(u) {
			t.Errorf("expected %q to be valid", u)
		}
	}
	for _, u := range invalid {
		if ValidUsername(u) {
			t.Errorf("expected %q to be invalid", u)
		}
	}
}

func TestPercentage(t *testing.T) {
	if got := Percentage(2, 3); got != 66.7 {
		t.Fatalf("expected 66.7, got %v", got)
	}
	if got := Percentage(5, 0); got != 0 {
		t.Fatalf("expected 0 for empty attempt, got %v", got)
	}
}
