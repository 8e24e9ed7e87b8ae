package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"quizforge-backend/internal/models"
)

// LLMBackend is one answer validator.
type LLMBackend interface {
	Name() string
	Model() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMParams are the generation settings shared by every backend.
type LLMParams struct {
	MaxTokens   int
	Temperature float32
}

func buildValidationPrompt(in models.QuestionInput, quiz *models.QuizContext) string {
	var b strings.Builder

	b.WriteString("You are an expert exam reviewer. Solve the multiple-choice question below independently, ")
	b.WriteString("then compare your answer with the stored answer if one is given.\n\n")

	if quiz != nil {
		b.WriteString("QUIZ CONTEXT:\n")
		if quiz.Topic != "" {
			fmt.Fprintf(&b, "- Topic: %s\n", quiz.Topic)
		}
		if quiz.TargetLevel != "" {
			fmt.Fprintf(&b, "- Target level: %s\n", quiz.TargetLevel)
		}
		if quiz.CertReference != "" {
			fmt.Fprintf(&b, "- Certification: %s\n", quiz.CertReference)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "QUESTION:\n%s\n\n", strings.TrimSpace(in.QuestionText))
	fmt.Fprintf(&b, "OPTIONS:\n%s\n\n", strings.TrimSpace(in.OptionsText))

	if in.ResponseType == models.ResponseMultiple {
		b.WriteString("RESPONSE TYPE: multiple (select ALL correct options")
		if in.ExpectedCount != nil {
			fmt.Fprintf(&b, ", exactly %d", *in.ExpectedCount)
		}
		b.WriteString(")\n")
	} else {
		b.WriteString("RESPONSE TYPE: single (select exactly ONE option)\n")
	}

	if answer := NormalizeAnswer(in.CorrectAnswer); answer != "" {
		fmt.Fprintf(&b, "STORED ANSWER: %s\n", answer)
	} else {
		b.WriteString("STORED ANSWER: none provided\n")
	}

	b.WriteString(`
Respond with ONLY a JSON object, no markdown, in exactly this shape:
{
  "your_answer": "comma-separated option letters, e.g. \"B\" or \"A,C\"",
  "confidence": "high | medium | low",
  "agrees_with_stored": true | false | null,
  "explanation": "why the correct option(s) are correct",
  "why_wrong": {"A": "why option A is wrong"},
  "key_concept": "the concept being tested",
  "references": ["documentation or source names"],
  "concerns": "ambiguities in the question, or empty"
}`)

	return b.String()
}

// extractJSONObject returns the first complete JSON object in text. It accepts
// bare JSON, fenced ```json blocks and objects surrounded by prose.
func extractJSONObject(text string) (string, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if json.Valid([]byte(cleaned)) && strings.HasPrefix(cleaned, "{") {
		return cleaned, nil
	}

	start := strings.Index(cleaned, "{")
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(cleaned); i++ {
		c := cleaned[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := cleaned[start : i+1]
				if !json.Valid([]byte(candidate)) {
					return "", fmt.Errorf("malformed JSON object in response")
				}
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("unterminated JSON object in response")
}

// parseVerdict decodes a backend's raw text into a Verdict with a canonical answer.
func parseVerdict(text string) (*models.Verdict, error) {
	obj, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var v models.Verdict
	if err := json.Unmarshal([]byte(obj), &v); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}

	v.Answer = NormalizeAnswer(v.Answer)
	if v.Answer == "" {
		return nil, fmt.Errorf("verdict has no answer")
	}
	return &v, nil
}
