package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockBackend validates through a model hosted on AWS Bedrock. Anthropic
// models get the messages body, everything else the chat-completions body.
type BedrockBackend struct {
	client bedrockInvoker
	name   string
	model  string
	params LLMParams
}

// NewBedrockClient builds a runtime client from the default AWS credential chain.
func NewBedrockClient(ctx context.Context, region string) (*bedrockruntime.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return bedrockruntime.NewFromConfig(cfg), nil
}

func NewBedrockBackend(client bedrockInvoker, name, model string, params LLMParams) *BedrockBackend {
	return &BedrockBackend{client: client, name: name, model: model, params: params}
}

func (b *BedrockBackend) Name() string  { return b.name }
func (b *BedrockBackend) Model() string { return b.model }

func (b *BedrockBackend) isAnthropic() bool {
	m := strings.ToLower(b.model)
	return strings.Contains(m, "anthropic") || strings.Contains(m, "claude")
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (b *BedrockBackend) requestBody(prompt string) ([]byte, error) {
	messages := []bedrockMessage{{Role: "user", Content: prompt}}
	if b.isAnthropic() {
		return json.Marshal(map[string]any{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        b.params.MaxTokens,
			"temperature":       b.params.Temperature,
			"messages":          messages,
		})
	}
	return json.Marshal(map[string]any{
		"messages":    messages,
		"max_tokens":  b.params.MaxTokens,
		"temperature": b.params.Temperature,
	})
}

// bedrockResponse covers the response shapes of the supported model families.
type bedrockResponse struct {
	Content json.RawMessage `json:"content"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Completion string `json:"completion"`
}

func parseBedrockText(body []byte) (string, error) {
	var resp bedrockResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode bedrock response: %w", err)
	}

	if len(resp.Content) > 0 {
		var blocks []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(resp.Content, &blocks); err == nil {
			var b strings.Builder
			for _, block := range blocks {
				b.WriteString(block.Text)
			}
			if b.Len() > 0 {
				return b.String(), nil
			}
		}
		var s string
		if err := json.Unmarshal(resp.Content, &s); err == nil && s != "" {
			return s, nil
		}
	}
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
		return resp.Choices[0].Message.Content, nil
	}
	if resp.Completion != "" {
		return resp.Completion, nil
	}
	return "", fmt.Errorf("bedrock response contained no text")
}

func (b *BedrockBackend) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := b.requestBody(prompt)
	if err != nil {
		return "", err
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke %s: %w", b.model, err)
	}

	return parseBedrockText(out.Body)
}
