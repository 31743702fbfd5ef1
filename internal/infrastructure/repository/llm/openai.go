package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/huavcjj/mailgate/internal/apperr"
	verdict_domain "github.com/huavcjj/mailgate/internal/domain/verdict"
)

const DefaultModel = "gpt-4o-mini"

const systemPrompt = `You review messages a user received and judge whether they are a scam.
Answer with a verdict of "legit", "suspicious" or "scam", your confidence between 0 and 1,
and one or two sentences of practical advice for the user.`

var verdictSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"verdict": map[string]any{
			"type": "string",
			"enum": []string{
				string(verdict_domain.LabelLegit),
				string(verdict_domain.LabelSuspicious),
				string(verdict_domain.LabelScam),
			},
		},
		"confidence": map[string]any{
			"type":    "number",
			"minimum": 0,
			"maximum": 1,
		},
		"advice": map[string]any{"type": "string"},
	},
	"required":             []string{"verdict", "confidence", "advice"},
	"additionalProperties": false,
}

type verdictRepo struct {
	client openai.Client
	model  string
}

var _ verdict_domain.VerdictRepo = (*verdictRepo)(nil)

func NewVerdictRepo(apiKey, model, baseURL string) (verdict_domain.VerdictRepo, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is empty")
	}
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &verdictRepo{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (r *verdictRepo) Generate(ctx context.Context, text string) (*verdict_domain.Verdict, error) {
	completion, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "verdict",
					Schema: verdictSchema,
					Strict: openai.Bool(true),
				},
			},
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &apperr.Error{
				Kind:           apperr.KindUpstream,
				Message:        "verdict request failed",
				UpstreamStatus: apiErr.StatusCode,
				UpstreamBody:   apiErr.Message,
				Err:            err,
			}
		}
		return nil, apperr.Wrap(apperr.KindUpstream, "verdict request failed", err)
	}

	if len(completion.Choices) == 0 {
		return nil, apperr.New(apperr.KindUpstream, "verdict response has no choices")
	}

	var v verdict_domain.Verdict
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &v); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to decode verdict", err)
	}
	if err := validate(&v); err != nil {
		return nil, err
	}

	return &v, nil
}

func validate(v *verdict_domain.Verdict) error {
	switch v.Verdict {
	case verdict_domain.LabelLegit, verdict_domain.LabelSuspicious, verdict_domain.LabelScam:
	default:
		return apperr.New(apperr.KindUpstream, fmt.Sprintf("unexpected verdict %q", v.Verdict))
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return apperr.New(apperr.KindUpstream, fmt.Sprintf("confidence %v out of range", v.Confidence))
	}
	return nil
}
