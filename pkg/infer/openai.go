package infer

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
)

var _ Client = (*OpenAI)(nil)

const oaiFinishReasonStop = "stop"

// OpenAI implements Client using the OpenAI chat completions API.
// Structured calls use the strict json_schema response format.
type OpenAI struct {
	Client *openai.Client

	// Model is the chat model for both call shapes. Required.
	Model string

	// Temperature, when > 0, is sent on every request.
	Temperature float64
}

// Complete issues a plain chat completion and returns the text.
func (c *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	params := c.params(req.System, req.User)
	resp, err := c.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("infer: complete: %w", err)
	}
	choice, err := pickChoice(resp)
	if err != nil {
		return "", err
	}
	return choice.Message.Content, nil
}

// Invoke issues a structured call constrained by call.Schema and
// unmarshals the response into out.
func (c *OpenAI) Invoke(ctx context.Context, call Call, out any) error {
	params := c.params(call.System, call.User)
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:        call.Name,
				Description: param.NewOpt(call.Description),
				Schema:      any(strictSchema(call.Schema)),
				Strict:      param.NewOpt(true),
			},
		},
	}
	resp, err := c.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("infer: invoke %s: %w", call.Name, err)
	}
	choice, err := pickChoice(resp)
	if err != nil {
		return fmt.Errorf("infer: invoke %s: %w", call.Name, err)
	}
	if err := unmarshalRepair([]byte(choice.Message.Content), out); err != nil {
		return fmt.Errorf("infer: invoke %s: decode: %w", call.Name, err)
	}
	return nil
}

func (c *OpenAI) params(system, user string) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: c.Model,
	}
	if system != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(system))
	}
	params.Messages = append(params.Messages, openai.UserMessage(user))
	if c.Temperature > 0 {
		params.Temperature = param.NewOpt(c.Temperature)
	}
	return params
}

func pickChoice(resp *openai.ChatCompletion) (*openai.ChatCompletionChoice, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices")
	}
	choice := &resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, fmt.Errorf("blocked: %s", choice.Message.Refusal)
	}
	if choice.FinishReason != oaiFinishReasonStop {
		return nil, fmt.Errorf("want stop, got unexpected finish reason: %s", choice.FinishReason)
	}
	if choice.Message.Content == "" {
		return nil, errors.New("no content")
	}
	return choice, nil
}

// strictSchema formats a schema for OpenAI strict structured outputs:
// every object carries additionalProperties: false, and every property
// is required (optional ones become nullable).
//
// See https://platform.openai.com/docs/guides/structured-outputs
func strictSchema(m *jsonschema.Schema) *jsonschema.Schema {
	if m == nil {
		return nil
	}
	return formatStrict(m.CloneSchemas())
}

func formatStrict(m *jsonschema.Schema) *jsonschema.Schema {
	if m == nil {
		return nil
	}

	// The jsonschema library may express nullable fields with Types
	// while Type is empty; consolidate before dispatching.
	if m.Type != "" && len(m.Types) > 0 {
		m.Types = append(m.Types, m.Type)
		m.Type = ""
	}
	typ := m.Type
	if typ == "" {
		for _, t := range m.Types {
			if t != "null" && t != "" {
				typ = t
				break
			}
		}
	}

	switch typ {
	case "array":
		m.Items = formatStrict(m.Items)
	case "object":
		m.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}} // false schema

		required := make(map[string]struct{})
		for _, k := range m.Required {
			required[k] = struct{}{}
		}
		for k, v := range m.Properties {
			if _, ok := required[k]; !ok {
				required[k] = struct{}{}
				if !slices.Contains(v.Types, "null") {
					v.Types = append(v.Types, "null")
				}
			}
			m.Properties[k] = formatStrict(v)
		}
		m.Required = slices.Collect(maps.Keys(required))
	}
	return m
}
