// Copyright 2025 The NLP Odyssey Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package voiceagent

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/nlpodyssey/voiceagent-go/modelsettings"
	"github.com/nlpodyssey/voiceagent-go/usage"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared/constant"
)

// DefaultModelTimeout bounds one model call. The provider itself enforces
// no deadline, and a phone call cannot wait forever for an answer.
const DefaultModelTimeout = 30 * time.Second

// OpenAIModelParams configures an OpenAIModel.
type OpenAIModelParams struct {
	// Model is the model name, e.g. "gpt-4o-mini".
	Model openai.ChatModel

	// APIKey for the OpenAI client. Ignored when Client is provided.
	APIKey string

	// BaseURL overrides the API endpoint, e.g. for an Azure deployment or
	// a local test server. Ignored when Client is provided.
	BaseURL param.Opt[string]

	// Client is an optional pre-built client.
	Client *openai.Client

	// Streaming selects the incremental strategy: partial text is yielded
	// as it becomes available. When false, one blocking request is made
	// per turn.
	Streaming bool

	// Timeout bounds one model call; DefaultModelTimeout when zero.
	// A call that exceeds it takes the failure path.
	Timeout time.Duration

	// Settings are the model parameters; modelsettings.Defaults() fields
	// fill whatever is left unset.
	Settings modelsettings.ModelSettings
}

// OpenAIModel produces spoken replies with the OpenAI chat completions
// API. It implements both backend strategies behind the Model contract:
// streamed deltas or a single blocking completion, selected at
// construction time.
type OpenAIModel struct {
	model     openai.ChatModel
	client    openai.Client
	streaming bool
	timeout   time.Duration
	settings  modelsettings.ModelSettings
}

// NewOpenAIModel creates an OpenAIModel.
func NewOpenAIModel(params OpenAIModelParams) *OpenAIModel {
	var client openai.Client
	if params.Client != nil {
		client = *params.Client
	} else {
		opts := []option.RequestOption{option.WithAPIKey(params.APIKey)}
		if params.BaseURL.Valid() {
			opts = append(opts, option.WithBaseURL(params.BaseURL.Value))
		}
		client = openai.NewClient(opts...)
	}

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}

	return &OpenAIModel{
		model:     params.Model,
		client:    client,
		streaming: params.Streaming,
		timeout:   timeout,
		settings:  modelsettings.Defaults().Resolve(params.Settings),
	}
}

// Generate implements Model. The returned sequence yields fragments as
// they arrive and always terminates with exactly one final fragment; any
// provider error is converted into the fallback failure fragment.
func (m *OpenAIModel) Generate(ctx context.Context, params GenerateParams) iter.Seq[ResponseFragment] {
	return func(yield func(ResponseFragment) bool) {
		ctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		body := m.prepareRequest(params)

		if m.streaming {
			m.generateStreaming(ctx, params, body, yield)
		} else {
			m.generateSingleShot(ctx, params, body, yield)
		}
	}
}

func (m *OpenAIModel) generateStreaming(
	ctx context.Context,
	params GenerateParams,
	body openai.ChatCompletionNewParams,
	yield func(ResponseFragment) bool,
) {
	body.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: param.NewOpt(true),
	}

	stream := m.client.Chat.Completions.NewStreaming(ctx, body)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		chunk := stream.Current()

		if chunk.Usage.TotalTokens != 0 {
			m.recordUsage(ctx, chunk.Usage)
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content == "" {
			continue
		}

		if !yield(ResponseFragment{Text: delta.Content}) {
			return
		}
	}

	if err := stream.Err(); err != nil {
		Logger().Error("model stream failed",
			slog.String("response_id", params.ResponseID),
			slog.String("error", err.Error()))
		yield(FailureFragment())
		return
	}

	// Turn complete: one terminal fragment, empty text, no call-ending
	// intent.
	yield(ResponseFragment{Final: true})
}

func (m *OpenAIModel) generateSingleShot(
	ctx context.Context,
	params GenerateParams,
	body openai.ChatCompletionNewParams,
	yield func(ResponseFragment) bool,
) {
	response, err := m.client.Chat.Completions.New(ctx, body)
	if err != nil {
		Logger().Error("model request failed",
			slog.String("response_id", params.ResponseID),
			slog.String("error", err.Error()))
		yield(FailureFragment())
		return
	}

	m.recordUsage(ctx, response.Usage)

	var text string
	if len(response.Choices) > 0 {
		text = response.Choices[0].Message.Content
	}

	if DontLogModelData {
		slog.Debug("LLM responded")
	} else {
		slog.Debug("LLM responded", slog.String("message", text))
	}

	yield(ResponseFragment{Text: text, Final: true})
}

func (m *OpenAIModel) prepareRequest(params GenerateParams) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(params.Messages))
	for _, msg := range params.Messages {
		messages = append(messages, chatMessageToParam(msg))
	}

	if DontLogModelData {
		slog.Debug("Calling LLM", slog.String("response_id", params.ResponseID))
	} else {
		slog.Debug("Calling LLM",
			slog.String("response_id", params.ResponseID),
			slog.String("interaction", string(params.Interaction)),
			slog.String("messages", SimplePrettyJSONMarshal(params.Messages)),
		)
	}

	return openai.ChatCompletionNewParams{
		Model:       m.model,
		Messages:    messages,
		Temperature: m.settings.Temperature,
		TopP:        m.settings.TopP,
		MaxTokens:   m.settings.MaxTokens,
		Metadata:    m.settings.Metadata,
	}
}

func (m *OpenAIModel) recordUsage(ctx context.Context, cu openai.CompletionUsage) {
	u, ok := usage.FromContext(ctx)
	if !ok {
		return
	}
	u.Add(&usage.Usage{
		Requests:     1,
		InputTokens:  uint64(cu.PromptTokens),
		OutputTokens: uint64(cu.CompletionTokens),
		TotalTokens:  uint64(cu.TotalTokens),
	})
}

func chatMessageToParam(msg ChatMessage) openai.ChatCompletionMessageParamUnion {
	switch msg.Role {
	case RoleSystem:
		return openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.NewOpt(msg.Content),
				},
				Role: constant.ValueOf[constant.System](),
			},
		}
	case RoleAssistant:
		return openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				Content: openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: param.NewOpt(msg.Content),
				},
				Role: constant.ValueOf[constant.Assistant](),
			},
		}
	default:
		return openai.ChatCompletionMessageParamUnion{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: param.NewOpt(msg.Content),
				},
				Role: constant.ValueOf[constant.User](),
			},
		}
	}
}
