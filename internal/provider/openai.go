package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"inkwell/internal/capabilities"
	"inkwell/internal/config"
	"inkwell/internal/domain/models/chat"
)

// OpenAIGateway adapts any OpenAI-compatible chat completions endpoint
// (OpenAI, OpenRouter, local servers) selected via BaseURL. These
// endpoints have no separate thinking channel, so all deltas are text.
type OpenAIGateway struct {
	client    openai.Client
	cfg       *config.ProviderConfig
	caps      config.ResolvedCapabilities
	maxTokens int64
	logger    *slog.Logger
}

// NewOpenAIGateway builds a gateway over one OpenAI-compatible provider
// config, resolving capability tri-states against the registry.
func NewOpenAIGateway(cfg *config.ProviderConfig, reg *capabilities.Registry, logger *slog.Logger) (*OpenAIGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s: missing API key", cfg.ID)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
	)

	// Only cap output when the capability table knows the model; unknown
	// models (third-party endpoints) use the server default.
	var maxTokens int64
	if mc, ok := reg.Lookup(string(config.ProviderOpenAI), cfg.ModelID); ok && mc.MaxOutput > 0 {
		maxTokens = int64(mc.MaxOutput)
	}

	return &OpenAIGateway{
		client:    client,
		cfg:       cfg,
		caps:      cfg.ResolveCapabilities(reg),
		maxTokens: maxTokens,
		logger:    logger.With("provider", cfg.ID),
	}, nil
}

func (g *OpenAIGateway) Name() string  { return string(config.ProviderOpenAI) }
func (g *OpenAIGateway) Model() string { return g.cfg.ModelID }

// Complete implements Gateway.Complete via a throwaway tool-less session.
func (g *OpenAIGateway) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	sess := &openaiSession{
		gw:        g,
		system:    req.System,
		opts:      Options{DisableTools: true},
		maxTokens: g.maxTokens,
	}
	if req.MaxTokens > 0 {
		sess.maxTokens = int64(req.MaxTokens)
	}

	var onDelta DeltaFunc
	if req.OnUpdate != nil {
		onDelta = func(d StreamDelta) {
			if d.Kind == DeltaText {
				req.OnUpdate(d.Text)
			}
		}
	}

	input := chat.Message{Role: chat.RoleUser, Text: req.Prompt}
	reply, err := sess.Send(ctx, &input, onDelta)
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

// NewSession implements Gateway.NewSession.
func (g *OpenAIGateway) NewSession(req SessionRequest) Session {
	history := make([]chat.Message, len(req.History))
	copy(history, req.History)
	return &openaiSession{
		gw:        g,
		system:    req.System,
		history:   history,
		tools:     req.Tools,
		opts:      req.Options,
		maxTokens: g.maxTokens,
	}
}

type openaiSession struct {
	gw        *OpenAIGateway
	system    string
	history   []chat.Message
	tools     []ToolDef
	opts      Options
	maxTokens int64
}

func (s *openaiSession) History() []chat.Message {
	out := make([]chat.Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *openaiSession) Send(ctx context.Context, input *chat.Message, onDelta DeltaFunc) (*Reply, error) {
	if input != nil {
		s.history = append(s.history, *input)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(s.gw.cfg.ModelID),
		Messages: convertOpenAIMessages(s.system, s.history),
	}
	if tools := s.activeTools(); len(tools) > 0 {
		params.Tools = convertOpenAITools(tools)
	}
	if s.gw.cfg.Temperature != nil {
		params.Temperature = openai.Float(*s.gw.cfg.Temperature)
	}
	if s.gw.cfg.TopP != nil {
		params.TopP = openai.Float(*s.gw.cfg.TopP)
	}
	if s.maxTokens > 0 {
		params.MaxTokens = openai.Int(s.maxTokens)
	}

	ctx, cancel := context.WithTimeout(ctx, s.gw.cfg.Timeout())
	defer cancel()

	s.gw.logger.Debug("openai request",
		"model", s.gw.cfg.ModelID,
		"message_count", len(params.Messages),
		"tool_count", len(params.Tools),
	)

	stream := s.gw.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if onDelta != nil && len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onDelta(StreamDelta{Kind: DeltaText, Text: chunk.Choices[0].Delta.Content})
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai streaming: %w", err)
	}

	reply := replyFromOpenAICompletion(&acc.ChatCompletion)
	s.history = append(s.history, chat.Message{
		Role:      chat.RoleModel,
		Text:      reply.Text,
		ToolCalls: reply.ToolCalls,
	})
	return reply, nil
}

func (s *openaiSession) activeTools() []ToolDef {
	if s.opts.DisableTools || !s.gw.caps.FunctionCalling {
		return nil
	}
	return s.tools
}

// convertOpenAIMessages converts history to OpenAI message params. The
// system prompt becomes the leading system message.
func convertOpenAIMessages(system string, messages []chat.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}

	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case chat.RoleUser:
			out = append(out, openai.UserMessage(msg.Text))

		case chat.RoleModel:
			if len(msg.ToolCalls) == 0 {
				// Skip empty assistant messages (max_tokens starvation)
				if msg.Text == "" {
					continue
				}
				out = append(out, openai.AssistantMessage(msg.Text))
				continue
			}

			assistant := openai.ChatCompletionAssistantMessageParam{}
			if msg.Text != "" {
				assistant.Content.OfString = param.NewOpt(msg.Text)
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallUnionParam, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				toolCalls[j] = openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: encodeToolArgs(tc.Args),
						},
					},
				}
			}
			assistant.ToolCalls = toolCalls
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		case chat.RoleTool:
			tool := openai.ChatCompletionToolMessageParam{ToolCallID: msg.ToolCallID}
			tool.Content.OfString = param.NewOpt(msg.Text)
			out = append(out, openai.ChatCompletionMessageParamUnion{OfTool: &tool})
		}
	}

	return out
}

func convertOpenAITools(tools []ToolDef) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		params := openai.FunctionParameters{
			"type":       "object",
			"properties": t.Properties,
		}
		if len(t.Required) > 0 {
			params["required"] = t.Required
		}

		out = append(out, openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		))
	}
	return out
}

func replyFromOpenAICompletion(completion *openai.ChatCompletion) *Reply {
	reply := &Reply{}
	if len(completion.Choices) == 0 {
		return reply
	}

	msg := completion.Choices[0].Message
	reply.Text = msg.Content
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = map[string]any{}
		}
		reply.ToolCalls = append(reply.ToolCalls, chat.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return reply
}

func encodeToolArgs(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}
