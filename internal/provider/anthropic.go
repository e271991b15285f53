package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"inkwell/internal/capabilities"
	"inkwell/internal/config"
	"inkwell/internal/domain/models/chat"
)

// defaultAnthropicMaxTokens is used when the capability table has no
// entry for the configured model.
const defaultAnthropicMaxTokens = 8192

// AnthropicGateway adapts the Anthropic Messages API. It is the only
// adapter with a thinking channel; thinking deltas stream separately
// from text.
type AnthropicGateway struct {
	client    *anthropic.Client
	cfg       *config.ProviderConfig
	caps      config.ResolvedCapabilities
	maxTokens int64
	logger    *slog.Logger
}

// NewAnthropicGateway builds a gateway over one Anthropic provider
// config, resolving capability tri-states against the registry.
func NewAnthropicGateway(cfg *config.ProviderConfig, reg *capabilities.Registry, logger *slog.Logger) (*AnthropicGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s: missing API key", cfg.ID)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	maxTokens := int64(defaultAnthropicMaxTokens)
	if mc, ok := reg.Lookup(string(config.ProviderAnthropic), cfg.ModelID); ok && mc.MaxOutput > 0 {
		maxTokens = int64(mc.MaxOutput)
	}

	return &AnthropicGateway{
		client:    &client,
		cfg:       cfg,
		caps:      cfg.ResolveCapabilities(reg),
		maxTokens: maxTokens,
		logger:    logger.With("provider", cfg.ID),
	}, nil
}

func (g *AnthropicGateway) Name() string  { return string(config.ProviderAnthropic) }
func (g *AnthropicGateway) Model() string { return g.cfg.ModelID }

// Complete implements Gateway.Complete via a throwaway tool-less session.
func (g *AnthropicGateway) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	sess := &anthropicSession{
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
func (g *AnthropicGateway) NewSession(req SessionRequest) Session {
	history := make([]chat.Message, len(req.History))
	copy(history, req.History)
	return &anthropicSession{
		gw:        g,
		system:    req.System,
		history:   history,
		tools:     req.Tools,
		opts:      req.Options,
		maxTokens: g.maxTokens,
	}
}

type anthropicSession struct {
	gw        *AnthropicGateway
	system    string
	history   []chat.Message
	tools     []ToolDef
	opts      Options
	maxTokens int64
}

func (s *anthropicSession) History() []chat.Message {
	out := make([]chat.Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *anthropicSession) Send(ctx context.Context, input *chat.Message, onDelta DeltaFunc) (*Reply, error) {
	if input != nil {
		s.history = append(s.history, *input)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.gw.cfg.ModelID),
		MaxTokens: s.maxTokens,
		Messages:  convertAnthropicMessages(s.history),
	}
	if s.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: s.system}}
	}
	if tools := s.activeTools(); len(tools) > 0 {
		params.Tools = convertAnthropicTools(tools)
	}
	if s.gw.cfg.Temperature != nil {
		params.Temperature = param.NewOpt(*s.gw.cfg.Temperature)
	}
	if s.gw.cfg.TopP != nil {
		params.TopP = param.NewOpt(*s.gw.cfg.TopP)
	}

	ctx, cancel := context.WithTimeout(ctx, s.gw.cfg.Timeout())
	defer cancel()

	s.gw.logger.Debug("anthropic request",
		"model", s.gw.cfg.ModelID,
		"message_count", len(params.Messages),
		"tool_count", len(params.Tools),
	)

	stream := s.gw.client.Messages.NewStreaming(ctx, params)
	msg := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return nil, fmt.Errorf("accumulate stream event: %w", err)
		}

		if onDelta == nil {
			continue
		}
		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				onDelta(StreamDelta{Kind: DeltaText, Text: deltaVariant.Text})
			case anthropic.ThinkingDelta:
				onDelta(StreamDelta{Kind: DeltaThinking, Text: deltaVariant.Thinking})
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic streaming: %w", err)
	}

	reply := replyFromAnthropicMessage(&msg)
	s.history = append(s.history, chat.Message{
		Role:      chat.RoleModel,
		Text:      reply.Text,
		Thinking:  reply.Thinking,
		ToolCalls: reply.ToolCalls,
	})
	return reply, nil
}

func (s *anthropicSession) activeTools() []ToolDef {
	if s.opts.DisableTools || !s.gw.caps.FunctionCalling {
		return nil
	}
	return s.tools
}

// convertAnthropicMessages converts history to Anthropic message params.
// Consecutive tool results are grouped into a single user message
// because the API requires all results for a tool_use turn to arrive
// together. Thinking content is never replayed; we hold no signatures.
func convertAnthropicMessages(messages []chat.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	pendingToolUse := false

	for i := 0; i < len(messages); i++ {
		msg := &messages[i]
		switch msg.Role {
		case chat.RoleUser:
			if msg.Text != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))
			}
			pendingToolUse = false

		case chat.RoleModel:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
			if msg.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Text))
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Args
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Input: args,
						Name:  tc.Name,
					},
				})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
			pendingToolUse = len(msg.ToolCalls) > 0

		case chat.RoleTool:
			var blocks []anthropic.ContentBlockParamUnion
			j := i
			for j < len(messages) && messages[j].Role == chat.RoleTool {
				blocks = append(blocks, anthropic.NewToolResultBlock(messages[j].ToolCallID, messages[j].Text, false))
				j++
			}
			// Orphaned tool results (no preceding tool_use) are dropped
			// to avoid invalid sequencing errors.
			if pendingToolUse && len(blocks) > 0 {
				out = append(out, anthropic.NewUserMessage(blocks...))
			}
			pendingToolUse = false
			i = j - 1
		}
	}

	return out
}

func convertAnthropicTools(tools []ToolDef) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{
			// Type defaults to "object" when omitted
			Properties: t.Properties,
		}
		if len(t.Required) > 0 {
			schema.Required = t.Required
		}

		tool := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if t.Description != "" {
			tool.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, tool)
	}
	return out
}

func replyFromAnthropicMessage(msg *anthropic.Message) *Reply {
	reply := &Reply{}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			reply.Text += b.Text
		case anthropic.ThinkingBlock:
			reply.Thinking += b.Thinking
		case anthropic.ToolUseBlock:
			var args map[string]any
			if err := json.Unmarshal(b.Input, &args); err != nil {
				args = map[string]any{}
			}
			reply.ToolCalls = append(reply.ToolCalls, chat.ToolCall{
				ID:   b.ID,
				Name: b.Name,
				Args: args,
			})
		}
	}
	return reply
}
