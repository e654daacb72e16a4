package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ternlabs/tern/internal/bus"
	"github.com/ternlabs/tern/internal/contextguard"
	"github.com/ternlabs/tern/internal/lane"
	"github.com/ternlabs/tern/internal/providers"
	"github.com/ternlabs/tern/internal/session"
	"github.com/ternlabs/tern/internal/tools"
)

// AgentLoop is the core turn engine. It claims inbound messages, builds
// context, streams the model, executes tools, and publishes responses.
// Turns for the same session are serialized through the lane manager;
// different sessions run concurrently.
type AgentLoop struct {
	Bus           *bus.MessageBus
	Provider      providers.LLMProvider
	Workspace     string
	Model         string
	MaxIterations int
	Temperature   float64
	MaxTokens     int
	MemoryWindow  int
	AlwaysSkills  []string

	Context   *ContextBuilder
	Sessions  *session.Manager
	Tools     *tools.Registry
	Guard     *contextguard.Guard
	Subagents *SubagentManager
	Lanes     *lane.Manager
}

// Config holds configuration for creating an AgentLoop.
type Config struct {
	Workspace     string
	Model         string
	MaxIterations int
	Temperature   float64
	MaxTokens     int
	MemoryWindow  int
	AlwaysSkills  []string
	BraveAPIKey   string
	LaneMode      lane.Mode
	CollectWindow time.Duration

	RestrictToWorkspace bool
	ExecTimeout         time.Duration
	CronCallback        tools.CronCallback
}

// NewAgentLoop creates and wires an agent loop, including the default tool
// set and the per-session lane manager.
func NewAgentLoop(msgBus *bus.MessageBus, provider providers.LLMProvider, cfg Config) *AgentLoop {
	model := cfg.Model
	if model == "" {
		model = provider.DefaultModel()
	}
	maxIter := cfg.MaxIterations
	if maxIter == 0 {
		maxIter = 20
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	memWin := cfg.MemoryWindow
	if memWin == 0 {
		memWin = 50
	}

	a := &AgentLoop{
		Bus:           msgBus,
		Provider:      provider,
		Workspace:     cfg.Workspace,
		Model:         model,
		MaxIterations: maxIter,
		Temperature:   cfg.Temperature,
		MaxTokens:     maxTokens,
		MemoryWindow:  memWin,
		AlwaysSkills:  cfg.AlwaysSkills,
		Context:       NewContextBuilder(cfg.Workspace),
		Sessions:      session.NewManager(cfg.Workspace),
		Tools:         tools.NewRegistry(),
		Guard:         contextguard.NewGuard(contextguard.DefaultConfig()),
		Subagents:     NewSubagentManager(provider, cfg.Workspace, msgBus, model),
	}

	a.registerDefaultTools(cfg)

	a.Lanes = lane.NewManager(lane.ManagerConfig{
		Handler:       a.handleLaneRequest,
		DefaultMode:   cfg.LaneMode,
		CollectWindow: cfg.CollectWindow,
	})
	return a
}

func (a *AgentLoop) registerDefaultTools(cfg Config) {
	allowedDir := ""
	if cfg.RestrictToWorkspace {
		allowedDir = cfg.Workspace
	}
	a.Tools.Register(&tools.ReadFileTool{AllowedDir: allowedDir})
	a.Tools.Register(&tools.WriteFileTool{AllowedDir: allowedDir})
	a.Tools.Register(&tools.EditFileTool{AllowedDir: allowedDir})
	a.Tools.Register(&tools.ListDirTool{AllowedDir: allowedDir})

	execTool := tools.NewExecTool()
	execTool.WorkingDir = cfg.Workspace
	execTool.RestrictToWorkspace = cfg.RestrictToWorkspace
	if cfg.ExecTimeout > 0 {
		execTool.Timeout = cfg.ExecTimeout
	}
	a.Tools.Register(execTool)

	a.Tools.Register(&tools.WebSearchTool{APIKey: cfg.BraveAPIKey})
	a.Tools.Register(&tools.WebFetchTool{})

	a.Tools.Register(&tools.MessageTool{SendCallback: func(msg bus.OutboundMessage) error {
		return a.Bus.PublishOutbound(msg)
	}})
	a.Tools.Register(&tools.SpawnTool{SpawnCallback: func(task, label, channel, chatID string) (string, error) {
		return a.Subagents.Spawn(context.Background(), task, label, channel, chatID), nil
	}})
	if cfg.CronCallback != nil {
		a.Tools.Register(&tools.CronTool{Cron: cfg.CronCallback})
	}
}

// Run claims the inbound queue and processes messages until ctx is done.
// Only one Run may be active per bus.
func (a *AgentLoop) Run(ctx context.Context) error {
	inbound, err := a.Bus.ClaimInbound()
	if err != nil {
		return fmt.Errorf("claim inbound: %w", err)
	}
	log.Println("[Agent] loop started")

	for {
		select {
		case <-ctx.Done():
			log.Println("[Agent] loop stopping")
			return ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			go a.submitToLane(ctx, msg)
		}
	}
}

// submitToLane routes one inbound message through its session lane.
func (a *AgentLoop) submitToLane(ctx context.Context, msg bus.InboundMessage) {
	_, err := a.Lanes.Submit(ctx, lane.Request{
		Content:    msg.Content,
		SessionKey: msg.SessionKey(),
		Channel:    msg.Channel,
		ChatID:     msg.ChatID,
		SenderID:   msg.SenderID,
		Metadata:   msg.Metadata,
		Timestamp:  msg.Timestamp,
	}, "")
	if err != nil {
		log.Printf("[Agent] lane submit failed for %s: %v", msg.SessionKey(), err)
	}
}

// handleLaneRequest runs one serialized turn and publishes the response.
func (a *AgentLoop) handleLaneRequest(ctx context.Context, req lane.Request) lane.Result {
	msg := bus.InboundMessage{
		Channel:   req.Channel,
		ChatID:    req.ChatID,
		SenderID:  req.SenderID,
		Content:   req.Content,
		Metadata:  req.Metadata,
		Timestamp: req.Timestamp,
	}

	out, err := a.ProcessInbound(ctx, msg, nil)
	if err != nil {
		log.Printf("[Agent] turn failed for %s: %v", msg.SessionKey(), err)
		return lane.Result{Error: err.Error()}
	}
	if out != nil {
		if err := a.Bus.PublishOutbound(*out); err != nil {
			log.Printf("[Agent] publish outbound failed: %v", err)
		}
		return lane.Result{Content: out.Content}
	}
	return lane.Result{}
}

// ProcessInbound runs one full agent turn for an inbound message.
//
// Event contract: sink (nil allowed) receives interim events during the
// turn and exactly one terminal event at the end. On success the returned
// OutboundMessage matches the FinalResponse content; on failure the return
// is (nil, error) and the terminal event is an ErrorEvent.
func (a *AgentLoop) ProcessInbound(ctx context.Context, msg bus.InboundMessage, sink bus.EventSink) (*bus.OutboundMessage, error) {
	emit := func(e bus.AgentEvent) {
		if sink != nil {
			sink(e)
		}
	}

	a.setToolContext(msg.Channel, msg.ChatID)

	sess := a.Sessions.GetOrCreate(msg.SessionKey())
	hist := sess.GetHistory(a.MemoryWindow)
	histAny := make([]map[string]any, len(hist))
	for i, h := range hist {
		histAny[i] = map[string]any{"role": h["role"], "content": h["content"]}
	}
	messages := a.Context.BuildMessages(histAny, msg.Content, msg.Channel, msg.ChatID, a.AlwaysSkills)

	var reasoning strings.Builder

	for iteration := 1; iteration <= a.MaxIterations; iteration++ {
		emit(bus.IterationStarted{Index: iteration, MaxIterations: a.MaxIterations})

		messages = a.guardMessages(messages, sess)

		resp, err := a.streamModel(ctx, messages, emit)
		if err != nil {
			emit(bus.ErrorEvent{Message: fmt.Sprintf("Error: %v", err)})
			return nil, err
		}
		if resp.ReasoningContent != nil {
			reasoning.WriteString(*resp.ReasoningContent)
		}

		if !resp.HasToolCalls() {
			content := ""
			if resp.Content != nil {
				content = *resp.Content
			}
			if content == "" {
				content = "Completed processing."
			}
			emit(bus.FinalResponse{Content: content})

			sess.AddMessage("user", msg.Content)
			sess.AddMessage("assistant", content)
			if err := a.Sessions.Save(sess); err != nil {
				log.Printf("[Agent] session save failed for %s: %v", sess.Key, err)
			}
			a.recordTurn(msg, content)

			return &bus.OutboundMessage{
				Channel:   msg.Channel,
				ChatID:    msg.ChatID,
				Content:   content,
				Reasoning: reasoning.String(),
			}, nil
		}

		messages = appendAssistantWithCalls(messages, resp)

		results := a.executeToolCalls(ctx, resp.ToolCalls, emit)
		for i, tc := range resp.ToolCalls {
			messages = a.Context.AddToolResult(messages, tc.ID, tc.Name, results[i])
		}

		if ctx.Err() != nil {
			emit(bus.ErrorEvent{Message: "Error: turn cancelled"})
			return nil, ctx.Err()
		}
	}

	emit(bus.ErrorEvent{Message: fmt.Sprintf("Error: max iterations (%d) reached", a.MaxIterations)})
	return nil, fmt.Errorf("max iterations (%d) reached", a.MaxIterations)
}

// guardMessages applies the context guard: trims history when the prompt
// approaches the model window, resets the session past the critical mark.
func (a *AgentLoop) guardMessages(messages []map[string]any, sess *session.Session) []map[string]any {
	check := a.Guard.PreCheck(messages, a.Model)
	switch check.Action {
	case contextguard.ActionTrim:
		return a.Guard.TrimHistory(messages, a.Model, 4)
	case contextguard.ActionReset:
		sess.Clear()
		if err := a.Sessions.Save(sess); err != nil {
			log.Printf("[Agent] session reset save failed: %v", err)
		}
		// Keep only the system prompt and the newest user message.
		kept := []map[string]any{messages[0]}
		if len(messages) > 1 {
			kept = append(kept, messages[len(messages)-1])
		}
		return kept
	default:
		return messages
	}
}

// streamModel runs one streaming model call, forwarding deltas to emit and
// returning the assembled response. Transport and backend failures come
// back as errors.
func (a *AgentLoop) streamModel(ctx context.Context, messages []map[string]any, emit func(bus.AgentEvent)) (*providers.LLMResponse, error) {
	events, err := a.Provider.ChatStream(ctx, providers.ChatRequest{
		Messages:    messages,
		Tools:       a.Tools.Schemas(),
		Model:       a.Model,
		MaxTokens:   a.MaxTokens,
		Temperature: a.Temperature,
	})
	if err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil, fmt.Errorf("model stream ended without completion")
			}
			switch e := ev.(type) {
			case providers.StreamTextDelta:
				emit(bus.AssistantDelta{Text: e.Text})
			case providers.StreamReasoningDelta:
				emit(bus.ReasoningDelta{Text: e.Text})
			case providers.StreamToolCallDelta:
				emit(bus.ToolCallDelta{Name: e.Name, ArgsDelta: e.ArgsDelta})
			case providers.StreamCompleted:
				return e.Response, nil
			case providers.StreamError:
				return nil, e.Err
			}
		}
	}
}

// executeToolCalls runs all calls of one iteration concurrently and returns
// their observation texts in the original call order. Every emitted
// ToolCallStarted is paired with a ToolCallFinished; calls still running
// when ctx is cancelled get a synthetic error result.
func (a *AgentLoop) executeToolCalls(ctx context.Context, calls []providers.ToolCallRequest, emit func(bus.AgentEvent)) []string {
	type outcome struct {
		index  int
		result string
	}

	results := make([]string, len(calls))
	done := make(chan outcome, len(calls))

	// Each Started gets exactly one Finished, even when cancellation makes
	// the collector emit a synthetic one before the tool returns.
	var emitMu sync.Mutex
	emitted := make([]bool, len(calls))
	finishOnce := func(index int, ev bus.ToolCallFinished) {
		emitMu.Lock()
		defer emitMu.Unlock()
		if emitted[index] {
			return
		}
		emitted[index] = true
		emit(ev)
	}

	for i, tc := range calls {
		emit(bus.ToolCallStarted{
			Name:        tc.Name,
			CallID:      tc.ID,
			ArgsPreview: previewArgs(tc.Arguments),
		})
		go func(index int, call providers.ToolCallRequest) {
			text, isErr := a.Tools.Execute(ctx, call.Name, call.Arguments)
			finishOnce(index, bus.ToolCallFinished{
				Name:    call.Name,
				CallID:  call.ID,
				Result:  text,
				IsError: isErr,
			})
			done <- outcome{index: index, result: text}
		}(i, tc)
	}

	collected := make([]bool, len(calls))
	pending := len(calls)
	for pending > 0 {
		select {
		case o := <-done:
			results[o.index] = o.result
			collected[o.index] = true
			pending--
		case <-ctx.Done():
			// Don't wait on stuck tools; pair remaining Starteds now.
			for i, tc := range calls {
				if !collected[i] {
					results[i] = "Error: cancelled before completion"
					finishOnce(i, bus.ToolCallFinished{
						Name:    tc.Name,
						CallID:  tc.ID,
						Result:  results[i],
						IsError: true,
					})
				}
			}
			return results
		}
	}
	return results
}

// recordTurn leaves a one-line trace of the completed turn in HISTORY.md so
// past conversations stay grep-searchable across sessions.
func (a *AgentLoop) recordTurn(msg bus.InboundMessage, response string) {
	entry := fmt.Sprintf("[%s] %s | %s -> %s",
		time.Now().Format("2006-01-02 15:04"), msg.SessionKey(),
		firstLine(msg.Content, 120), firstLine(response, 200))
	if err := a.Context.Memory.AppendHistory(entry); err != nil {
		log.Printf("[Agent] history append failed: %v", err)
	}
}

// setToolContext points context-sensitive tools at the current conversation.
func (a *AgentLoop) setToolContext(channel, chatID string) {
	if t, ok := a.Tools.Get("message").(*tools.MessageTool); ok && t != nil {
		t.SetContext(channel, chatID)
	}
	if t, ok := a.Tools.Get("spawn").(*tools.SpawnTool); ok && t != nil {
		t.SetContext(channel, chatID)
	}
	if t, ok := a.Tools.Get("cron").(*tools.CronTool); ok && t != nil {
		t.SetContext(channel, chatID)
	}
}

// ProcessDirect processes a message synchronously (CLI/cron usage).
func (a *AgentLoop) ProcessDirect(ctx context.Context, content, sessionKey, channel, chatID string) (string, error) {
	return a.ProcessDirectStream(ctx, content, sessionKey, channel, chatID, nil)
}

// ProcessDirectStream is ProcessDirect with live event delivery.
func (a *AgentLoop) ProcessDirectStream(ctx context.Context, content, sessionKey, channel, chatID string, sink bus.EventSink) (string, error) {
	if channel == "" {
		channel = "cli"
	}
	if chatID == "" {
		chatID = "direct"
	}
	msg := bus.NewInboundMessage(channel, "user", chatID, content)
	if sessionKey != "" && sessionKey != msg.SessionKey() {
		// Explicit session override (cron jobs reuse their owning session).
		ch, id, err := parseOverrideKey(sessionKey)
		if err != nil {
			log.Printf("[Agent] invalid session key %q, falling back to %s: %v", sessionKey, msg.SessionKey(), err)
		} else {
			msg.Channel, msg.ChatID = ch, id
		}
	}

	out, err := a.ProcessInbound(ctx, msg, sink)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// Stop shuts down the lane manager.
func (a *AgentLoop) Stop() {
	a.Lanes.Stop()
	log.Println("[Agent] loop stopped")
}

func firstLine(s string, max int) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

func parseOverrideKey(key string) (channel, chatID string, err error) {
	idx := strings.Index(key, ":")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", fmt.Errorf("invalid session key: %s", key)
	}
	return key[:idx], key[idx+1:], nil
}

// previewArgs renders a short single-line preview of tool arguments.
func previewArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	s := string(data)
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}

// appendAssistantWithCalls appends the assistant message carrying tool calls
// in OpenAI wire shape so the next request round-trips them.
func appendAssistantWithCalls(messages []map[string]any, resp *providers.LLMResponse) []map[string]any {
	var toolCallDicts []map[string]any
	for _, tc := range resp.ToolCalls {
		argsJSON, _ := json.Marshal(tc.Arguments)
		toolCallDicts = append(toolCallDicts, map[string]any{
			"id":   tc.ID,
			"type": "function",
			"function": map[string]any{
				"name":      tc.Name,
				"arguments": string(argsJSON),
			},
		})
	}

	content := ""
	if resp.Content != nil {
		content = *resp.Content
	}
	msg := map[string]any{"role": "assistant", "content": content}
	if len(toolCallDicts) > 0 {
		msg["tool_calls"] = toolCallDicts
	}
	if resp.ReasoningContent != nil && *resp.ReasoningContent != "" {
		msg["reasoning_content"] = *resp.ReasoningContent
	}
	return append(messages, msg)
}
