package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ternlabs/tern/internal/bus"
	"github.com/ternlabs/tern/internal/providers"
	"github.com/ternlabs/tern/internal/tools"
)

// SubagentManager manages background subagent execution. Each subagent runs
// its own bounded tool loop with a restricted tool set and announces its
// result back through the bus as a system message.
type SubagentManager struct {
	Provider    providers.LLMProvider
	Workspace   string
	Bus         *bus.MessageBus
	Model       string
	MaxTokens   int
	Temperature float64

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewSubagentManager creates a SubagentManager.
func NewSubagentManager(provider providers.LLMProvider, workspace string, msgBus *bus.MessageBus, model string) *SubagentManager {
	return &SubagentManager{
		Provider:    provider,
		Workspace:   workspace,
		Bus:         msgBus,
		Model:       model,
		MaxTokens:   4096,
		Temperature: 0.7,
		running:     make(map[string]context.CancelFunc),
	}
}

// Spawn starts a subagent in the background and returns an announcement.
func (sm *SubagentManager) Spawn(ctx context.Context, task, label, originChannel, originChatID string) string {
	taskID := "sub-" + uuid.NewString()[:8]
	if label == "" {
		if len(task) > 30 {
			label = task[:30] + "..."
		} else {
			label = task
		}
	}

	subCtx, cancel := context.WithCancel(ctx)
	sm.mu.Lock()
	sm.running[taskID] = cancel
	sm.mu.Unlock()

	go func() {
		defer func() {
			sm.mu.Lock()
			delete(sm.running, taskID)
			sm.mu.Unlock()
			cancel()
		}()
		sm.runSubagent(subCtx, taskID, task, label, originChannel, originChatID)
	}()

	return fmt.Sprintf("Subagent [%s] started (id: %s). I'll notify you when it completes.", label, taskID)
}

func (sm *SubagentManager) runSubagent(ctx context.Context, taskID, task, label, channel, chatID string) {
	// Restricted tool set: no message/spawn/cron, no shell.
	registry := tools.NewRegistry()
	registry.Register(&tools.ReadFileTool{})
	registry.Register(&tools.WriteFileTool{})
	registry.Register(&tools.ListDirTool{})
	registry.Register(&tools.WebFetchTool{})

	messages := []map[string]any{
		{"role": "system", "content": sm.buildSubagentPrompt()},
		{"role": "user", "content": task},
	}

	maxIter := 15
	var finalResult string

	for i := 0; i < maxIter; i++ {
		resp, err := sm.Provider.Chat(ctx, providers.ChatRequest{
			Messages:    messages,
			Tools:       registry.Schemas(),
			Model:       sm.Model,
			MaxTokens:   sm.MaxTokens,
			Temperature: sm.Temperature,
		})
		if err != nil {
			finalResult = fmt.Sprintf("Error: %v", err)
			break
		}

		if !resp.HasToolCalls() {
			if resp.Content != nil {
				finalResult = *resp.Content
			} else {
				finalResult = "Task completed."
			}
			break
		}

		messages = appendAssistantWithCalls(messages, resp)
		for _, tc := range resp.ToolCalls {
			result, _ := registry.Execute(ctx, tc.Name, tc.Arguments)
			messages = append(messages, map[string]any{
				"role":         "tool",
				"tool_call_id": tc.ID,
				"name":         tc.Name,
				"content":      result,
			})
		}
	}

	if finalResult == "" {
		finalResult = "Task completed but no response was generated."
	}

	// Announce result back via bus
	if sm.Bus != nil {
		sm.Bus.PublishInbound(bus.InboundMessage{
			Channel:  "system",
			SenderID: "subagent",
			ChatID:   channel + ":" + chatID,
			Content:  fmt.Sprintf("[Subagent '%s' completed]\n\nTask: %s\n\nResult:\n%s", label, task, finalResult),
		})
	}
}

func (sm *SubagentManager) buildSubagentPrompt() string {
	return fmt.Sprintf(`# Subagent

You are a subagent spawned by the main agent to complete a specific task.

## Rules
1. Stay focused - complete only the assigned task
2. Your final response will be reported back to the main agent
3. Be concise but informative

## What You Can Do
- Read and write files in the workspace
- Fetch web pages

## Workspace
%s`, sm.Workspace)
}

// RunningCount returns the number of active subagents.
func (sm *SubagentManager) RunningCount() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.running)
}
