package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternlabs/tern/internal/agent"
	"github.com/ternlabs/tern/internal/bus"
	"github.com/ternlabs/tern/internal/config"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Interact with the agent directly",
	RunE:  runAgent,
}

var (
	agentMessage   string
	agentSessionID string
	agentProfile   string
	agentNoStream  bool
)

func init() {
	agentCmd.Flags().StringVarP(&agentMessage, "message", "m", "", "Message to send to the agent")
	agentCmd.Flags().StringVarP(&agentSessionID, "session", "s", "cli:direct", "Session ID")
	agentCmd.Flags().StringVar(&agentProfile, "profile", "", "Agent profile from agents.yaml")
	agentCmd.Flags().BoolVar(&agentNoStream, "no-stream", false, "Print the full response instead of streaming")
	rootCmd.AddCommand(agentCmd)
}

// renderSink prints live turn events to the terminal.
func renderSink() bus.EventSink {
	return func(ev bus.AgentEvent) {
		switch e := ev.(type) {
		case bus.AssistantDelta:
			fmt.Print(e.Text)
		case bus.ToolCallStarted:
			fmt.Printf("\n[%s] %s\n", e.Name, e.ArgsPreview)
		case bus.ToolCallFinished:
			if e.IsError {
				fmt.Printf("[%s] %s\n", e.Name, e.Result)
			}
		case bus.FinalResponse:
			fmt.Println()
		case bus.ErrorEvent:
			fmt.Println(e.Message)
		}
	}
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	msgBus := bus.NewMessageBus()
	provider := makeProvider(cfg)
	loopCfg := makeLoopConfig(cfg)

	persona := ""
	if agentProfile != "" {
		persona, err = applyProfile(cfg, &loopCfg, agentProfile)
		if err != nil {
			return fmt.Errorf("loading profile: %w", err)
		}
	}

	loop := agent.NewAgentLoop(msgBus, provider, loopCfg)
	defer loop.Stop()
	if persona != "" {
		loop.Context.ExtraPrompt = persona
	}

	sink := renderSink()
	if agentNoStream {
		sink = nil
	}

	if agentMessage != "" {
		// Single message mode
		resp, err := loop.ProcessDirectStream(context.Background(), agentMessage, agentSessionID, "cli", "direct", sink)
		if err != nil {
			return err
		}
		if agentNoStream {
			fmt.Println(resp)
		}
		return nil
	}

	// Interactive REPL mode
	fmt.Println("tern interactive mode (type 'exit' or Ctrl+C to quit)")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nGoodbye!")
		cancel()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	exitCommands := map[string]bool{
		"exit": true, "quit": true, "/exit": true, "/quit": true, ":q": true,
	}

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if exitCommands[strings.ToLower(input)] {
			fmt.Println("Goodbye!")
			break
		}

		fmt.Println()
		fmt.Println("tern:")
		resp, err := loop.ProcessDirectStream(ctx, input, agentSessionID, "cli", "direct", sink)
		if err != nil {
			log.Printf("Error: %v", err)
			continue
		}
		if agentNoStream {
			fmt.Println(resp)
		}
		fmt.Println()
	}

	return nil
}
