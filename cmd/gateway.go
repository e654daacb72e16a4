package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternlabs/tern/internal/agent"
	"github.com/ternlabs/tern/internal/bus"
	"github.com/ternlabs/tern/internal/channels"
	"github.com/ternlabs/tern/internal/config"
	"github.com/ternlabs/tern/internal/confighub"
	"github.com/ternlabs/tern/internal/cron"
	"github.com/ternlabs/tern/internal/heartbeat"
	"github.com/ternlabs/tern/internal/providers"
	"github.com/ternlabs/tern/internal/redis"
	"github.com/ternlabs/tern/internal/utils"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the tern gateway (channels + agent + schedulers)",
	RunE:  runGateway,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("Starting tern gateway...")

	if redis.Init(redis.Config{URL: cfg.Redis.URL, Password: cfg.Redis.Password, DB: cfg.Redis.DB}) {
		defer redis.Close()
	}

	msgBus := bus.NewMessageBus()
	provider := makeProvider(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Config hub: fetch once at startup, then listen for push updates.
	hub := wireConfigHub(ctx, cfg, provider)
	if hub != nil && cfg.ConfigHub.WSURL != "" {
		go hub.Listen(ctx, cfg.ConfigHub.WSURL)
	}

	// Cron service and agent loop reference each other; the job callback is
	// attached after the loop exists.
	cronSvc := cron.NewService(filepath.Join(utils.GetDataPath(), "cron.json"), nil)

	loopCfg := makeLoopConfig(cfg)
	loopCfg.CronCallback = &cron.Bridge{Service: cronSvc}
	loop := agent.NewAgentLoop(msgBus, provider, loopCfg)

	cronSvc.OnJob = func(job *cron.Job) (string, error) {
		sessionKey := job.Payload.Channel + ":" + job.Payload.ChatID
		resp, err := loop.ProcessDirect(ctx, job.Payload.Message, sessionKey, job.Payload.Channel, job.Payload.ChatID)
		if err != nil {
			return "", err
		}
		if job.Payload.Deliver && resp != "" {
			msgBus.PublishOutbound(bus.OutboundMessage{
				Channel: job.Payload.Channel,
				ChatID:  job.Payload.ChatID,
				Content: resp,
			})
		}
		return resp, nil
	}
	cronSvc.Start()

	var beat *heartbeat.Service
	if cfg.Heartbeat.Enabled {
		beat = heartbeat.NewService(loopCfg.Workspace, time.Duration(cfg.Heartbeat.Interval)*time.Second,
			func(prompt string) (string, error) {
				return loop.ProcessDirect(ctx, prompt, "system:heartbeat", "system", "heartbeat")
			})
		beat.Start()
	}

	// Channels
	chMgr := channels.NewManager(msgBus)
	if cli := cfg.Channels.CLI; cli != nil && cli.Enabled {
		ch := channels.NewCLIChannel(msgBus)
		ch.AllowFrom = cli.AllowFrom
		chMgr.Register(ch)
	}

	if enabled := chMgr.EnabledChannels(); len(enabled) > 0 {
		fmt.Printf("Channels enabled: %v\n", enabled)
	} else {
		fmt.Println("No channels enabled")
		// Still drain outbound so message-tool sends don't pile up.
		go msgBus.DispatchOutbound(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		chMgr.StopAll()
		cronSvc.Stop()
		if beat != nil {
			beat.Stop()
		}
		loop.Stop()
		msgBus.Stop()
		cancel()
	}()

	errCh := make(chan error, 2)
	go func() {
		if err := loop.Run(ctx); err != nil && err != context.Canceled {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	go func() { errCh <- chMgr.StartAll(ctx) }()

	return <-errCh
}

// wireConfigHub connects the dynamic provider to the config hub, so pushed
// credentials swap the backend without a restart. Returns nil when no hub is
// configured.
func wireConfigHub(ctx context.Context, cfg config.Config, provider *providers.DynamicProvider) *confighub.ConfigHub {
	if cfg.ConfigHub.URL == "" && cfg.ConfigHub.WSURL == "" {
		return nil
	}

	hostname, _ := os.Hostname()
	hub := confighub.New(
		confighub.LLMConfig{
			Model:    cfg.Agent.Model,
			APIKey:   cfg.Providers.APIKey,
			APIBase:  cfg.Providers.APIBase,
			Provider: cfg.Providers.Provider,
		},
		confighub.WithHubURL(cfg.ConfigHub.URL),
		confighub.WithAPIKey(cfg.ConfigHub.APIKey),
		confighub.WithInstanceID(hostname),
	)
	hub.OnChange(func(c *confighub.LLMConfig) {
		provider.Swap(providers.NewProvider(c.APIKey, c.APIBase, c.Model, c.Provider))
	})
	if err := hub.Fetch(ctx); err != nil {
		log.Printf("[Gateway] config hub fetch: %v", err)
	}
	return hub
}
