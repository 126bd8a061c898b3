package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AaronLay10/NarrativeEngine/internal/api"
	"github.com/AaronLay10/NarrativeEngine/internal/config"
	"github.com/AaronLay10/NarrativeEngine/internal/events"
	"github.com/AaronLay10/NarrativeEngine/internal/logger"
	"github.com/AaronLay10/NarrativeEngine/internal/mqtt"
	"github.com/AaronLay10/NarrativeEngine/internal/narrative"
	"github.com/AaronLay10/NarrativeEngine/internal/orchestrator"
	"github.com/AaronLay10/NarrativeEngine/internal/storage"
	"github.com/AaronLay10/NarrativeEngine/internal/version"

	_ "github.com/AaronLay10/NarrativeEngine/internal/storage/postgres"
	_ "github.com/AaronLay10/NarrativeEngine/internal/storage/redis"
	_ "github.com/AaronLay10/NarrativeEngine/internal/storage/sqlite"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:           version.Name,
		Short:         "Serve a story over HTTP, WebSocket and MQTT",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEngineConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", configPath, err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	defaultPath := os.Getenv(config.EnvPrefix + "_CONFIG")
	if defaultPath == "" {
		defaultPath = "engine.yaml"
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultPath, "engine config file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.EngineConfig) error {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()
	events.SetLogger(log)

	story, err := orchestrator.LoadStory(cfg.Story.Path)
	if err != nil {
		return err
	}
	if cfg.Story.Catalog != "" {
		if err := story.AddCatalog(cfg.Story.Catalog); err != nil {
			return err
		}
	}
	if err := story.Graph.Validate(); err != nil {
		log.Warn("story graph has problems", zap.Error(err))
	}
	events.Emit("info", "story.loaded", "", map[string]interface{}{
		"story_id": story.ID,
		"nodes":    story.Graph.Len(),
	})

	rt := orchestrator.NewRuntime(story, orchestrator.WithLogger(log), orchestrator.WithSessionID(cfg.Engine.ID))

	saves, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer saves.Close()
	if sink, ok := saves.(events.Sink); ok && cfg.Storage.Journal {
		events.SetSink(sink, story.ID)
		defer events.SetSink(nil, "")
	}

	metrics := api.NewMetrics(story.ID)
	events.Observe(metrics.Observe)
	alerter := api.NewAlerter(cfg.Server.AlertWebhook, story.ID, log)
	events.Observe(alerter.Observe)
	defer alerter.Wait()

	auth, err := api.LoadAuth()
	if err != nil {
		return err
	}
	if !auth.Enabled() {
		log.Warn("authentication disabled: set NARRATIVE_ADMIN_USER and NARRATIVE_ADMIN_PASS to enable")
	}

	opts := []api.Option{
		api.WithSaveStore(saves),
		api.WithAuth(auth),
		api.WithMetrics(metrics),
		api.WithLogger(log),
	}
	if cfg.MQTT.Enabled {
		opts = append(opts, api.WithMQTTRequired())
	}
	server := api.New(rt, opts...)
	server.SetStorageConnected(true)

	if cfg.MQTT.Enabled {
		client := startMQTT(ctx, cfg.MQTT, rt, server, alerter, log)
		defer client.Disconnect()
	}

	if cfg.Story.Entry != "" {
		if err := rt.Start(narrative.NodeRef(cfg.Story.Entry)); err != nil {
			return err
		}
	}

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "narrative engine starting", map[string]interface{}{
		"version":  version.Version,
		"hostname": hostname,
		"pid":      os.Getpid(),
		"listen":   cfg.Server.ListenAddr,
		"storage":  cfg.Storage.Driver,
	})
	err = server.ListenAndServe(ctx, cfg.Server)
	events.Emit("info", "system.shutdown", "", nil)
	return err
}

func startMQTT(ctx context.Context, cfg config.MQTTConfig, rt *orchestrator.Runtime, server *api.Server, alerter *api.Alerter, log *zap.Logger) *mqtt.Client {
	topics := mqtt.TopicsFor(cfg.TopicPrefix)

	var commands *mqtt.CommandSubscriber
	client := mqtt.NewClient(cfg, log,
		server.SetMQTTConnected,
		alerter.CheckMQTT,
		func(connected bool) {
			if !connected || commands == nil {
				return
			}
			// clean sessions drop subscriptions on reconnect
			if err := commands.Subscribe(); err != nil {
				log.Warn("resubscribe failed", zap.Error(err))
			}
		},
	)
	commands = mqtt.NewCommandSubscriber(client, topics.Commands, rt, log)

	if err := client.Connect(); err != nil {
		// paho keeps retrying in the background
		log.Warn("mqtt broker unreachable", zap.String("broker", cfg.Broker), zap.Error(err))
	}

	go mqtt.NewBridge(client, topics.Events, log).Run(ctx)
	go watchMQTT(ctx, client, alerter)
	return client
}

// watchMQTT re-checks the broker so a long outage raises an alert even
// when no connection callback fires.
func watchMQTT(ctx context.Context, client *mqtt.Client, alerter *api.Alerter) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			alerter.CheckMQTT(client.IsConnected())
		}
	}
}
