// Command server wires the engine's subsystems behind an HTTP API and
// starts listening. Grounded on the teacher's cmd/server/main.go (global
// container built in main(), CORS-wrapped handlers, default-session
// convenience bootstrap), generalized to the full component graph of
// SPEC_FULL.md and routed through internal/api's gin.Engine instead of a
// bare net/http mux.
package main

import (
	"context"
	"fmt"
	"os"

	"llmrpg/internal/api"
	"llmrpg/internal/config"
	"llmrpg/internal/imagepipeline"
	"llmrpg/internal/llmclient"
	"llmrpg/internal/logging"
	"llmrpg/internal/mission"
	"llmrpg/internal/session"
	"llmrpg/internal/store"
	"llmrpg/internal/streamhub"
	"llmrpg/internal/taskmanager"
	"llmrpg/internal/worldgen"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "FATAL: load config:", err)
		os.Exit(1)
	}

	if err := logging.InitProduction(); err != nil {
		fmt.Fprintln(os.Stderr, "FATAL: init logging:", err)
		os.Exit(1)
	}
	defer logging.Sync()

	dataStore, err := store.New(cfg.DataDir)
	if err != nil {
		logging.Error("create data store", zap.Error(err))
		os.Exit(1)
	}

	llm := llmclient.New(cfg.AnthropicAPIKey, cfg.OpenAIAPIKey, cfg.OpenAIImageModel)

	hub := streamhub.NewWithHeartbeat(cfg.StreamHeartbeatInterval)
	fixtures, err := mission.LoadFixtures(cfg.MissionFixturesDir)
	if err != nil {
		logging.Error("load mission fixtures", zap.Error(err))
		os.Exit(1)
	}
	missionEngine := mission.NewWithFixtures(llm, fixtures)
	sessions := session.New(dataStore, llm, hub, missionEngine, session.RuntimeConfig{
		Model:              cfg.AnthropicModel,
		Temperature:        cfg.LLMTemperature,
		MaxTokens:          cfg.LLMMaxTokens,
		Timeout:            cfg.LLMTimeout,
		MaxRetries:         cfg.LLMMaxRetries,
		HistoryCap:         cfg.ConversationHistoryCap,
		MissionCadence:     cfg.MissionCadenceTurns,
		GameHoursPerAction: cfg.GameHoursPerAction,
	})

	images := imagepipeline.New(llm.Image, dataStore, cfg.ImageAssetDir)

	worldGenerator := worldgen.New(llm, llmclient.Options{
		Model: cfg.AnthropicModel, Temperature: 0.7, MaxTokens: cfg.LLMMaxTokens,
		Timeout: cfg.LLMTimeout, MaxRetries: cfg.LLMMaxRetries,
	})

	tasks := taskmanager.New(taskmanager.Config{
		TaskDir:            cfg.TaskStoreDir,
		ObjectDir:          cfg.TaskStoreDir + "/objects",
		StalenessThreshold: cfg.TaskStalenessThreshold,
		FailedRetention:    cfg.TaskFailedRetention,
		CompletedRetention: cfg.TaskCompletedRetention,
		Store:              dataStore,
		Images:             images,
		ExtractText:        extractPlainText,
		GenerateWorld:      worldGenerator.Generate,
	})

	ctx := context.Background()
	if err := tasks.Recover(ctx); err != nil {
		logging.Error("task recovery", zap.Error(err))
	}
	if err := tasks.Start(); err != nil {
		logging.Error("start task sweep", zap.Error(err))
		os.Exit(1)
	}
	defer tasks.Stop()

	server := &api.Server{
		Sessions:      sessions,
		Hub:           hub,
		Tasks:         tasks,
		Images:        images,
		Store:         dataStore,
		ImageAssetDir: cfg.ImageAssetDir,
		AllowedOrigin: cfg.AllowedOrigin,
	}

	logging.Info("starting llmrpg server", zap.String("port", cfg.Port), zap.String("allowedOrigin", cfg.AllowedOrigin))
	if err := server.Router().Run(":" + cfg.Port); err != nil {
		logging.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

// extractPlainText is the document text-extraction step (spec §4.10); the
// extraction library itself is an out-of-scope external collaborator (spec
// §1) and no example repo in the corpus pulls one in, so uploads are
// decoded as plain UTF-8 text — sufficient for .txt/.md source documents.
func extractPlainText(fileBytes []byte, filename string) (string, error) {
	return string(fileBytes), nil
}
