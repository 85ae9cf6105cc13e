package main

import (
	"net/http"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"docuLearn/config"
	"docuLearn/core"
	"docuLearn/server"
	"docuLearn/storage"
)

func main() {
	log := core.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if !cfg.HasValidAPI() {
		log.Warn().Msg("no API key configured, model-backed features will fail")
	}

	for _, dir := range []string{cfg.StorageRoot, cfg.MediaRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("create data dir")
		}
	}

	occ := openai.DefaultConfig(cfg.APIKey)
	occ.BaseURL = cfg.BaseURL
	cli := openai.NewClientWithConfig(occ)

	store := storage.NewStore(cfg, cli, log)
	srv := server.New(cfg, store, cli, log)

	log.Info().Str("addr", cfg.ListenAddr).Msg("docuLearn listening")
	if err := http.ListenAndServe(cfg.ListenAddr, srv.Router()); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
