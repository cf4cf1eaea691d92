package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/Chase-Garrett/towhee/internal/config"
	"github.com/Chase-Garrett/towhee/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("configuration error")
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
