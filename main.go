package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"multichat/app/api"
	"multichat/app/client/completion"
	"multichat/app/config"
	"multichat/app/service/broadcast"
	"multichat/app/service/conversation"
	"multichat/app/service/engine"
	"multichat/app/service/mcptools"
	"multichat/app/service/memory"
	"multichat/app/service/queue"
	"multichat/app/service/room"
	"multichat/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, completion.New)
	do.Provide(di, broadcast.New)
	do.Provide(di, memory.New)
	do.Provide(di, room.New)
	do.Provide(di, conversation.New)
	do.Provide(di, queue.New)
	do.Provide(di, engine.New)
	do.Provide(di, mcptools.New)
	do.Provide(di, api.New)

	server := do.MustInvoke[*api.Server](di)

	slog.Info("Service started",
		"provider", cfg.Completion.Provider,
		"telegram", true,
	)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	if err = server.Run(appCtx); err != nil {
		slog.Error("Server failed",
			"error", err,
		)
	}
}
