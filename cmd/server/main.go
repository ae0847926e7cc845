package main

import (
	"log/slog"
	"os"

	"perfeval/internal/app/server"
)

func main() {
	if err := server.Run(); err != nil {
		slog.Error("evaluation server stopped", "err", err)
		os.Exit(1)
	}
}
