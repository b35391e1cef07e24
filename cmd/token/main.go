// Command token mints a bearer token for calling the balance service.
//
//	JWT_SECRET=... go run ./cmd/token -user alice
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/pkg/logging"
)

func main() {
	userID := flag.String("user", "", "user ID to embed in the token")
	flag.Parse()

	logging.Setup("warn", "text")

	if *userID == "" {
		slog.Error("Missing -user")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenDuration).Generate(*userID)
	if err != nil {
		slog.Error("Failed to generate token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
