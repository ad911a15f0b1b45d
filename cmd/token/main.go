// Команда token выпускает JWT для web-клиента склада.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/stone-stock/internal/config"
	httpx "github.com/Spok95/stone-stock/internal/infra/http"
)

func main() {
	cfgPath := flag.String("config", "config/example.yaml", "path to config file")
	user := flag.String("user", "", "user UUID (new one if empty)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	id := uuid.New()
	if *user != "" {
		if id, err = uuid.Parse(*user); err != nil {
			fmt.Fprintln(os.Stderr, "invalid user id:", err)
			os.Exit(2)
		}
	}

	tok, err := httpx.NewAuth(cfg.Auth.JWTSecret).Issue(id, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issue:", err)
		os.Exit(1)
	}
	fmt.Printf("user:  %s\ntoken: %s\n", id, tok)
}
