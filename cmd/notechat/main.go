package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/iamvkosarev/notechat/config"
	"github.com/iamvkosarev/notechat/internal/app"
	"github.com/iamvkosarev/notechat/internal/usecase"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	var cfgPath, vaultPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional)")
	flag.StringVar(&vaultPath, "vault", "", "Vault directory (overrides config and NOTECHAT_VAULT)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return 1
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Printf("failed to load config: %v\n", err)
		return 1
	}
	if vaultPath != "" {
		cfg.Vault.Path = vaultPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Printf("failed to start: %v\n", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("failed to close app: %v\n", err)
		}
	}()

	if err = dispatch(ctx, a, flag.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			return 1
		}
		fmt.Fprintln(os.Stderr, usecase.Notice(err, a.Settings.Settings().Language))
		return 1
	}
	return 0
}
