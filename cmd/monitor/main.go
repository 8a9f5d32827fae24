// Package main is the CLI entrypoint for the monitor process: it parses
// flags, loads configuration, sets up logging, and wires signal-based
// graceful shutdown around the monitor app's tick scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goerrors "github.com/go-faster/errors"

	"telegram-userbot/internal/app/monitorapp"
	"telegram-userbot/internal/infra/config"
	"telegram-userbot/internal/infra/console"
	"telegram-userbot/internal/infra/logger"
	"telegram-userbot/internal/infra/pr"
	"telegram-userbot/internal/infra/timeutil"
)

// Exit codes per the external CLI contract: 0 success, 1 configuration
// error, 2 network-only failure, 130 interrupted.
const (
	exitOK            = 0
	exitConfigError   = 1
	exitNetworkFailed = 2
	exitInterrupted   = 130
)

const defaultIntervalSeconds = 21600

const version = "crazyones-monitor/0.1.0"

func main() {
	log.SetFlags(0)
	log.SetPrefix(time.Now().Format("2006-01-02 15:04:05 "))

	if err := pr.Init(); err != nil {
		log.Fatalf("failed to assign stdout/stderr: %v", err)
	}

	var (
		token     = flag.String("token", "", "Telegram bot token (overrides config.json)")
		url       = flag.String("url", "", "Apple security-updates index URL (overrides config.json)")
		daemon    = flag.Bool("daemon", false, "run without the interactive console")
		intervalS = flag.Int("interval", defaultIntervalSeconds, "poll interval in seconds")
		showLog   = flag.Bool("log", false, "print the last 100 log lines and exit")
		showVer   = flag.Bool("version", false, "print the version and exit")
		envPath   = flag.String("env", ".env", "path to .env file")
	)
	flag.Parse()

	if *showVer {
		fmt.Println(version)
		os.Exit(exitOK)
	}

	if err := config.LoadEnv(*envPath); err != nil {
		log.Fatalf("failed to load env: %v", err)
	}
	env := config.Env()

	logger.Init(env.LogLevel)
	logger.SetWriters(pr.Stdout(), pr.Stderr())
	logger.SetFileOutput(env.LogFile)
	for _, msg := range config.Warnings() {
		logger.Warn(msg)
	}

	if *showLog {
		lines, err := timeutil.TailLines(env.LogFile, 100)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read log file: %v\n", err)
			os.Exit(exitConfigError)
		}
		for _, line := range lines {
			fmt.Println(line)
		}
		os.Exit(exitOK)
	}

	cfg, err := config.LoadAppConfig(env.ConfigFile)
	if err != nil {
		logger.Errorf("configuration error: %v", err)
		os.Exit(exitConfigError)
	}
	if *token != "" {
		cfg.TelegramBotToken = *token
	}
	if *url != "" {
		cfg.AppleUpdatesURL = *url
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := monitorapp.Options{
		DataDir:     env.DataDir,
		IndexURL:    cfg.AppleUpdatesURL,
		Period:      time.Duration(*intervalS) * time.Second,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		Interactive: !*daemon && console.IsInteractive(),
	}

	a := monitorapp.New(opts)

	if runErr := a.Run(ctx); runErr != nil {
		wrapped := goerrors.Wrap(runErr, "monitor run")
		if ctx.Err() != nil {
			logger.Infof("interrupted: %v", wrapped)
			os.Exit(exitInterrupted)
		}
		logger.Errorf("monitor exited with error: %v", wrapped)
		os.Exit(exitNetworkFailed)
	}

	logger.Info("graceful shutdown complete")
}
