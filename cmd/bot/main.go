// Package main is the CLI entrypoint for the bot process: it parses
// flags, loads configuration, sets up logging, and wires signal-based
// graceful shutdown around the bot app's fan-out loop and update poll.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goerrors "github.com/go-faster/errors"

	"telegram-userbot/internal/app/botapp"
	"telegram-userbot/internal/infra/config"
	"telegram-userbot/internal/infra/console"
	"telegram-userbot/internal/infra/logger"
	"telegram-userbot/internal/infra/pr"
	"telegram-userbot/internal/infra/timeutil"
)

// Exit codes mirror the monitor's contract: 0 success, 1 configuration
// error, 130 interrupted. The bot has no network-only tick to fail in
// isolation, so it has no distinct code 2.
const (
	exitOK          = 0
	exitConfigError = 1
	exitInterrupted = 130
)

const defaultRequestsPerSecond = 25

const version = "crazyones-bot/0.1.0"

func main() {
	log.SetFlags(0)
	log.SetPrefix(time.Now().Format("2006-01-02 15:04:05 "))

	if err := pr.Init(); err != nil {
		log.Fatalf("failed to assign stdout/stderr: %v", err)
	}

	var (
		token   = flag.String("token", "", "Telegram bot token (overrides config.json)")
		daemon  = flag.Bool("daemon", false, "run without the interactive console")
		rps     = flag.Int("rps", defaultRequestsPerSecond, "outgoing Telegram requests per second")
		showLog = flag.Bool("log", false, "print the last 100 log lines and exit")
		showVer = flag.Bool("version", false, "print the version and exit")
		envPath = flag.String("env", ".env", "path to .env file")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := botapp.Options{
		DataDir:         env.DataDir,
		TranslationsDir: env.TranslationsDir,
		BotToken:        cfg.TelegramBotToken,
		RequestsPerSec:  *rps,
		Interactive:     !*daemon && console.IsInteractive(),
	}

	a, err := botapp.New(opts)
	if err != nil {
		logger.Errorf("configuration error: %v", err)
		os.Exit(exitConfigError)
	}

	if runErr := a.Run(ctx); runErr != nil {
		wrapped := goerrors.Wrap(runErr, "bot run")
		if ctx.Err() != nil {
			logger.Infof("interrupted: %v", wrapped)
			os.Exit(exitInterrupted)
		}
		logger.Errorf("bot exited with error: %v", wrapped)
		os.Exit(exitConfigError)
	}

	logger.Info("graceful shutdown complete")
}
