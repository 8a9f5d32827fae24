// Package botapp wires the bot binary's subsystems together: the
// subscriber store, delivery ledger, translation catalog, trigger
// watcher/fan-out loop, the Bot API update poll loop that runs each
// incoming message and button tap through the command dispatcher, and
// an optional operator console.
package botapp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"telegram-userbot/internal/adapters/telegram"
	"telegram-userbot/internal/domain/command"
	"telegram-userbot/internal/domain/delivery"
	"telegram-userbot/internal/domain/fanout"
	"telegram-userbot/internal/domain/locale"
	"telegram-userbot/internal/domain/subscriber"
	"telegram-userbot/internal/domain/translation"
	"telegram-userbot/internal/domain/update"
	"telegram-userbot/internal/infra/console"
	"telegram-userbot/internal/infra/lifecycle"
	"telegram-userbot/internal/infra/pr"
	"telegram-userbot/internal/infra/throttle"
)

// Options gathers everything main needs to decide before wiring.
type Options struct {
	DataDir         string
	TranslationsDir string
	BotToken        string
	RequestsPerSec  int
	Interactive     bool
}

// App is the running bot process, exposing the pieces a transport-
// update loop needs (Stores, Dispatch) plus Run for the background
// services.
type App struct {
	Stores command.Stores

	client  *telegram.Client
	manager *lifecycle.Manager
	cancel  atomic.Pointer[context.CancelFunc]
}

// New loads every durable store, builds the Telegram client and fan-out
// watcher, and registers them with the lifecycle manager.
func New(opts Options) (*App, error) {
	subs, err := subscriber.Load(filepath.Join(opts.DataDir, "subscribers.json"))
	if err != nil {
		return nil, fmt.Errorf("botapp: load subscribers: %w", err)
	}
	ledger, err := delivery.Load(filepath.Join(opts.DataDir, "delivery_ledger.json"))
	if err != nil {
		return nil, fmt.Errorf("botapp: load delivery ledger: %w", err)
	}
	catalog, err := locale.LoadCatalog(filepath.Join(opts.DataDir, "language_urls.json"))
	if err != nil {
		return nil, fmt.Errorf("botapp: load locale catalog: %w", err)
	}
	names, err := locale.LoadNames(filepath.Join(opts.DataDir, "language_names.json"))
	if err != nil {
		return nil, fmt.Errorf("botapp: load locale names: %w", err)
	}
	translations, err := translation.Load(opts.TranslationsDir)
	if err != nil {
		return nil, fmt.Errorf("botapp: load translations: %w", err)
	}

	loadLocaleStore := func(tag string) (*update.Store, error) {
		return update.LoadStore(filepath.Join(opts.DataDir, "updates", tag+".json"))
	}

	stores := command.Stores{
		Subscribers:  subs,
		Catalog:      catalog,
		Names:        names,
		Translations: translations,
		LoadLocale:   loadLocaleStore,
	}

	client := telegram.NewClient(opts.BotToken, opts.RequestsPerSec)
	limiter := throttle.New(opts.RequestsPerSec,
		throttle.WithMaxRetries(fanout.DefaultMaxRetries),
		throttle.WithWaitExtractors(telegram.RetryAfterExtractor()),
	)

	classify := func(err error) (blocked bool, permanentOther bool) {
		var sendErr *telegram.SendError
		if !errors.As(err, &sendErr) {
			return false, false
		}
		return sendErr.Outcome == telegram.OutcomeBlocked, sendErr.Outcome == telegram.OutcomePermanentOther
	}

	watcher := fanout.New(opts.DataDir, client, classify, subs, ledger, translations, names, limiter)

	manager := lifecycle.New(context.Background())
	app := &App{Stores: stores, client: client, manager: manager}

	_ = manager.Register("fanout", "", nil,
		func(ctx context.Context) (context.Context, error) {
			go func() {
				_ = watcher.Run(ctx)
			}()
			return nil, nil
		},
		func(ctx context.Context) error { return nil },
	)

	_ = manager.Register("updates", "", []string{"fanout"},
		func(ctx context.Context) (context.Context, error) {
			go app.pollUpdates(ctx)
			return nil, nil
		},
		func(ctx context.Context) error { return nil },
	)

	if opts.Interactive {
		svc := console.NewService("bot", app.requestShutdown, []console.Command{
			{Name: "status", Description: "Show the subscriber count and each service's state", Run: func() {
				pr.Printf("subscribers: %d\n", len(subs.All()))
				for name, state := range manager.Status() {
					pr.Printf("  %s: %s\n", name, state)
				}
			}},
			{Name: "version", Description: "Print the bot version", Run: func() {
				pr.Println("crazyones-bot")
			}},
		})

		_ = manager.Register("console", "", []string{"updates"},
			func(ctx context.Context) (context.Context, error) {
				svc.Start(ctx)
				return nil, nil
			},
			func(ctx context.Context) error {
				svc.Stop()
				return nil
			},
		)
	}

	return app, nil
}

// pollUpdates long-polls the Bot API for incoming messages and button
// taps and runs each one through the command dispatcher, sending back
// whatever Response it produces. A poll error is logged and retried on
// the next loop iteration rather than torn down.
func (a *App) pollUpdates(ctx context.Context) {
	offset := 0
	for ctx.Err() == nil {
		messages, callbacks, next, err := a.client.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			console.Warn("poll updates:", err)
			continue
		}
		offset = next

		for _, msg := range messages {
			req := command.ParseRequest(msg.ChatID, msg.Text)
			resp := a.Dispatch(req, time.Now())
			a.deliverResponse(ctx, msg.ChatID, resp)
		}

		for _, cb := range callbacks {
			resp := command.DispatchCallback(a.Stores, cb.ChatID, cb.Data)
			if err := a.client.AnswerCallbackQuery(ctx, cb.ID, ""); err != nil {
				console.Warn("answer callback failed:", err)
			}
			if resp.Text == "" {
				continue
			}
			if err := a.client.EditMessageText(ctx, cb.ChatID, cb.MessageID, resp.Text, nil); err != nil {
				console.Warn("edit message failed:", err)
			}
		}
	}
}

// deliverResponse sends resp as a new message, using an inline keyboard
// when the dispatcher attached one.
func (a *App) deliverResponse(ctx context.Context, chatID int64, resp command.Response) {
	if resp.Text == "" {
		return
	}
	if len(resp.Keyboard) > 0 {
		if _, err := a.client.SendWithKeyboard(ctx, chatID, resp.Text, toTelegramKeyboard(resp.Keyboard)); err != nil {
			console.Warn("reply send failed:", err)
		}
		return
	}
	if err := a.client.Send(ctx, chatID, resp.Text); err != nil {
		console.Warn("reply send failed:", err)
	}
}

// toTelegramKeyboard translates the dispatcher's transport-agnostic
// Keyboard into the Telegram wire shape.
func toTelegramKeyboard(kb command.Keyboard) telegram.Keyboard {
	out := make(telegram.Keyboard, len(kb))
	for i, row := range kb {
		encodedRow := make([]telegram.Button, len(row))
		for j, btn := range row {
			encodedRow[j] = telegram.Button{Text: btn.Label, Data: btn.Data}
		}
		out[i] = encodedRow
	}
	return out
}

func (a *App) requestShutdown() {
	if cancel := a.cancel.Load(); cancel != nil {
		(*cancel)()
	}
}

// Run starts every background service, the update poll loop included,
// blocks until ctx is cancelled, then shuts down in reverse start order.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel.Store(&cancel)
	defer cancel()

	if err := a.manager.StartAll(); err != nil {
		return fmt.Errorf("botapp: start: %w", err)
	}

	<-runCtx.Done()
	return a.manager.Shutdown()
}

// Dispatch routes one parsed command through the shared dispatcher.
func (a *App) Dispatch(req command.Request, now time.Time) command.Response {
	return command.Dispatch(a.Stores, req, now)
}

