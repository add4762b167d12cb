// Package app wires the dispenser together: config, logging, storage, the
// trigger engine, the dispense pipeline, notification channels and the HTTP
// server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"pillbox/internal/adapters/notificationapi"
	"pillbox/internal/adapters/telegram"
	"pillbox/internal/adapters/twilio"
	"pillbox/internal/config"
	"pillbox/internal/eventbus"
	"pillbox/internal/schedule"
	"pillbox/internal/services/dispense"
	"pillbox/internal/services/notify"
	"pillbox/internal/services/trigger"
	"pillbox/internal/storage"
	"pillbox/internal/transport/rest"
	logx "pillbox/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	bus    eventbus.Bus
	store  schedule.Store
	caller *twilio.Caller
	notif  *notify.Service
	disp   *dispense.Service
	trig   *trigger.Service
	events *rest.EventLog
	srv    *http.Server

	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// errCaller stands in when call credentials are missing, so every dispense
// round fails the same way a bad credential would.
type errCaller struct{}

func (errCaller) PlaceCall(context.Context, string, string, string) (string, error) {
	return "", errors.New("call credentials not configured")
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	store, err := storage.Open(storageConfig(cfg.Storage), log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	bus := eventbus.New()

	a := &App{
		cfgm:   cfgm,
		logs:   logSvc,
		log:    log,
		bus:    bus,
		store:  store,
		events: rest.NewEventLog(),
	}

	if strings.TrimSpace(cfg.Call.AccountSID) != "" && strings.TrimSpace(cfg.Call.AuthToken) != "" {
		caller, err := twilio.New(twilio.Config{AccountSID: cfg.Call.AccountSID, AuthToken: cfg.Call.AuthToken})
		if err != nil {
			_ = store.Close()
			_ = logSvc.Close()
			return nil, err
		}
		a.caller = caller
	} else {
		log.Warn("call credentials not configured; dispense rounds will fail until set")
	}

	notifCfg, err := notifyConfig(cfg.Notify)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	a.notif = notify.New(notifCfg, log.With(logx.String("comp", "notify")), bus)

	channels, err := buildChannels(cfg.Notify)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	a.notif.SetChannels(channels...)

	dispCfg, err := dispenseConfig(cfg)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	var caller dispense.Caller = errCaller{}
	if a.caller != nil {
		caller = a.caller
	}
	a.disp = dispense.New(dispCfg, caller, notifierAdapter{a.notif}, store,
		log.With(logx.String("comp", "dispense")), bus)

	a.trig = trigger.New(trigger.Config{
		Enabled:  cfg.Trigger.Enabled,
		Timezone: cfg.Trigger.Timezone,
	}, store, a.disp, log.With(logx.String("comp", "trigger")), bus)

	a.srv = httpServer(cfg.HTTP, rest.NewRouter(rest.Options{
		Store:     store,
		Dispenser: a.disp,
		Events:    a.events,
		Log:       log.With(logx.String("comp", "http")),
	}))

	return a, nil
}

// notifierAdapter bridges the dispense pipeline's Notifier port onto the
// notify service.
type notifierAdapter struct{ s *notify.Service }

func (n notifierAdapter) Notify(ctx context.Context, kind, recipientID, recipientContact, message string) error {
	return n.s.Notify(ctx, notify.Notification{
		Kind:      kind,
		Recipient: notify.Recipient{ID: recipientID, Contact: recipientContact},
		Message:   message,
	})
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.events.Run(runCtx, a.bus)
	}()

	a.notif.Start(runCtx)
	a.trig.Start(runCtx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.log.Info("http server listening", logx.String("addr", a.srv.Addr))
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server failed", logx.Any("err", err))
			cancel()
		}
	}()

	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(runCtx, sub)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("app started")
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			sections, attrs := config.SummarizeChange(lastApplied, newCfg)
			lastApplied = newCfg
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}

			a.applyConfig(ctx, newCfg)
			a.log.Info("config reloaded",
				append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
		}
	}
}

func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	if a.caller != nil && strings.TrimSpace(cfg.Call.AccountSID) != "" && strings.TrimSpace(cfg.Call.AuthToken) != "" {
		if err := a.caller.Apply(twilio.Config{AccountSID: cfg.Call.AccountSID, AuthToken: cfg.Call.AuthToken}); err != nil {
			a.log.Warn("call credential update rejected", logx.Any("err", err))
		}
	}

	if dispCfg, err := dispenseConfig(cfg); err != nil {
		a.log.Warn("dispense config update rejected", logx.Any("err", err))
	} else {
		a.disp.Apply(dispCfg)
	}

	if notifCfg, err := notifyConfig(cfg.Notify); err != nil {
		a.log.Warn("notify config update rejected", logx.Any("err", err))
	} else {
		a.notif.Apply(notifCfg)
	}
	if channels, err := buildChannels(cfg.Notify); err != nil {
		a.log.Warn("notification channel update rejected", logx.Any("err", err))
	} else {
		a.notif.SetChannels(channels...)
	}
	// Make sure the pipeline is running if it got enabled.
	if a.notif.Enabled() {
		a.notif.Start(ctx)
	}

	a.trig.Apply(trigger.Config{
		Enabled:  cfg.Trigger.Enabled,
		Timezone: cfg.Trigger.Timezone,
	})
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stopping")

	shutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if a.srv != nil {
		_ = a.srv.Shutdown(shutCtx)
	}
	a.trig.Stop(shutCtx)
	a.notif.Stop(shutCtx)

	if a.runCancel != nil {
		a.runCancel()
	}
	a.wg.Wait()

	err := a.store.Close()
	_ = a.logs.Close()
	return err
}

func storageConfig(sc *config.StorageConfig) storage.Config {
	if sc == nil {
		return storage.Config{Driver: "file", Path: "./pillbox_schedule.csv"}
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		busy = 0
	}
	out := storage.Config{
		Driver:      sc.Driver,
		Path:        sc.Path,
		DSN:         sc.DSN,
		BusyTimeout: busy,
	}
	if strings.TrimSpace(out.Path) == "" && strings.TrimSpace(out.DSN) == "" {
		out.Path = "./pillbox_schedule.csv"
	}
	return out
}

func notifyConfig(nc *config.NotifyConfig) (notify.Config, error) {
	if nc == nil {
		return notify.Config{Enabled: true}, nil
	}
	retryBase, err := config.ParseDurationField("notify.retry_base", nc.RetryBase)
	if err != nil {
		return notify.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notify.retry_max_delay", nc.RetryMaxDelay)
	if err != nil {
		return notify.Config{}, err
	}
	sendTimeout, err := config.ParseDurationField("notify.send_timeout", nc.SendTimeout)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		Enabled:       nc.Enabled,
		Workers:       nc.Workers,
		QueueSize:     nc.QueueSize,
		RatePerSec:    nc.RatePerSec,
		RetryMax:      nc.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
		SendTimeout:   sendTimeout,
	}, nil
}

func buildChannels(nc *config.NotifyConfig) ([]notify.Channel, error) {
	if nc == nil {
		return nil, nil
	}
	var out []notify.Channel
	if api := nc.NotificationAPI; api != nil && api.Enabled {
		c, err := notificationapi.New(notificationapi.Config{
			ClientID:     api.ClientID,
			ClientSecret: api.ClientSecret,
			BaseURL:      api.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if tg := nc.Telegram; tg != nil && tg.Enabled {
		s, err := telegram.New(telegram.Config{Token: tg.Token, ChatID: tg.ChatID})
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func dispenseConfig(cfg *config.Config) (dispense.Config, error) {
	delay, err := config.ParseDurationOrDefault("call.post_call_delay", cfg.Call.PostCallDelay, 2*time.Second)
	if err != nil {
		return dispense.Config{}, err
	}
	out := dispense.Config{
		To:            cfg.Call.To,
		From:          cfg.Call.From,
		Language:      cfg.Call.Language,
		PostCallDelay: delay,
	}
	if cfg.Notify != nil {
		out.CaregiverID = cfg.Notify.Caregiver.ID
		out.CaregiverNumber = cfg.Notify.Caregiver.Number
	}
	return out, nil
}

func httpServer(hc config.HTTPConfig, handler http.Handler) *http.Server {
	addr := strings.TrimSpace(hc.Addr)
	if addr == "" {
		addr = ":5000"
	}
	read, _ := config.ParseDurationOrDefault("http.read_timeout", hc.ReadTimeout, 10*time.Second)
	write, _ := config.ParseDurationOrDefault("http.write_timeout", hc.WriteTimeout, 30*time.Second)
	idle, _ := config.ParseDurationOrDefault("http.idle_timeout", hc.IdleTimeout, time.Minute)
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}
}
