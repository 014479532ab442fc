// globalmkh - global mouse and keyboard hook daemon
// Installs low-level input hooks on demand and streams decoded events to
// local subscribers over HTTP and WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"globalmkh/internal/api"
	"globalmkh/internal/autostart"
	"globalmkh/internal/config"
	"globalmkh/internal/hook"
	"globalmkh/internal/hotkey"
	"globalmkh/internal/input"
	"globalmkh/internal/journal"
	"globalmkh/internal/logging"
	"globalmkh/internal/monitor"
	"globalmkh/internal/network"
	"globalmkh/internal/osutils"
	"globalmkh/internal/tray"
)

var (
	version    = "0.1.0"
	configPath = flag.String("config", "", "Path to the config file (toml, yaml or json)")
	showVer    = flag.Bool("version", false, "Show version")
	watchAddr  = flag.String("watch", "", "Open the live event monitor against a running daemon at host:port")
	watchToken = flag.String("token", "", "API token for -watch")
	watchEvts  = flag.String("events", "keydown,keyup,mousedown,mouseup,mousewheel", "Comma separated events streamed by -watch")
	autoStart  = flag.String("autostart", "", "enable or disable start on login, then exit")
	showStatus = flag.Bool("status", false, "Print the running daemon's hook state and exit")
	recentN    = flag.Int("recent", 0, "Print the last N journal entries and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("globalmkh version %s\n", version)
		return
	}

	cfgMgr, err := config.NewManager(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize config: %v\n", err)
		os.Exit(1)
	}
	loadErr := cfgMgr.Load()

	cfg := cfgMgr.Get()
	if err := logging.Init(logging.Config{Level: cfg.General.LogLevel, File: cfgMgr.ResolvePath(cfg.General.LogFile)}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
	}
	defer logging.Close()

	log := logging.For("main")
	if loadErr != nil {
		log.Warn().Err(loadErr).Str("path", cfgMgr.Path()).Msg("failed to load config, using defaults")
	}

	switch {
	case *autoStart != "":
		if err := handleAutostart(*autoStart, cfgMgr.Path()); err != nil {
			log.Fatal().Err(err).Msg("autostart")
		}
		return
	case *showStatus:
		if err := printStatus(cfgMgr.Get()); err != nil {
			log.Fatal().Err(err).Msg("status")
		}
		return
	case *recentN > 0:
		if err := printRecent(cfgMgr, *recentN); err != nil {
			log.Fatal().Err(err).Msg("journal")
		}
		return
	case *watchAddr != "":
		if err := runWatch(*watchAddr, *watchToken, *watchEvts); err != nil {
			log.Fatal().Err(err).Msg("monitor failed")
		}
		return
	}

	runService(cfgMgr, log)
}

func handleAutostart(mode, cfgPath string) error {
	switch mode {
	case "enable":
		if err := autostart.Enable([]string{"-config", cfgPath}); err != nil {
			return err
		}
		fmt.Println("Start on login enabled")
	case "disable":
		if err := autostart.Disable(); err != nil {
			return err
		}
		fmt.Println("Start on login disabled")
	default:
		return fmt.Errorf("unknown autostart mode %q (want enable or disable)", mode)
	}
	return nil
}

func printStatus(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := network.FetchStatus(ctx, cfg.API.Listen, cfg.API.Token)
	if err != nil {
		return err
	}
	for _, cat := range input.Categories {
		c := st.Categories[cat]
		fmt.Printf("%-9s installed=%-5v paused=%-5v mousemove=%v\n", cat, c.Installed, c.Paused, c.MouseMoveEnabled)
	}
	for _, name := range st.Subscribed {
		fmt.Printf("  %-11s listeners=%d\n", name, st.Listeners[name])
	}
	fmt.Printf("dropped=%d malformed=%d\n", st.Dropped, st.Malformed)
	return nil
}

func printRecent(cfgMgr *config.Manager, n int) error {
	j, err := journal.OpenReadOnly(cfgMgr.ResolvePath(cfgMgr.Get().Journal.Path), logging.For("journal"))
	if err != nil {
		return err
	}
	defer j.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, err := j.Recent(ctx, n)
	if err != nil {
		return err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		desc := string(e.Name)
		if ev, err := e.Event(); err == nil {
			desc = monitor.Describe(ev)
		}
		fmt.Printf("%s  %s\n", e.Time.Format("15:04:05.000"), desc)
	}
	total, err := j.Count(ctx, "")
	if err != nil {
		return err
	}
	fmt.Printf("%d events recorded\n", total)
	return nil
}

func runWatch(addr, token, events string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var names []string
	for _, n := range strings.Split(events, ",") {
		if n = strings.TrimSpace(n); n == "" {
			continue
		}
		if _, err := input.ParseEventName(n); err != nil {
			return err
		}
		names = append(names, n)
	}

	// Keep log output off the alternate screen.
	client := network.NewWSClient(addr, token, names, zerolog.Nop())
	return monitor.Run(ctx, client, addr)
}

func runService(cfgMgr *config.Manager, log zerolog.Logger) {
	cfg := cfgMgr.Get()
	log.Info().Str("version", version).Str("config", cfgMgr.Path()).Msg("globalmkh starting")

	if !osutils.IsAdmin() {
		log.Debug().Msg("not running elevated; hooks will not see input sent to elevated windows")
	}

	if cfg.General.StartOnLogin && !autostart.IsEnabled() {
		if err := autostart.Enable([]string{"-config", cfgMgr.Path()}); err != nil {
			log.Warn().Err(err).Msg("failed to enable start on login")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitter := input.NewEmitter(
		hook.New(logging.For("hook")),
		input.WithQueueSize(cfg.Capture.QueueSize),
		input.WithLogger(logging.For("input")),
	)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = emitter.Run(ctx)
	}()

	var subs []*input.Subscription
	for _, n := range cfg.Capture.AutoSubscribe {
		name, _ := input.ParseEventName(n)
		sub, err := emitter.On(name, func(input.Event) error { return nil })
		if err != nil {
			log.Error().Err(err).Str("event", n).Msg("auto subscribe failed")
			continue
		}
		subs = append(subs, sub)
	}
	if cfg.General.StartPaused {
		for _, cat := range input.Categories {
			if emitter.Status().Categories[cat].Installed {
				if _, err := emitter.Pause(cat); err != nil {
					log.Warn().Err(err).Str("category", string(cat)).Msg("failed to start paused")
				}
			}
		}
	}

	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfgMgr.ResolvePath(cfg.Journal.Path), logging.For("journal"))
		if err != nil {
			log.Error().Err(err).Msg("failed to open journal")
		} else {
			jrnl = j
			names := make([]input.EventName, 0, len(cfg.Journal.Events))
			for _, n := range cfg.Journal.Events {
				name, _ := input.ParseEventName(n)
				names = append(names, name)
			}
			if err := jrnl.Attach(emitter, names); err != nil {
				log.Warn().Err(err).Msg("journal attached partially")
			}
		}
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(emitter, cfg.API.Token, logging.For("api"))
		if port, public := listenPort(cfg.API.Listen); public {
			if ips, err := network.GetLocalIPs(); err == nil {
				log.Info().Strs("addresses", ips).Int("port", port).Msg("API reachable on the local network")
			}
			go func() {
				if err := osutils.EnsureFirewallRule(port, logging.For("firewall")); err != nil {
					log.Warn().Err(err).Msg("firewall rule not applied")
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := apiServer.Start(ctx, cfg.API.Listen); err != nil {
				log.Error().Err(err).Msg("API server error")
			}
		}()
	}

	if cfg.Capture.ToggleHotkey != "" {
		startHotkey(ctx, cfg.Capture.ToggleHotkey, emitter, log)
	}

	cfgMgr.RegisterChangeCallback(func(c *config.Config) {
		if err := logging.Init(logging.Config{Level: c.General.LogLevel, File: cfgMgr.ResolvePath(c.General.LogFile)}); err != nil {
			log.Warn().Err(err).Msg("failed to apply log settings")
			return
		}
		log.Info().Str("level", c.General.LogLevel).Msg("config reloaded")
	})
	watchErrs := make(chan error, 4)
	if err := cfgMgr.Watch(ctx, watchErrs); err != nil {
		log.Warn().Err(err).Msg("config hot reload disabled")
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-watchErrs:
				log.Warn().Err(err).Msg("config reload failed")
			}
		}
	}()

	var t *tray.Tray
	if cfg.General.Tray {
		t = tray.New(emitter, cancel, logging.For("tray"))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	toggleCh := make(chan os.Signal, 1)
	if sigs := osutils.ToggleSignals(); len(sigs) > 0 {
		signal.Notify(toggleCh, sigs...)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-toggleCh:
				toggleAll(emitter, log)
			case sig := <-sigCh:
				log.Info().Str("signal", sig.String()).Msg("shutting down")
				cancel()
				return
			}
		}
	}()

	log.Info().Msg("globalmkh running")
	if t != nil {
		go func() {
			<-ctx.Done()
			t.Stop()
		}()
		// systray needs the main goroutine.
		t.Run()
		cancel()
	} else {
		<-ctx.Done()
	}

	signal.Stop(sigCh)
	signal.Stop(toggleCh)
	for _, sub := range subs {
		sub.Close()
	}
	if jrnl != nil {
		if err := jrnl.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close journal")
		}
		written, dropped := jrnl.Stats()
		log.Info().Uint64("written", written).Uint64("dropped", dropped).Msg("journal closed")
	}
	if apiServer != nil {
		apiServer.Close()
	}
	wg.Wait()

	st := emitter.Status()
	log.Info().Uint64("dropped", st.Dropped).Uint64("malformed", st.Malformed).Msg("globalmkh stopped")
}

func startHotkey(ctx context.Context, combo string, emitter *input.Emitter, log zerolog.Logger) {
	spec, err := hotkey.Parse(combo)
	if err != nil {
		log.Error().Err(err).Str("hotkey", combo).Msg("invalid toggle hotkey")
		return
	}
	hk, err := hotkey.New(spec)
	if err != nil {
		if errors.Is(err, hotkey.ErrUnsupported) {
			log.Debug().Msg("toggle hotkey unavailable on this platform")
		} else {
			log.Error().Err(err).Msg("failed to create toggle hotkey")
		}
		return
	}
	if err := hotkey.Listen(ctx, hk, func() { toggleAll(emitter, log) }); err != nil {
		log.Error().Err(err).Str("hotkey", spec.String()).Msg("failed to register toggle hotkey")
		return
	}
	log.Info().Str("hotkey", spec.String()).Msg("toggle hotkey registered")
}

func toggleAll(emitter *input.Emitter, log zerolog.Logger) {
	paused, err := emitter.ToggleAll()
	if err != nil {
		log.Warn().Err(err).Msg("toggle failed")
		return
	}
	log.Info().Bool("paused", paused).Msg("capture toggled")
}

// listenPort returns the port of addr and whether it binds beyond loopback.
func listenPort(addr string) (int, bool) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, false
	}
	if host == "localhost" {
		return port, false
	}
	ip := net.ParseIP(host)
	return port, ip == nil || !ip.IsLoopback()
}
