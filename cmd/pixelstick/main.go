package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/pixelstick/internal/config"
	"github.com/coreman2200/pixelstick/internal/diagnostics"
	"github.com/coreman2200/pixelstick/internal/event"
	"github.com/coreman2200/pixelstick/internal/led"
	"github.com/coreman2200/pixelstick/internal/link"
	"github.com/coreman2200/pixelstick/internal/render"
	"github.com/coreman2200/pixelstick/internal/selftest"
	"github.com/coreman2200/pixelstick/internal/server"
)

func main() {
	// ---- Flags (config.yaml overrides where it sets a value) ----
	var (
		leds         = flag.Int("leds", 144, "number of LEDs on the stick")
		driver       = flag.String("driver", "spi", "driver: spi | console | sim")
		spiDev       = flag.String("spi", "", "SPI port name, empty for the first one")
		addr         = flag.String("addr", ":8080", "HTTP listen address (websocket link, preview, health)")
		tcpAddr      = flag.String("tcp", ":7777", "raw TCP link listen address, empty to disable")
		tick         = flag.Duration("tick", render.DefaultTick, "render period")
		level        = flag.String("log-level", "info", "log level")
		configPath   = flag.String("config", "config.yaml", "path to config.yaml")
		simOnly      = flag.Bool("sim-only", false, "force simulation (no hardware output)")
		selfTest     = flag.String("selftest", "", "run a self test and exit: index_sweep | rgb_channels | fill")
		selfTestHold = flag.Duration("selftest-hold", 100*time.Millisecond, "time each self test step is shown")
		writeConfig  = flag.Bool("write-config", false, "write the effective config to -config and exit")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	// ---- Effective config: defaults, then flags, then config.yaml ----
	cfg := config.Default()
	cfg.LEDCount = *leds
	cfg.Driver = *driver
	cfg.SPI.Dev = *spiDev
	cfg.HTTPAddr = *addr
	cfg.Link.TCPAddr = *tcpAddr
	cfg.Tick = *tick
	cfg.LogLevel = *level

	if c, err := config.Load(*configPath); err != nil {
		if !*writeConfig {
			log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
		}
	} else {
		config.Overlay(cfg, c)
	}
	if *simOnly {
		cfg.Driver = led.KindSim
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *writeConfig {
		if err := config.Save(*configPath, cfg); err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("write config")
		}
		log.Info().Str("path", *configPath).Msg("config written")
		return
	}

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level; using info")
	} else {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Driver ----
	lay := cfg.Layout
	lay.Count = cfg.LEDCount
	drv, selected := led.Open(led.Options{
		Kind:    cfg.Driver,
		Count:   lay.Total(),
		SPIDev:  cfg.SPI.Dev,
		SPIFreq: physic.Frequency(cfg.SPI.FreqKHz) * physic.KiloHertz,
	})
	defer drv.Close()
	out := led.NewOutput(drv, lay)

	if *selfTest != "" {
		kind, err := selftest.ParseKind(*selfTest)
		if err != nil {
			log.Fatal().Err(err).Msg("self test")
		}
		if err := selftest.Run(ctx, out, cfg.LEDCount, selftest.Plan{Kind: kind}, *selfTestHold); err != nil {
			log.Error().Err(err).Msg("self test failed")
		}
		return
	}

	// ---- Event channel, link, render machine ----
	events := event.NewChannel(cfg.Link.QueueSize, cfg.Link.QueueTimeout)
	var srv *server.Server
	hub := link.NewHub(link.Options{
		LEDCount:   cfg.LEDCount,
		RecvBuffer: cfg.Link.RecvBuffer,
		WriteQueue: cfg.Link.WriteQueue,
		Diag:       func(d diagnostics.Diagnostic) { srv.PushDiag(d) },
	}, events)

	preview := server.NewPreview(out, cfg.LEDCount, 0)
	machine, err := render.NewMachine(render.Options{
		LEDCount: cfg.LEDCount,
		Columns:  cfg.MaxColumns,
		BaseRate: cfg.BaseRate,
		Timing:   cfg.Timing,
		Power: render.Power{
			WhiteCap:  cfg.Power.WhiteCap,
			LEDChanMA: cfg.Power.LEDChanMA,
			BudgetMA:  cfg.Power.BudgetMA,
		},
		Fault: func(err error) { srv.PushDiag(diagnostics.FromError(err, nil)) },
	}, preview, events, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("render machine")
	}
	srv = server.New(cfg.LEDCount, machine, hub, events, preview)
	srv.Driver = selected

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		machine.Run(ctx, cfg.Tick)
	}()
	go func() {
		defer wg.Done()
		srv.Run(ctx)
	}()

	if cfg.Link.TCPAddr != "" {
		ln, err := net.Listen("tcp", cfg.Link.TCPAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Link.TCPAddr).Msg("tcp link listen")
		}
		go func() {
			if err := hub.ServeListener(ctx, ln); err != nil {
				log.Error().Err(err).Msg("tcp link listener stopped")
			}
		}()
	}

	// ---- HTTP ----
	httpSrv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     srv.Routes(),
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("driver", selected).Int("leds", cfg.LEDCount).Msg("HTTP server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server crashed")
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	log.Info().Msg("shutting down")
	_ = httpSrv.Close()
	_ = hub.Close()
	wg.Wait()
}
