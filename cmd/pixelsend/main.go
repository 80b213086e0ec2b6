// Command pixelsend streams animations to a pixelstick over TCP or a
// websocket, honoring the device's flow-control credit.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		addr       = flag.String("addr", "localhost:7777", "device TCP link address")
		wsURL      = flag.String("ws", "", "device websocket link URL (ws://host:8080/link); overrides -addr")
		speed      = flag.Uint("speed", 25, "animation speed 1..255")
		columns    = flag.Int("columns", 256, "columns of the built-in aurora animation")
		brightness = flag.Float64("brightness", 0.6, "aurora brightness 0..1")
		file       = flag.String("file", "", "raw RGB file to play instead of the aurora")
		script     = flag.String("script", "", "command script to run instead of a single animation")
		timeout    = flag.Duration("timeout", 5*time.Second, "wait limit for device replies")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *speed == 0 || *speed > 255 {
		log.Fatal().Uint("speed", *speed).Msg("speed must be within 1..255")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var conn io.ReadWriteCloser
	var err error
	target := *addr
	if *wsURL != "" {
		target = *wsURL
		conn, err = dialWebsocket(*wsURL)
	} else {
		conn, err = net.DialTimeout("tcp", *addr, *timeout)
	}
	if err != nil {
		log.Fatal().Err(err).Str("target", target).Msg("connect")
	}
	c := NewClient(conn, *timeout)
	defer c.Close()
	log.Info().Str("target", target).Msg("connected")

	s := &Script{Client: c, Speed: uint8(*speed)}
	var r io.Reader
	switch {
	case *script != "":
		f, err := os.Open(*script)
		if err != nil {
			log.Fatal().Err(err).Msg("open script")
		}
		defer f.Close()
		r = f
	case *file != "":
		r = strings.NewReader(fmt.Sprintf("hello\nfile %s %d\n", quote(*file), *speed))
	default:
		r = strings.NewReader(fmt.Sprintf("hello\naurora %d %d %g\n", *columns, *speed, *brightness))
	}
	if err := s.Run(ctx, r); err != nil {
		log.Fatal().Err(err).Msg("script")
	}
	log.Info().Msg("done")
}

// quote wraps a path for the script parser.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
