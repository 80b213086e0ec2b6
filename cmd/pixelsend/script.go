package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/rs/zerolog/log"
)

// Script runs sender commands, one per line:
//
//	hello
//	aurora <columns> [speed] [brightness]
//	file <path> [speed]
//	wait <duration>
//	abort
//
// Blank lines and lines starting with # are skipped. Words are split with
// shell quoting rules.
type Script struct {
	Client *Client
	// Count is the LED count used to build columns; hello updates it.
	Count int
	Speed uint8
}

func (s *Script) Run(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		words, err := shlex.Split(text)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := s.exec(ctx, words); err != nil {
			return fmt.Errorf("line %d: %s: %w", line, words[0], err)
		}
	}
	return sc.Err()
}

func (s *Script) exec(ctx context.Context, words []string) error {
	switch words[0] {
	case "hello":
		n, err := s.Client.Hello(ctx)
		if err != nil {
			return err
		}
		s.Count = n
		log.Info().Int("leds", n).Msg("hello")
		return nil
	case "aurora":
		if len(words) < 2 {
			return fmt.Errorf("usage: aurora <columns> [speed] [brightness]")
		}
		cols, err := strconv.Atoi(words[1])
		if err != nil {
			return err
		}
		speed, err := s.speedArg(words, 2)
		if err != nil {
			return err
		}
		bright := 0.6
		if len(words) > 3 {
			if bright, err = strconv.ParseFloat(words[3], 64); err != nil {
				return err
			}
		}
		return s.play(ctx, speed, NewAurora(s.Count, cols, bright))
	case "file":
		if len(words) < 2 {
			return fmt.Errorf("usage: file <path> [speed]")
		}
		speed, err := s.speedArg(words, 2)
		if err != nil {
			return err
		}
		src, err := OpenRawFile(words[1], s.Count)
		if err != nil {
			return err
		}
		return s.play(ctx, speed, src)
	case "wait":
		if len(words) < 2 {
			return fmt.Errorf("usage: wait <duration>")
		}
		d, err := time.ParseDuration(words[1])
		if err != nil {
			return err
		}
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case "abort":
		return s.Client.Abort()
	default:
		return fmt.Errorf("unknown command")
	}
}

func (s *Script) speedArg(words []string, i int) (uint8, error) {
	if len(words) <= i {
		return s.Speed, nil
	}
	v, err := strconv.ParseUint(words[i], 10, 8)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, fmt.Errorf("speed must be > 0")
	}
	return uint8(v), nil
}

func (s *Script) play(ctx context.Context, speed uint8, src Source) error {
	if s.Count <= 0 {
		return fmt.Errorf("led count unknown, send hello first")
	}
	start := time.Now()
	n, err := s.Client.Play(ctx, speed, src)
	log.Info().Int("columns", n).Uint8("speed", speed).Dur("took", time.Since(start)).Msg("played")
	return err
}
