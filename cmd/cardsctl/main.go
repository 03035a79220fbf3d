package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/DoyleJ11/offensive-cards/internal/cards"
	"github.com/DoyleJ11/offensive-cards/internal/config"
	"github.com/DoyleJ11/offensive-cards/internal/identity"
	"github.com/DoyleJ11/offensive-cards/internal/live"
	"github.com/DoyleJ11/offensive-cards/internal/play"
	"github.com/DoyleJ11/offensive-cards/internal/route"
	"github.com/DoyleJ11/offensive-cards/internal/session"
	"github.com/DoyleJ11/offensive-cards/internal/transport"
	"github.com/DoyleJ11/offensive-cards/pkg/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const usage = `usage:
  cardsctl [-env file] create <name> <short>
  cardsctl [-env file] <game link or id>`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) (err error) {
	fs := flag.NewFlagSet("cardsctl", flag.ContinueOnError)
	envFile := fs.String("env", ".env", "dotenv file to read before the environment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	args = fs.Args()
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	log, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	backend, closeIDs, err := cfg.IdentityBackend()
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Invoke(closeIDs))
	ids := identity.NewStore(backend, log)

	var gameID string
	var owner *types.NewPlayer
	switch r := route.Parse(pathOf(args[0])).(type) {
	case route.Create:
		if len(args) != 3 {
			return errors.New(usage)
		}
		owner = &types.NewPlayer{Name: args[1], Short: args[2]}
	case route.Play:
		gameID = r.GameID
	case route.Invalid:
		return fmt.Errorf("no game at %s", r.Path)
	}

	client, err := transport.New(cfg.APIBase, ids, session.New(gameID), transport.WithLogger(log))
	if err != nil {
		return err
	}
	ch := live.NewChannel(ctx, client, live.Options{Interval: cfg.ReconnectInterval, Logger: log})
	defer multierr.AppendInvoke(&err, multierr.Invoke(ch.Close))

	if owner != nil {
		snap, err := client.CreateGame(ctx, *owner)
		if err != nil {
			return fmt.Errorf("create game: %s", transport.Message(err))
		}
		gameID = snap.ID
		fmt.Fprintf(out, "Game created. Others join with: cardsctl %s\n", gameID)
	}

	ctrl := play.New(client, ch, log)
	w := &frameWriter{w: out}
	ctrl.Listen(func(f play.Frame) { w.frame(ctrl.Catalog(), f) })
	if _, err := ctrl.Load(ctx, gameID); err != nil {
		return err
	}
	return prompt(ctx, ctrl, in, w, log)
}

// prompt reads commands until quit, end of input or cancellation.
func prompt(ctx context.Context, ctrl *play.Controller, in io.Reader, w *frameWriter, log *zap.Logger) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := dispatch(ctx, ctrl, line)
			if quit {
				return nil
			}
			if err != nil {
				log.Debug("command failed", zap.String("command", line), zap.Error(err))
			}
			if errors.Is(err, errUsage) || errors.Is(err, play.ErrNotLoaded) {
				w.line(err.Error())
			}
		}
	}
}

var errUsage = errors.New("commands: join <name> <short>, start, redeal, select <n>, next, dismiss, quit")

func dispatch(ctx context.Context, ctrl *play.Controller, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	switch fields[0] {
	case "quit", "exit":
		return true, nil
	case "join":
		if len(fields) != 3 {
			return false, errUsage
		}
		return false, ctrl.Join(ctx, types.NewPlayer{Name: fields[1], Short: fields[2]})
	case "start":
		return false, ctrl.Start(ctx)
	case "redeal":
		return false, ctrl.Redeal(ctx)
	case "next":
		return false, ctrl.NextRound(ctx)
	case "dismiss":
		ctrl.Dismiss()
		return false, nil
	case "select":
		if len(fields) != 2 {
			return false, errUsage
		}
		n, err := strconv.Atoi(fields[1])
		items := selectable(ctrl.Catalog(), ctrl.Frame())
		if err != nil || n < 1 || n > len(items) {
			return false, fmt.Errorf("%w: no card %q here", errUsage, fields[1])
		}
		return false, ctrl.SelectCard(ctx, items[n-1].ID)
	default:
		return false, errUsage
	}
}

// pathOf accepts a full game link, a path or a bare game id.
func pathOf(arg string) string {
	if arg == "create" {
		return "/"
	}
	if u, err := url.Parse(arg); err == nil && u.Scheme != "" {
		if u.Path == "" {
			return "/"
		}
		return u.Path
	}
	if !strings.HasPrefix(arg, "/") {
		return "/" + arg
	}
	return arg
}

// frameWriter keeps frames rendered from the push goroutine and from the
// prompt from interleaving.
type frameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (fw *frameWriter) frame(cat *cards.Catalog, f play.Frame) {
	var buf bytes.Buffer
	render(&buf, cat, f)
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.w.Write(buf.Bytes())
}

func (fw *frameWriter) line(s string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fmt.Fprintln(fw.w, s)
}
