package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Tyrowin/gochat-relay/internal/client"
	"github.com/Tyrowin/gochat-relay/internal/protocol"
	"github.com/Tyrowin/gochat-relay/internal/ui"
)

func main() {
	addr := flag.String("addr", "localhost:9090", "relay TCP address")
	wsURL := flag.String("ws", "", "relay WebSocket URL, e.g. ws://localhost:8080/ws (overrides -addr)")
	origin := flag.String("origin", "http://localhost:8080", "Origin header sent with -ws")
	login := flag.String("login", "", "login name")
	password := flag.String("password", "", "password")
	logPath := flag.String("log", "", "write client logs to this file")
	flag.Parse()

	if err := run(*addr, *wsURL, *origin, *login, *password, *logPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(addr, wsURL, origin, login, password, logPath string) error {
	// The terminal belongs to the UI, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := slog.New(slog.NewTextHandler(logOut, nil))

	stdin := bufio.NewReader(os.Stdin)
	if login == "" {
		login = prompt(stdin, "Enter login: ")
	}
	if password == "" {
		password = prompt(stdin, "Enter password: ")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := client.Options{HandshakeTimeout: 10 * time.Second, Origin: origin, Logger: logger}

	var (
		c   *client.Client
		err error
	)
	if wsURL != "" {
		c, err = client.DialWebSocket(ctx, wsURL, login, password, opts)
	} else {
		c, err = client.Dial(ctx, addr, login, password, opts)
	}
	if err != nil {
		return err
	}
	defer c.Close()

	chat, err := ui.New(c)
	if err != nil {
		return err
	}
	defer chat.Close()

	inbound := make(chan protocol.Frame)
	go func() {
		defer close(inbound)
		if err := c.Run(ctx, inbound); err != nil {
			logger.Warn("connection closed", "error", err)
		}
	}()

	return chat.Run(ctx, inbound)
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}
