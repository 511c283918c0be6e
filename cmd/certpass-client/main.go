package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const usage = `usage: certpass-client <command> [args]

commands:
  verify <certificate_id>   verify a certificate through the API
  info                      show the calling key's permissions and remaining quota

configuration is read from client.yml or the environment
(SERVER_BASE_URL, CERTPASS_API_KEY, CERTPASS_API_SECRET).`

func main() {
	if err := InitConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	initLogger(config.Log.Level)

	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s", usage)
	}

	client := NewClient(config.Server)

	var (
		status int
		body   []byte
		err    error
	)
	switch args[0] {
	case "verify":
		if len(args) != 2 {
			return fmt.Errorf("verify requires exactly one certificate id")
		}
		status, body, err = client.Verify(ctx, args[1])
	case "info":
		status, body, err = client.Info(ctx)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
	if err != nil {
		return err
	}

	slog.Debug("Response received", "status", status)
	printJSON(body)
	if status >= 400 {
		return fmt.Errorf("request failed (HTTP %d)", status)
	}
	return nil
}

func printJSON(body []byte) {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		fmt.Println(strings.TrimSpace(string(body)))
		return
	}
	fmt.Println(out.String())
}

func initLogger(logLevel string) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "ERROR":
		level = slog.LevelError
	case "INFO":
		level = slog.LevelInfo
	case "DEBUG":
		level = slog.LevelDebug
	default:
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
