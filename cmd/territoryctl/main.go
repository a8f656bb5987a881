// Command territoryctl is a thin HTTP client for territoryd: trigger a
// build run, check its status, apply database migrations, or probe health.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fieldcompass/territory-engine/internal/platform/database"
	"github.com/fieldcompass/territory-engine/internal/platform/migrations"
	pkgversion "github.com/fieldcompass/territory-engine/pkg/version"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	defaultAddr := getenv("TERRITORY_ADDR", "http://localhost:8080")
	defaultToken := os.Getenv("TERRITORY_TOKEN")

	root := flag.NewFlagSet("territoryctl", flag.ContinueOnError)
	root.SetOutput(io.Discard)
	addrFlag := root.String("addr", defaultAddr, "territoryd base URL (env TERRITORY_ADDR)")
	tokenFlag := root.String("token", defaultToken, "bearer token for authentication (env TERRITORY_TOKEN)")
	timeoutFlag := root.Duration("timeout", 30*time.Second, "HTTP request timeout")
	showVersion := root.Bool("version", false, "print territoryctl build information and exit")
	if err := root.Parse(args); err != nil {
		return usageError(err)
	}

	remaining := root.Args()
	if *showVersion {
		fmt.Println(pkgversion.FullVersion())
		return nil
	}
	if len(remaining) == 0 {
		return usageError(errors.New("no command specified"))
	}

	client := &apiClient{
		baseURL: strings.TrimRight(*addrFlag, "/"),
		token:   strings.TrimSpace(*tokenFlag),
		http:    &http.Client{Timeout: *timeoutFlag},
	}

	switch remaining[0] {
	case "run":
		return handleRun(ctx, client, remaining[1:])
	case "status":
		return handleStatus(ctx, client, remaining[1:])
	case "health":
		return handleHealth(ctx, client)
	case "migrate":
		return handleMigrate(ctx, remaining[1:])
	case "version":
		fmt.Println(pkgversion.FullVersion())
		return nil
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		return usageError(fmt.Errorf("unknown command %q", remaining[0]))
	}
}

func usageError(err error) error {
	printUsage()
	return err
}

func printUsage() {
	fmt.Println(`territoryctl: control plane for the territory assignment engine

Usage:
  territoryctl [global flags] <command> [flags]

Global Flags:
  --addr     territoryd base URL (env TERRITORY_ADDR, default http://localhost:8080)
  --token    API bearer token (env TERRITORY_TOKEN)
  --timeout  HTTP timeout (default 30s)
  --version  print CLI build information and exit

Commands:
  run <build-id> [--model=waterfall|relaxed] [--solver-mode=browser|cloud]
                                                 trigger an assignment run
  status <build-id>                             fetch the last run's outcome
  health                                        probe /healthz
  migrate --dsn=<postgres-dsn>                  apply embedded schema migrations
  version                                        print CLI version`)
}

func handleRun(ctx context.Context, c *apiClient, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	model := fs.String("model", "", "optimization model override (waterfall or relaxed)")
	solverMode := fs.String("solver-mode", "", "solver dispatch override (browser or cloud)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return errors.New("usage: territoryctl run <build-id> [--model=...] [--solver-mode=...]")
	}

	payload := map[string]any{}
	if m := normalizeModel(*model); m != "" {
		payload["model"] = m
	}
	if strings.TrimSpace(*solverMode) != "" {
		payload["solver_mode"] = strings.TrimSpace(*solverMode)
	}
	if len(payload) == 0 {
		payload = nil
	}

	data, err := c.request(ctx, http.MethodPost, "/builds/"+rest[0]+"/run", payload)
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

// normalizeModel accepts the short form operators type on the command line
// and expands it to the wire value the service's validation expects.
func normalizeModel(model string) string {
	switch strings.TrimSpace(model) {
	case "relaxed":
		return "relaxed_optimization"
	case "":
		return ""
	default:
		return model
	}
}

func handleStatus(ctx context.Context, c *apiClient, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: territoryctl status <build-id>")
	}
	data, err := c.request(ctx, http.MethodGet, "/builds/"+args[0], nil)
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

func handleHealth(ctx context.Context, c *apiClient) error {
	data, err := c.request(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

// handleMigrate talks directly to Postgres rather than through territoryd,
// so operators can apply migrations before the service is ever started.
func handleMigrate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dsn := fs.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN (env DATABASE_URL)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*dsn) == "" {
		return errors.New("--dsn or DATABASE_URL is required")
	}

	db, err := database.Open(ctx, *dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	fmt.Println("migrations applied")
	return nil
}

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *apiClient) request(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: %s (status %d)", method, path, strings.TrimSpace(string(data)), resp.StatusCode)
	}
	return data, nil
}

func prettyPrint(data []byte) {
	if len(data) == 0 {
		fmt.Println("(empty)")
		return
	}
	var dst bytes.Buffer
	if err := json.Indent(&dst, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(dst.String())
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
