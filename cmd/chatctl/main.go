// Package main is the chatctl entry point. It loads configuration, builds
// the recovery facade around the chat-completion client, runs the prompt
// (one-shot or interactive), and optionally serves Prometheus metrics.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	"github.com/jstrand/chatctl/internal/circuitbreaker"
	"github.com/jstrand/chatctl/internal/config"
	"github.com/jstrand/chatctl/internal/logging"
	"github.com/jstrand/chatctl/internal/metrics"
	"github.com/jstrand/chatctl/internal/provider"
	"github.com/jstrand/chatctl/internal/recovery"
	"github.com/jstrand/chatctl/internal/strategy"
)

func main() {
	configPath := flag.String("config", "configs/chatctl.yaml", "path to configuration file")
	prompt := flag.String("prompt", "", "prompt to send; falls back to positional args, then stdin")
	strategyName := flag.String("strategy", "", "recovery strategy to use (default from config)")
	breakerName := flag.String("breaker", "provider", "circuit breaker guarding the provider")
	showStats := flag.Bool("stats", false, "print recovery statistics after the run")
	flag.Parse()

	// .env is optional; real environments set variables directly.
	godotenv.Load() //nolint:errcheck

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatctl: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatctl: %v\n", err)
		os.Exit(1)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "message", w)
	}

	logger.Info("configuration loaded",
		"provider", cfg.Provider.BaseURL,
		"model", cfg.Provider.Model,
		"strategies", len(cfg.Strategies),
		"breakers", len(cfg.Breakers),
		"metrics_enabled", cfg.Metrics.IsEnabled(),
	)

	if cfg.Metrics.IsEnabled() {
		metrics.Init()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional metrics listener.
	var metricsSrv *http.Server
	if cfg.Metrics.IsEnabled() && cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			metricsSrv.Shutdown(sctx) //nolint:errcheck
		}()
	}

	client := provider.New(cfg.Provider, logger)

	mgr := recovery.NewManager(logger, recovery.WithLedgerCapacity(cfg.Recovery.LedgerCapacity))
	if err := registerStrategies(mgr, cfg.Strategies); err != nil {
		logger.Error("failed to build strategies", "error", err)
		os.Exit(1)
	}
	for _, b := range cfg.Breakers {
		mgr.CreateBreaker(b.Name, circuitbreaker.Settings{
			FailureThreshold: b.FailureThreshold,
			SuccessThreshold: b.SuccessThreshold,
			Cooldown:         b.Cooldown,
		})
	}
	guard := mgr.CreateBreaker(*breakerName, circuitbreaker.Settings{})

	// Hot reload: breaker thresholds and the provider rate limit can change
	// without restarting an interactive session.
	reloader := config.NewReloader(*configPath, cfg, logger)
	reloader.Start()
	defer reloader.Stop()
	reloader.OnReload(func(newCfg *config.Config) {
		client.UpdateRateLimit(newCfg.Provider.RequestsPerSecond, newCfg.Provider.BurstSize)
		for _, b := range newCfg.Breakers {
			if live, ok := mgr.Breakers().Get(b.Name); ok {
				live.UpdateSettings(circuitbreaker.Settings{
					FailureThreshold: b.FailureThreshold,
					SuccessThreshold: b.SuccessThreshold,
					Cooldown:         b.Cooldown,
				})
			}
		}
	})

	chosen := *strategyName
	if chosen == "" {
		chosen = cfg.Recovery.DefaultStrategy
	}

	run := runner{
		mgr:      mgr,
		guard:    guard,
		client:   client,
		strategy: chosen,
		logger:   logger,
	}

	exitCode := 0
	switch {
	case firstPrompt(*prompt, flag.Args()) != "":
		if err := run.once(ctx, firstPrompt(*prompt, flag.Args())); err != nil {
			exitCode = 1
		}
	case isatty.IsTerminal(os.Stdin.Fd()):
		run.interactive(ctx)
	default:
		piped, err := io.ReadAll(os.Stdin)
		if err != nil || len(strings.TrimSpace(string(piped))) == 0 {
			fmt.Fprintln(os.Stderr, "chatctl: no prompt given")
			exitCode = 2
			break
		}
		if err := run.once(ctx, strings.TrimSpace(string(piped))); err != nil {
			exitCode = 1
		}
	}

	if *showStats {
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		enc.Encode(mgr.Stats()) //nolint:errcheck
	}

	os.Exit(exitCode)
}

// firstPrompt picks the prompt from the flag or the positional args.
func firstPrompt(flagValue string, args []string) string {
	if flagValue != "" {
		return flagValue
	}
	return strings.TrimSpace(strings.Join(args, " "))
}

// runner executes prompts through the recovery facade.
type runner struct {
	mgr      *recovery.Manager
	guard    *recovery.BreakerHandle
	client   *provider.Client
	strategy string
	logger   *slog.Logger
}

// complete sends the conversation through strategy + breaker and returns the
// assistant's reply.
func (r *runner) complete(ctx context.Context, messages []provider.Message) (string, error) {
	op := func(ctx context.Context) (any, error) {
		return r.guard.Execute(ctx, func(ctx context.Context) (any, error) {
			return r.client.Complete(ctx, messages)
		}, recovery.WithFunctionName("provider.Complete"))
	}

	v, err := r.mgr.Execute(ctx, r.strategy, op, recovery.WithFunctionName("provider.Complete"))
	if err != nil {
		return "", err
	}
	completion, ok := v.(*provider.Completion)
	if !ok {
		// Fallback strategies may substitute a plain string.
		if s, isString := v.(string); isString {
			return s, nil
		}
		return "", fmt.Errorf("unexpected completion type %T", v)
	}
	return completion.Content, nil
}

// once runs a single prompt and prints the reply to stdout.
func (r *runner) once(ctx context.Context, prompt string) error {
	reply, err := r.complete(ctx, []provider.Message{{Role: "user", Content: prompt}})
	if err != nil {
		r.report(err)
		return err
	}
	fmt.Println(reply)
	return nil
}

// interactive reads prompts line by line, carrying the conversation forward.
func (r *runner) interactive(ctx context.Context) {
	fmt.Fprintln(os.Stderr, "chatctl interactive mode — ctrl-d to exit")

	var messages []provider.Message
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(os.Stderr)
			return
		}
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		messages = append(messages, provider.Message{Role: "user", Content: line})
		reply, err := r.complete(ctx, messages)
		if err != nil {
			r.report(err)
			// Drop the failed turn so the next prompt retries cleanly.
			messages = messages[:len(messages)-1]
			continue
		}
		messages = append(messages, provider.Message{Role: "assistant", Content: reply})
		fmt.Println(reply)
	}
}

// report prints a user-facing error line, special-casing an open breaker
// ("dependency is down") versus an operation failure.
func (r *runner) report(err error) {
	switch {
	case circuitbreaker.IsOpen(err):
		fmt.Fprintln(os.Stderr, "chatctl: provider circuit is open; cooling down, try again shortly")
	case strategy.IsTimeout(err):
		fmt.Fprintln(os.Stderr, "chatctl: request timed out")
	default:
		fmt.Fprintf(os.Stderr, "chatctl: %v\n", err)
	}
	r.logger.Error("prompt failed", "error", err)
}

// registerStrategies builds strategy instances from config and registers
// them with the manager.
func registerStrategies(mgr *recovery.Manager, configs []config.StrategyConfig) error {
	for _, sc := range configs {
		var s strategy.Strategy
		switch sc.Type {
		case config.StrategyExponentialBackoff:
			s = strategy.NewExponentialBackoff(sc.Name, sc.MaxRetries, time.Duration(sc.InitialDelayMs)*time.Millisecond)
		case config.StrategyLinearBackoff:
			s = strategy.NewLinearBackoff(sc.Name, sc.MaxRetries, time.Duration(sc.DelayMs)*time.Millisecond)
		case config.StrategyFallback:
			s = strategy.NewFallbackValue(sc.Name, sc.FallbackText)
		case config.StrategyTimeout:
			s = strategy.NewTimeout(sc.Name, time.Duration(sc.TimeoutMs)*time.Millisecond)
		default:
			return fmt.Errorf("unknown strategy type %q", sc.Type)
		}
		mgr.RegisterStrategy(s)
	}
	return nil
}
