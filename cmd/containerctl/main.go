// cmd/containerctl/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/FairForge/containerdispatch/internal/api"
	"github.com/FairForge/containerdispatch/internal/codec"
	"github.com/FairForge/containerdispatch/internal/config"
	"github.com/FairForge/containerdispatch/internal/crypto"
	"github.com/FairForge/containerdispatch/internal/dispatch"
	"github.com/FairForge/containerdispatch/internal/logging"
	"github.com/FairForge/containerdispatch/internal/receiver"
	"github.com/FairForge/containerdispatch/internal/request"
	"github.com/FairForge/containerdispatch/internal/transport"
	"go.uber.org/zap"
)

const usage = `usage: containerctl <command> [flags]

commands:
  send     build, encode and deliver one container request
  keygen   write a new 256-bit key file
  serve    run the local agent API
  receive  run the reference receiver on POST /execute
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "send":
		err = runSend(args[1:], stdout, stderr)
	case "keygen":
		err = runKeygen(args[1:], stdout, stderr)
	case "serve":
		err = runServe(args[1:], stderr)
	case "receive":
		err = runReceive(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	var exit exitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exit):
		return int(exit)
	case errors.Is(err, flag.ErrHelp):
		return 2
	default:
		fmt.Fprintf(stderr, "containerctl %s: %v\n", args[0], err)
		return 1
	}
}

// exitError carries an exit status once the failure has been reported
type exitError int

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

// setup loads config (file, then environment) and builds the logger
func setup(path string, stderr io.Writer) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	config.LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewLogger(&logging.LoggerConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: stderr,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", config.GetEnvOrDefault("CONTAINERCTL_CONFIG", config.DefaultPath()), "config file")
}

func runSend(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := configFlag(fs)

	var fields request.Fields
	fs.StringVar(&fields.Runtime, "runtime", "docker", "docker, podman, docker-api or podman-api")
	fs.StringVar(&fields.Operation, "operation", "", "create, start, stop, restart, remove or available")
	fs.StringVar(&fields.ContainerName, "name", "", "container name")
	fs.StringVar(&fields.CPUs, "cpus", "", "cpu limit, e.g. 0.5")
	fs.StringVar(&fields.Memory, "memory", "", "memory limit in megabytes")
	fs.StringVar(&fields.PidsLimit, "pids", "", "pids limit")
	fs.StringVar(&fields.RestartPolicy, "restart", "no", "no, on-failure, always or unless-stopped")
	fs.StringVar(&fields.ImageName, "image", "", "image name")
	kindName := fs.String("transport", "", "rest, mqtt, mqueue or dbus (default from config)")
	format := fs.String("format", "", "json or proto (default from config)")
	encryption := fs.String("encrypt", "", "none, aes256gcm or chacha20poly1305 (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := setup(*cfgPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if *kindName == "" {
		*kindName = cfg.Dispatch.Transport
	}
	if *format == "" {
		*format = cfg.Dispatch.Format
	}
	if *encryption == "" {
		*encryption = cfg.Dispatch.Encryption
	}
	kind, err := transport.ParseKind(*kindName)
	if err != nil {
		return err
	}
	target, err := cfg.Target(kind)
	if err != nil {
		return err
	}
	framing, err := dispatch.ParseFraming(*format, *encryption)
	if err != nil {
		return err
	}

	box := crypto.NewBox(crypto.NewKeyStore(cfg.KeyPaths(), logger))
	dispatcher := dispatch.New(cfg.DispatchOptions(nil), logger)
	pipeline := dispatch.NewPipeline(box, dispatcher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := pipeline.Send(ctx, dispatch.Order{Fields: fields, Framing: framing, Target: target})

	out := map[string]interface{}{
		"request_id": res.RequestID,
		"state":      res.State,
		"transport":  res.Transport,
		"duration":   res.Duration.String(),
	}
	if res.Delivered() {
		out["ack"] = res.Ack
	} else {
		out["kind"] = res.Kind()
		out["reason"] = res.Reason()
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)

	if !res.Delivered() {
		return exitError(1)
	}
	return nil
}

func runKeygen(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", "", "key file to create (prints the key when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *out == "" {
		key, err := crypto.GenerateKeyHex()
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, key)
		return nil
	}
	if err := crypto.WriteKeyFile(*out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", *out)
	return nil
}

func runServe(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := configFlag(fs)
	listen := fs.String("listen", "", "listen address (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := setup(*cfgPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if *listen != "" {
		cfg.Server.ListenAddr = *listen
	}

	keys := crypto.NewKeyStore(cfg.KeyPaths(), logger)
	if err := preloadConfigured(cfg, keys); err != nil {
		return err
	}

	metrics := dispatch.NewMetrics()
	dispatcher := dispatch.New(cfg.DispatchOptions(metrics), logger)
	pipeline := dispatch.NewPipeline(crypto.NewBox(keys), dispatcher, logger)
	return serveUntilSignal(api.NewServer(cfg, pipeline, metrics, logger), logger)
}

func runReceive(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("receive", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := configFlag(fs)
	listen := fs.String("listen", "", "listen address (default from config)")
	format := fs.String("format", "", "expected payload format (default from config)")
	encryption := fs.String("encrypt", "", "expected envelope algorithm (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := setup(*cfgPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if *listen != "" {
		cfg.Server.ReceiverAddr = *listen
	}
	if *format != "" {
		cfg.Dispatch.Format = *format
	}
	if *encryption != "" {
		cfg.Dispatch.Encryption = *encryption
	}

	framing, err := cfg.Framing()
	if err != nil {
		return err
	}
	keys := crypto.NewKeyStore(cfg.KeyPaths(), logger)
	if err := preloadConfigured(cfg, keys); err != nil {
		return err
	}

	decoder := receiver.Decoder{Box: crypto.NewBox(keys), Format: framing.Format, Algorithm: framing.Algorithm}
	var mu sync.Mutex
	echo := func(_ context.Context, req request.ContainerRequest) error {
		payload, err := codec.Encode(req, codec.FormatJSON)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		_, err = fmt.Fprintf(stdout, "%s\n", payload.Bytes())
		return err
	}

	return serveUntilSignal(receiver.NewServer(cfg.Server.ReceiverAddr, decoder, echo, logger), logger)
}

// preloadConfigured reads the key for the configured algorithm up front so
// a bad key file fails at startup rather than on the first send
func preloadConfigured(cfg *config.Config, keys *crypto.KeyStore) error {
	framing, err := cfg.Framing()
	if err != nil {
		return err
	}
	if !framing.Algorithm.Enabled() {
		return nil
	}
	return keys.Preload(framing.Algorithm)
}

type server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

func serveUntilSignal(s server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		return err
	}
	return nil
}
