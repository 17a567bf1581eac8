// sqlbridge serves named SQLite databases to remote callers.
//
// Every database lives in one storage directory and is reached by name.
// Commands arrive over HTTP, WebSocket or MQTT and run through a single
// dispatcher, so a write made through one transport is announced on all of
// them.
//
// Usage:
//
//	sqlbridge                           run the server
//	sqlbridge token [-scope read] <sub> print a signed access token
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/api"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/auth"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/command"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/mqttrpc"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnv         = "SQLBRIDGE_CONFIG"

	healthCheckTimeout = 5 * time.Second
)

var errNoSecret = errors.New("security.jwt.secret is not set; tokens cannot be issued")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "token" {
		err = runToken(os.Args[2:], os.Stdout)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts every enabled component and blocks until ctx is cancelled.
// Components are shut down in reverse start order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting sqlbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	registry, err := session.NewRegistry(session.Config{
		Dir:         cfg.Storage.Dir,
		Driver:      cfg.Storage.Driver,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating session registry: %w", err)
	}
	registry.SetLogger(log.Component("session"))
	defer func() {
		log.Info("closing open databases", "count", len(registry.Names()))
		if closeErr := registry.Shutdown(); closeErr != nil {
			log.Error("error closing databases", "error", closeErr)
		}
	}()
	log.Info("session registry ready", "dir", registry.Dir(), "driver", cfg.Storage.Driver)

	dispatcher := command.NewDispatcher(registry)
	dispatcher.SetLogger(log.Component("command"))

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to influxdb: %w", err)
		}
		defer func() {
			log.Info("closing influxdb connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing influxdb", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(writeErr error) {
			log.Warn("influxdb write failed", "error", writeErr)
		})
		dispatcher.SetRecorder(influxClient)
		log.Info("influxdb connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to mqtt: %w", err)
		}
		defer func() {
			log.Info("closing mqtt connection")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing mqtt", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("mqtt reconnected")
		})
		mqttClient.SetOnDisconnect(func(discErr error) {
			log.Warn("mqtt disconnected", "error", discErr)
		})

		responder, rpcErr := mqttrpc.New(mqttrpc.Options{
			Client:     mqttClient,
			Dispatcher: dispatcher,
			Topics:     mqttClient.Topics(),
			QoS:        mqttClient.QoS(),
			Logger:     log.Component("mqttrpc"),
		})
		if rpcErr != nil {
			return fmt.Errorf("creating mqtt responder: %w", rpcErr)
		}
		if startErr := responder.Start(); startErr != nil {
			return fmt.Errorf("starting mqtt responder: %w", startErr)
		}
		defer func() {
			log.Info("stopping mqtt responder")
			responder.Stop()
		}()
		dispatcher.AddNotifier(responder)
		log.Info("mqtt responder started", "requests", mqttClient.Topics().AllRequests())
	}

	var server *api.Server
	if cfg.API.Enabled {
		server, err = api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Security:   cfg.Security,
			Logger:     log.Component("api"),
			Dispatcher: dispatcher,
			Sessions:   registry,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating api server: %w", err)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting api server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing api server", "error", closeErr)
			}
		}()
		if cfg.Security.JWT.Secret == "" {
			log.Warn("security.jwt.secret is empty; the API accepts unauthenticated requests")
		}
	}

	hcCtx, hcCancel := context.WithTimeout(ctx, healthCheckTimeout)
	if hcErr := healthCheck(hcCtx, mqttClient, influxClient, server); hcErr != nil {
		log.Warn("initial health check failed", "error", hcErr)
	}
	hcCancel()

	log.Info("sqlbridge started",
		"api", cfg.API.Enabled,
		"mqtt", cfg.MQTT.Enabled,
		"influxdb", cfg.InfluxDB.Enabled,
	)

	<-ctx.Done()
	log.Info("shutdown signal received")

	return nil
}

// runToken prints a signed access token for the subject named in args.
//
//	sqlbridge token [-scope read|write] [-ttl minutes] <subject>
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	scopeFlag := fs.String("scope", string(auth.ScopeWrite), "token scope: read or write")
	ttlFlag := fs.Int("ttl", 0, "lifetime in minutes (0 uses security.jwt.access_token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: sqlbridge token [-scope read|write] [-ttl minutes] <subject>")
	}

	scope, err := auth.ParseScope(*scopeFlag)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return errNoSecret
	}

	ttl := *ttlFlag
	if ttl <= 0 {
		ttl = cfg.Security.JWT.AccessTokenTTL
	}

	token, err := auth.GenerateAccessToken(fs.Arg(0), scope, cfg.Security.JWT.Secret, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// loadConfig reads the config file at path. When path is the default and
// no such file exists, the built-in defaults are used instead.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		return config.Default()
	}
	return nil, err
}

// getConfigPath returns the configuration file path.
// Uses SQLBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies every enabled component. Nil components are skipped.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client, server *api.Server) error {
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if server != nil {
		if err := server.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	return nil
}
