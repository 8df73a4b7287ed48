package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/promotion/posecore/internal/api"
	"github.com/promotion/posecore/internal/config"
	"github.com/promotion/posecore/internal/influx"
	"github.com/promotion/posecore/internal/logging"
	"github.com/promotion/posecore/internal/monitor"
	"github.com/promotion/posecore/internal/otel"
	"github.com/promotion/posecore/internal/storage"
	"github.com/promotion/posecore/internal/storage/memory"
)

// ServiceName names log files and telemetry.
const ServiceName = "posecore"

// StatusFileName is written to the logs directory when the monitor is enabled.
const StatusFileName = "status.json"

const (
	influxConnectTimeout = 5 * time.Second
	healthcheckTimeout   = 5 * time.Second
	flushTimeout         = 5 * time.Second
)

// Bootstrap builds a fully wired engine from the configuration in
// configDir: logging with optional GELF and OTel outputs, the configured
// storage backend, the optional InfluxDB sink and every persisted reference,
// which is loaded in the background. A missing config file leaves the
// defaults in effect.
func Bootstrap(configDir string, listener SessionResultListener) (*Engine, error) {
	configErr := config.Load(configDir)

	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	started := time.Now()
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir: %w", err)
	}
	logFile, err := os.OpenFile(logging.LogFilePath(logsDir, ServiceName, started), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	closers = append(closers, logFile.Close)

	otelCfg := config.GetOTelConfig()
	var otelWriter io.Writer
	if otelCfg.Enabled {
		otelFile, err := os.OpenFile(logging.LogFilePath(logsDir, ServiceName+".otel", started), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to open OTel log file: %w", err)
		}
		closers = append(closers, otelFile.Close)
		otelWriter = otelFile
	}
	provider, err := otel.New(otelCfg, otelWriter)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to set up OTel: %w", err)
	}
	closers = append(closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		return provider.Shutdown(ctx)
	})

	logs := logging.NewSlogManager()
	var eng *Engine
	logOpts := []logging.Option{
		logging.WithContext(func() []slog.Attr {
			if eng == nil {
				return nil
			}
			info := eng.session.Current()
			return []slog.Attr{
				slog.String("sessionState", info.State.String()),
				slog.Uint64("epoch", info.Epoch),
			}
		}),
	}
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGELFWriter(gl.Address)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to connect to Graylog: %w", err)
		}
		closers = append(closers, w.Close)
		logOpts = append(logOpts, logging.WithGELF(w))
	}
	logs.Setup(logFile, config.GetString("logLevel"), provider.LoggerProvider(), logOpts...)
	log := logs.Logger()
	closers = append(closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		return logs.Flush(ctx)
	})
	if configErr != nil {
		log.Warn("Using default configuration", "dir", configDir, "error", configErr)
	}

	storageCfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(storageCfg, logs)
	if err != nil {
		closeAll()
		return nil, err
	}
	if err := backend.Init(); err != nil {
		log.Error("Failed to initialize storage backend, falling back to memory", "type", storageCfg.Type, "error", err)
		backend = memory.New(storageCfg.Memory)
		if err := backend.Init(); err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to initialize memory storage: %w", err)
		}
	}

	opts := OptionsFromConfig()
	opts.Backend = backend
	opts.Logger = log
	opts.DispatcherLogger = logging.NewDispatcherLogger(logs.Zerolog("dispatcher"))

	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		m := influx.NewManager(logs.Zerolog("influx"), influxCfg)
		ctx, cancel := context.WithTimeout(context.Background(), influxConnectTimeout)
		err := m.Connect(ctx)
		cancel()
		if err != nil {
			log.Error("Failed to connect to InfluxDB", "error", err)
			_ = m.Close()
		} else {
			opts.Sink = m
		}
	}

	if uploadCfg := config.GetUploadConfig(); uploadCfg.Enabled {
		client := api.New(uploadCfg.ServerURL, uploadCfg.APIKey)
		ctx, cancel := context.WithTimeout(context.Background(), healthcheckTimeout)
		if err := client.Healthcheck(ctx); err != nil {
			log.Warn("Coaching server unreachable, uploads may fail", "url", uploadCfg.ServerURL, "error", err)
		}
		cancel()
		opts.Uploader = client
	}

	eng, err = New(opts, listener)
	if err != nil {
		_ = backend.Close()
		closeAll()
		return nil, err
	}
	if monCfg := config.GetMonitorConfig(); monCfg.Enabled {
		mon := monitor.NewService(monitor.Dependencies{
			Source:     eng.Status,
			LogManager: logs,
			StatusFile: filepath.Join(logsDir, StatusFileName),
			Interval:   monCfg.Interval,
		})
		if err := mon.Start(); err != nil {
			log.Error("Failed to start status monitor", "error", err)
		} else {
			closers = append(closers, func() error {
				mon.Stop()
				return nil
			})
		}
	}
	eng.closers = closers

	eng.tasks.Add(1)
	go func() {
		defer eng.tasks.Done()
		if _, err := eng.LoadReferences(eng.ctx); err != nil {
			log.Warn("Some references could not be loaded", "error", err)
		}
	}()

	log.Info("Engine started", "storage", storageCfg.Type, "references", config.GetReferencesConfig().Dir)
	return eng, nil
}
