package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/roman-kulish/balloon-telemetry/internal/bus"
	"github.com/roman-kulish/balloon-telemetry/internal/health"
	"github.com/roman-kulish/balloon-telemetry/internal/replay"
	"github.com/roman-kulish/balloon-telemetry/internal/snapshot"
	"github.com/roman-kulish/balloon-telemetry/internal/station"
	"github.com/roman-kulish/balloon-telemetry/internal/trajectory"
)

const shutdownTimeout = 5 * time.Second

// Run wires the ground station together and blocks until the context
// is cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	events := bus.New(bus.WithLogger(logger))

	// The server is created after the buffer but consumes its flush
	// callback; bind late through the variable.
	var server *station.Server

	buffer := trajectory.New(func(t, expected, actual []float64) {
		if server != nil {
			server.BroadcastChart(t, expected, actual)
		}
	}, trajectory.WithProfile(chartProfile(config.Chart)))

	events.SubscribeTrajectory(buffer.Append)

	player := createPlayer(config.Replay, events, logger)
	defer player.Stop()

	serverOptions := []func(*station.Server){station.WithLogger(logger)}
	if config.Chart.Title != "" {
		serverOptions = append(serverOptions, station.WithChartTitle(config.Chart.Title))
	}
	if config.Snapshots.Directory != "" {
		store, err := snapshot.New(config.Snapshots.Directory)
		if err != nil {
			return fmt.Errorf("failed to create snapshot store: %w", err)
		}
		serverOptions = append(serverOptions, station.WithSnapshots(store))
	}

	server = station.New(events, player, buffer, serverOptions...)
	defer server.Close()

	if config.Health.Enabled {
		options := []func(*health.Monitor){health.WithLogger(logger)}
		if config.Health.Interval > 0 {
			options = append(options, health.WithInterval(time.Duration(config.Health.Interval*float64(time.Second))))
		}

		monitor := health.New(events, options...)
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	if config.Replay.Autostart {
		if err := player.Start(false); err != nil {
			return fmt.Errorf("failed to start replay: %w", err)
		}
		logger.Info("replay started", slog.String("source", config.Replay.Source))
	}

	if !config.Server.Enabled {
		logger.Info("server disabled, replaying headless")
		<-ctx.Done()
		return nil
	}

	httpServer := &http.Server{
		Addr:    config.Server.Listen,
		Handler: server.Handler(),
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", config.Server.Listen))
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	}
}

// createPlayer builds the replay player from configuration.
func createPlayer(config ReplayConfig, events *bus.Bus, logger *slog.Logger) *replay.Player {
	emitter := replay.NewEmitter(events, replay.WithEmitterLogger(logger))

	options := []func(*replay.Player){
		replay.WithLogger(logger),
		replay.WithRealtime(config.Realtime),
		replay.WithLoop(config.Loop),
	}
	if config.Speed > 0 {
		options = append(options, replay.WithSpeed(config.Speed))
	}
	if config.DefaultInterval > 0 {
		options = append(options, replay.WithDefaultInterval(config.Interval()))
	}

	return replay.New(config.Source, emitter, options...)
}

// chartProfile merges the configured chart settings over the
// environment-driven defaults.
func chartProfile(config ChartConfig) trajectory.Profile {
	profile := trajectory.DefaultProfile()

	if config.UpdateEvery > 0 {
		profile.UpdateEvery = config.UpdateEvery
	}
	if config.MaxPoints > 0 {
		profile.MaxPoints = config.MaxPoints
	}
	if config.ShowMarkers != nil {
		profile.ShowMarkers = *config.ShowMarkers
	}
	if config.MarkerSize > 0 {
		profile.MarkerSize = config.MarkerSize
	}

	return profile
}
