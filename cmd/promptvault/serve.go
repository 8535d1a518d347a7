package main

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/promptvault/internal/config"
	"github.com/thebtf/promptvault/internal/watcher"
	"github.com/thebtf/promptvault/internal/worker"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for {
				if port > 0 {
					opts.cfg.WorkerPort = port
				}
				restart, err := serve(cmd.Context(), opts.cfg)
				if err != nil || !restart {
					return err
				}
				log.Info().Msg("Settings changed, restarting worker")
				if err := opts.load(); err != nil {
					return err
				}
			}
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default from settings)")
	return cmd
}

// serve runs the worker until ctx ends or the settings file changes. It
// reports whether the caller should start again with fresh settings.
func serve(parent context.Context, cfg *config.Config) (bool, error) {
	a, err := newApp(cfg)
	if err != nil {
		return false, err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	svc := worker.NewService(Version, cfg, a.pipeline, a.library, a.metrics)

	var restart atomic.Bool
	watchers := startWatchers(cfg, svc, func() {
		restart.Store(true)
		cancel()
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		for _, w := range watchers {
			_ = w.Stop()
		}
		return nil
	})

	err = g.Wait()
	return restart.Load() && parent.Err() == nil, err
}

// startWatchers reloads cleaning rules in place and asks for a restart when
// the settings file changes.
func startWatchers(cfg *config.Config, svc *worker.Service, onSettingsChange func()) []*watcher.Watcher {
	var out []*watcher.Watcher

	rulesPath := cfg.RulesPath
	rulesWatcher, err := watcher.New(rulesPath, func(op watcher.Op) {
		if err := svc.ReloadRules(rulesPath); err != nil {
			log.Error().Err(err).Str("path", rulesPath).Msg("Keeping previous cleaning rules")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create rules watcher")
	} else if err := rulesWatcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start rules watcher")
	} else {
		log.Info().Str("path", rulesPath).Msg("Rules file watcher started")
		out = append(out, rulesWatcher)
	}

	settingsPath := config.SettingsPath()
	settingsWatcher, err := watcher.New(settingsPath, func(op watcher.Op) {
		if op != watcher.Changed {
			return
		}
		log.Warn().Str("path", settingsPath).Msg("Config file changed")
		onSettingsChange()
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher")
	} else if err := settingsWatcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start config watcher")
	} else {
		log.Info().Str("path", settingsPath).Msg("Config file watcher started")
		out = append(out, settingsWatcher)
	}
	return out
}
