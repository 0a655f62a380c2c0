package impl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"warden/config"
	"warden/internal/domain/repository"
	"warden/internal/domain/service"

	"go.uber.org/fx"
)

// RevocationSweeper periodically forgets blacklist entries whose tokens have expired anyway.
type RevocationSweeper struct {
	repo     repository.RevokedTokenRepository
	clock    service.Clock
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type RevocationSweeperParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Repo      repository.RevokedTokenRepository
	Clock     service.Clock
	Config    *config.Config
	Logger    *slog.Logger
}

func NewRevocationSweeper(params RevocationSweeperParams) *RevocationSweeper {
	sweeper := &RevocationSweeper{
		repo:     params.Repo,
		clock:    params.Clock,
		interval: params.Config.Auth.RevocationSweepInterval,
		logger:   params.Logger,
	}

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sweeper.Start()

			return nil
		},
		OnStop: func(context.Context) error {
			sweeper.Stop()

			return nil
		},
	})

	return sweeper
}

func (s *RevocationSweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

func (s *RevocationSweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Sweep runs one cleanup pass.
func (s *RevocationSweeper) Sweep(ctx context.Context) {
	removed, err := s.repo.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("Failed to sweep expired revoked tokens", slog.Any("error", err))
		}

		return
	}
	if removed > 0 {
		s.logger.Debug("Swept expired revoked tokens", slog.Int64("removed", removed))
	}
}
