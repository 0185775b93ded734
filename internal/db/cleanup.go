package db

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultMaintenanceInterval = 1 * time.Hour
)

// MaintenanceService periodically folds the WAL back into the main database
// file and refreshes query planner statistics.
type MaintenanceService struct {
	db       *DB
	interval time.Duration
}

func NewMaintenanceService(db *DB, interval time.Duration) *MaintenanceService {
	if interval <= 0 {
		interval = DefaultMaintenanceInterval
	}
	return &MaintenanceService{
		db:       db,
		interval: interval,
	}
}

func (s *MaintenanceService) Start(ctx context.Context) {
	slog.Info("starting storage maintenance service", "component", "maintenance", "interval", s.interval)

	s.runMaintenance(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping storage maintenance service", "component", "maintenance")
			return
		case <-ticker.C:
			s.runMaintenance(ctx)
		}
	}
}

func (s *MaintenanceService) runMaintenance(ctx context.Context) {
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		slog.Error("error checkpointing WAL", "component", "maintenance", "error", err)
	}

	if _, err := s.db.ExecContext(ctx, `PRAGMA optimize`); err != nil {
		slog.Error("error optimizing database", "component", "maintenance", "error", err)
	}
}
