// Package stats records tournament outcomes to the leaderboard store.
// Recording is fire-and-forget: failures are logged and never block or
// surface to the session.
package stats

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Outcome struct {
	ID            uint   `gorm:"primaryKey"`
	ParticipantID string `gorm:"index"`
	Name          string
	Won           bool
	TimeTakenMS   int64
	Mistakes      int
	RoundScore    int
	Rounds        int
	CreatedAt     time.Time
}

type Sink interface {
	RecordOutcome(ctx context.Context, o Outcome)
}

// DBSink persists outcomes on postgres via gorm.
type DBSink struct {
	db  *gorm.DB
	log *zap.Logger
}

func OpenDBSink(dsn string, log *zap.Logger) (*DBSink, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Outcome{}); err != nil {
		return nil, err
	}
	return &DBSink{db: db, log: log}, nil
}

func (s *DBSink) RecordOutcome(ctx context.Context, o Outcome) {
	go func() {
		// Detach from the caller's context so a closing session doesn't
		// cancel the write mid-flight.
		wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.db.WithContext(wctx).Create(&o).Error; err != nil {
			s.log.Warn("failed to record outcome",
				zap.String("participant", o.ParticipantID),
				zap.Error(err))
		}
	}()
}

// NopSink discards outcomes; used when no leaderboard store is configured.
type NopSink struct{}

func (NopSink) RecordOutcome(context.Context, Outcome) {}
