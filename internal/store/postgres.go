package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/secret-hitler-backend/internal/engine"
)

type gameRecord struct {
	Code      string `gorm:"primaryKey;size:16"`
	Version   int    `gorm:"not null"`
	Phase     string `gorm:"size:64;index"`
	Started   bool   `gorm:"not null;default:false"`
	State     []byte `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (gameRecord) TableName() string { return "game_snapshots" }

type Postgres struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenPostgres connects through gorm's pgx driver and migrates the
// snapshot table.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	p := &Postgres{db: db, logger: logger}
	if err := db.WithContext(ctx).AutoMigrate(&gameRecord{}); err != nil {
		return nil, multierr.Append(fmt.Errorf("migrating snapshots: %w", err), p.Close())
	}
	logger.Info("snapshot store ready", zap.String("driver", "postgres"))
	return p, nil
}

func (p *Postgres) Save(ctx context.Context, rec Record) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	// Upsert, but never let an older version overwrite a newer one.
	err = p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "phase", "started", "state", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "game_snapshots.version <= excluded.version"},
		}},
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving snapshot %s: %w", rec.Code, err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, code string) (Record, error) {
	var row gameRecord
	err := p.db.WithContext(ctx).First(&row, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("loading snapshot %s: %w", code, err)
	}
	return fromRow(row)
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(rec Record) (gameRecord, error) {
	state, err := json.Marshal(rec.Game)
	if err != nil {
		return gameRecord{}, fmt.Errorf("encoding snapshot %s: %w", rec.Code, err)
	}
	return gameRecord{
		Code:    rec.Code,
		Version: rec.Version,
		Phase:   string(rec.Game.Phase.Name),
		Started: rec.Game.IsStarted,
		State:   state,
	}, nil
}

func fromRow(row gameRecord) (Record, error) {
	var g engine.Game
	if err := json.Unmarshal(row.State, &g); err != nil {
		return Record{}, fmt.Errorf("decoding snapshot %s: %w", row.Code, err)
	}
	return Record{Code: row.Code, Version: row.Version, Game: g}, nil
}
