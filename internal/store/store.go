// Package store persists bot configurations. Write deliberately reports
// failure as a boolean rather than an error: a failed write marks one
// target's result as failed without aborting processing of the remaining
// targets.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rainadr/service-fleet-commander/internal/models"
	"github.com/rainadr/service-fleet-commander/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the config persistence collaborator consumed by the command
// layer.
type Store interface {
	Write(ctx context.Context, name string, cfg *models.BotConfig) bool
	Read(ctx context.Context, name string) (*models.BotConfig, bool)
	Delete(ctx context.Context, name string) bool
	Rename(ctx context.Context, oldName, newName string) bool
	Load(ctx context.Context) (map[string]*models.BotConfig, error)
}

// GormStore keeps one row per bot in the bots table.
type GormStore struct {
	db  *gorm.DB
	log *logger.CanonicalLogger
}

func NewGormStore(db *gorm.DB, log *logger.CanonicalLogger) *GormStore {
	return &GormStore{db: db, log: log}
}

// Write upserts the serialized configuration for one bot. Failures are
// logged and reported as false, never raised. Computed helper output
// never reaches storage, whatever serialization flags the caller left
// set on the config.
func (s *GormStore) Write(ctx context.Context, name string, cfg *models.BotConfig) bool {
	persisted := cfg.Clone()
	persisted.SerializeAll = false
	persisted.SerializeHelperFields = false

	data, err := json.Marshal(persisted)
	if err != nil {
		s.log.WithBot(name).WithError(err).Error("failed to serialize bot config")
		return false
	}

	record := models.BotRecord{
		Name:       strings.ToLower(name),
		ConfigData: string(data),
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"config_data", "updated_at"}),
	}).Create(&record)
	if result.Error != nil {
		s.log.WithBot(name).WithError(result.Error).Error("failed to persist bot config")
		return false
	}
	return true
}

// Read loads one bot's persisted configuration by name.
func (s *GormStore) Read(ctx context.Context, name string) (*models.BotConfig, bool) {
	var record models.BotRecord
	if err := s.db.WithContext(ctx).First(&record, "name = ?", strings.ToLower(name)).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.WithBot(name).WithError(err).Error("failed to read bot config")
		}
		return nil, false
	}

	cfg := new(models.BotConfig)
	if err := json.Unmarshal([]byte(record.ConfigData), cfg); err != nil {
		s.log.WithBot(name).WithError(err).Error("failed to parse bot config")
		return nil, false
	}
	return cfg, true
}

func (s *GormStore) Delete(ctx context.Context, name string) bool {
	result := s.db.WithContext(ctx).Delete(&models.BotRecord{}, "name = ?", strings.ToLower(name))
	if result.Error != nil {
		s.log.WithBot(name).WithError(result.Error).Error("failed to delete bot config")
		return false
	}
	return result.RowsAffected > 0
}

// Rename moves a bot's row to its new key. The registry holds its lock
// across this call, so the row and the in-memory handle move together.
func (s *GormStore) Rename(ctx context.Context, oldName, newName string) bool {
	result := s.db.WithContext(ctx).Model(&models.BotRecord{}).
		Where("name = ?", strings.ToLower(oldName)).
		Update("name", strings.ToLower(newName))
	if result.Error != nil {
		s.log.WithBot(oldName).WithError(result.Error).Error("failed to rename bot config")
		return false
	}
	return result.RowsAffected > 0
}

// Load reads every persisted configuration, keyed by stored (lowercased)
// name. Rows with unparseable config data are skipped with a log line
// rather than failing the whole boot.
func (s *GormStore) Load(ctx context.Context) (map[string]*models.BotConfig, error) {
	var records []models.BotRecord
	if err := s.db.WithContext(ctx).Order("name").Find(&records).Error; err != nil {
		return nil, err
	}

	out := make(map[string]*models.BotConfig, len(records))
	for _, record := range records {
		cfg := new(models.BotConfig)
		if err := json.Unmarshal([]byte(record.ConfigData), cfg); err != nil {
			s.log.WithBot(record.Name).WithError(err).Error("skipping bot with corrupt config")
			continue
		}
		out[record.Name] = cfg
	}
	return out, nil
}
