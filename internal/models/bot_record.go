package models

import "time"

// BotRecord is the persisted form of a bot: its name plus the serialized
// BotConfig document. One row per bot; renames move the row key.
type BotRecord struct {
	Name       string    `gorm:"primaryKey;column:name"`
	ConfigData string    `gorm:"column:config_data"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (BotRecord) TableName() string {
	return "bots"
}
