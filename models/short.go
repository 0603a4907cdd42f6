package models

import "gorm.io/datatypes"

// Short ist das Kurzvideo-Skript zu einem Topic (maximal eines pro Topic).
// Content hält das strukturierte Payload {title, script, hashtags, image_url}.
type Short struct {
	ID      uint           `json:"id" gorm:"primaryKey"`
	TopicID uint           `json:"topic_id" gorm:"uniqueIndex;not null"`
	Content datatypes.JSON `json:"content" gorm:"not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Short) TableName() string {
	return "shorts"
}
