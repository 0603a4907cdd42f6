package models

import (
	"time"

	"gorm.io/datatypes"
)

// Debate speichert die generierte Mehrperspektiven-Debatte zu einem Topic.
// Der Unique-Index auf TopicID ist die Verteidigungslinie gegen das
// Check-then-Insert-Race der On-Demand-Generierung.
type Debate struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	TopicID   uint           `json:"topic_id" gorm:"uniqueIndex;not null"`
	Content   datatypes.JSON `json:"content" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Debate) TableName() string {
	return "debates"
}
