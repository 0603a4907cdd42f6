package models

import "time"

// Topic ist ein Cluster von Artikeln zu einem Ereignis.
// Wird ausschließlich vom Clustering angelegt; die Summary-Stage
// befüllt Headline, Summary und den verwendeten Quelltext.
type Topic struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	AiNeutralHeadline *string `json:"ai_neutral_headline,omitempty" gorm:"type:text"`
	AiSummary         *string `json:"ai_summary,omitempty" gorm:"type:text"`

	// Konkatenierter Artikeltext, der für die Headline-Generierung
	// verwendet wurde (Audit-Zweck).
	Body *string `json:"body,omitempty" gorm:"type:text"`

	Articles []Article `json:"articles,omitempty" gorm:"foreignKey:TopicID"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Topic) TableName() string {
	return "topics"
}
