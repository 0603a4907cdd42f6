package models

import "time"

// Article repräsentiert einen einzelnen gecrawlten Nachrichtenartikel.
// Die URL ist der natürliche Dedup-Schlüssel der Ingestion.
type Article struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title"`
	URL       string    `json:"url" gorm:"uniqueIndex;not null"`
	Body      string    `json:"body" gorm:"type:text"`
	ImageURL  *string   `json:"image_url,omitempty" gorm:"type:text"`
	CrawledAt time.Time `json:"crawled_at" gorm:"autoCreateTime"`

	Category     *string `json:"category,omitempty" gorm:"index"`
	ReporterName *string `json:"reporter_name,omitempty"`

	SourceID uint    `json:"source_id" gorm:"index"`
	Source   *Source `json:"source,omitempty"`

	// NULL = noch nicht geclustert. Wird genau einmal vom Clustering
	// gesetzt und danach nie umgehängt.
	TopicID *uint  `json:"topic_id,omitempty" gorm:"index"`
	Topic   *Topic `json:"-"`

	// Enrichment-Felder: wandern genau einmal von NULL/Default zu befüllt.
	AiAlternativeTitle *string `json:"ai_alternative_title,omitempty" gorm:"type:text"`
	AiBiasScore        float64 `json:"ai_bias_score" gorm:"default:0"` // 0 = neutral, 10 = stark gefärbt
	AiReporterSummary  *string `json:"ai_reporter_summary,omitempty" gorm:"type:text"`
	Sentiment          *string `json:"sentiment,omitempty"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Article) TableName() string {
	return "articles"
}
