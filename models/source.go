package models

// Source repräsentiert einen Nachrichtenverlag (Presse).
// Wird beim ersten Artikel dieses Verlags angelegt und nie gelöscht.
type Source struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"` // z.B. "한겨레"

	// Politische Einordnung: left, center, right oder unknown.
	// Kann durch die Klassifikations-Stage korrigiert werden.
	BiasLabel string `json:"bias_label" gorm:"index;default:'unknown'"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Source) TableName() string {
	return "sources"
}
