package services

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"harmoni/config"
	"harmoni/models"
)

// pressBiasMap ordnet bekannten koreanischen Verlagen ein Start-Bias-Label zu.
// Unbekannte Verlage starten als "unknown"; die Klassifikations-Stage
// korrigiert später.
var pressBiasMap = map[string]string{
	"경향신문":  "left",
	"한겨레":   "left",
	"오마이뉴스": "left",
	"조선일보":  "right",
	"중앙일보":  "right",
	"동아일보":  "right",
	"국민일보":  "center",
	"연합뉴스":  "center",
}

// IncomingArticle ist das Push-Payload des externen Scrapers.
type IncomingArticle struct {
	Title        string  `json:"title" binding:"required"`
	URL          string  `json:"url" binding:"required"`
	Body         string  `json:"body" binding:"required"`
	ImageURL     *string `json:"image,omitempty"`
	Category     *string `json:"category,omitempty"`
	ReporterName *string `json:"reporter,omitempty"`
	PressName    string  `json:"press_name"`
}

// IngestService nimmt gescrapte Artikel entgegen. Die URL ist der
// Idempotenz-Schlüssel: bekannte URLs erzeugen nie eine zweite Zeile,
// höchstens ein gezieltes Nachtragen fehlender Felder.
type IngestService struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewIngestService erstellt eine neue Instanz des IngestService.
func NewIngestService(cfg *config.Config, db *gorm.DB, logger *zap.Logger) *IngestService {
	return &IngestService{Config: cfg, DB: db, Logger: logger}
}

// Ingest verarbeitet einen Batch gescrapter Artikel. Fehlerhafte Items
// werden geloggt und übersprungen. Gibt (neu angelegt, nachgetragen) zurück.
func (s *IngestService) Ingest(items []IncomingArticle) (int, int) {
	created, backfilled := 0, 0
	for _, item := range items {
		wasNew, err := s.ingestOne(item)
		if err != nil {
			s.Logger.Warn("Artikel-Ingest fehlgeschlagen, wird übersprungen",
				zap.String("url", item.URL), zap.Error(err))
			continue
		}
		if wasNew {
			created++
		} else {
			backfilled++
		}
	}
	return created, backfilled
}

func (s *IngestService) ingestOne(item IncomingArticle) (bool, error) {
	if item.URL == "" || item.Title == "" {
		return false, fmt.Errorf("url und title sind Pflichtfelder")
	}

	var existing models.Article
	err := s.DB.Where("url = ?", item.URL).First(&existing).Error
	switch {
	case err == nil:
		return false, s.backfill(&existing, item)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// weiter unten neu anlegen
	default:
		return false, err
	}

	source, err := s.findOrCreateSource(item.PressName)
	if err != nil {
		return false, err
	}

	article := models.Article{
		Title:        item.Title,
		URL:          item.URL,
		Body:         item.Body,
		ImageURL:     item.ImageURL,
		Category:     item.Category,
		ReporterName: item.ReporterName,
		SourceID:     source.ID,
		TopicID:      nil, // Zuordnung übernimmt ausschließlich das Clustering
	}
	if err := s.DB.Create(&article).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Paralleler Ingest derselben URL: kein Duplikat, kein Fehler.
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// backfill trägt Reporter und Kategorie nach, falls sie beim ersten
// Crawl fehlten. Alle anderen Felder bleiben unangetastet.
func (s *IngestService) backfill(existing *models.Article, item IncomingArticle) error {
	updates := map[string]any{}
	if existing.ReporterName == nil && item.ReporterName != nil {
		updates["reporter_name"] = *item.ReporterName
	}
	if existing.Category == nil && item.Category != nil {
		updates["category"] = *item.Category
	}
	if len(updates) == 0 {
		return nil
	}
	return s.DB.Model(existing).Updates(updates).Error
}

func (s *IngestService) findOrCreateSource(pressName string) (*models.Source, error) {
	name := pressName
	if name == "" {
		name = s.Config.DefaultSourceName
	}

	var source models.Source
	err := s.DB.Where("name = ?", name).First(&source).Error
	if err == nil {
		return &source, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	bias := pressBiasMap[name]
	if bias == "" {
		bias = "unknown"
	}
	source = models.Source{Name: name, BiasLabel: bias}
	if err := s.DB.Create(&source).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if err := s.DB.Where("name = ?", name).First(&source).Error; err != nil {
				return nil, err
			}
			return &source, nil
		}
		return nil, err
	}
	return &source, nil
}
