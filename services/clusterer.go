package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"harmoni/config"
	"harmoni/models"
	"harmoni/providers"
)

// ClusterService gruppiert noch nicht zugeordnete Artikel per DBSCAN über
// Titel-Embeddings zu Topics.
type ClusterService struct {
	Config   *config.Config
	DB       *gorm.DB
	Embedder providers.Embedder
	Logger   *zap.Logger
}

// NewClusterService erstellt eine neue Instanz des ClusterService.
func NewClusterService(cfg *config.Config, db *gorm.DB, embedder providers.Embedder, logger *zap.Logger) *ClusterService {
	return &ClusterService{
		Config:   cfg,
		DB:       db,
		Embedder: embedder,
		Logger:   logger,
	}
}

// Run clustert bis zu batchLimit unzugeordnete Artikel und legt pro Cluster
// genau ein neues Topic an. Artikel ohne ausreichende Nachbarschaft bleiben
// unzugeordnet (Rauschen) und kommen im nächsten Lauf wieder dran.
// Gibt die Anzahl neu angelegter Topics zurück.
func (s *ClusterService) Run(ctx context.Context, batchLimit int) (int, error) {
	var articles []models.Article
	if err := s.DB.Where("topic_id IS NULL").Order("id").Limit(batchLimit).Find(&articles).Error; err != nil {
		return 0, fmt.Errorf("unzugeordnete Artikel laden: %w", err)
	}

	// Clustering ist unterhalb von zwei Artikeln nicht definiert.
	if len(articles) < 2 {
		s.Logger.Info("Zu wenige Artikel für Clustering, übersprungen", zap.Int("count", len(articles)))
		return 0, nil
	}

	titles := make([]string, len(articles))
	for i, art := range articles {
		titles[i] = art.Title
	}

	vectors, err := s.Embedder.Embed(ctx, titles)
	if err != nil {
		return 0, fmt.Errorf("titel-Embeddings holen: %w", err)
	}

	labels := dbscan(vectors, s.Config.ClusterEpsilon, s.Config.ClusterMinPts)

	// Artikel-Indizes pro Cluster-Label einsammeln
	clusters := make(map[int][]int)
	for i, label := range labels {
		if label == noiseLabel {
			continue
		}
		clusters[label] = append(clusters[label], i)
	}

	if len(clusters) == 0 {
		s.Logger.Info("Kein Cluster gefunden, alle Artikel bleiben Rauschen", zap.Int("articles", len(articles)))
		return 0, nil
	}

	// Topics und Zuordnungen als eine Einheit schreiben: schlägt irgendein
	// Schritt fehl, darf kein Artikel auf ein nicht committetes Topic zeigen.
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		for _, idxs := range clusters {
			topic := models.Topic{}
			if err := tx.Create(&topic).Error; err != nil {
				return err
			}
			ids := make([]uint, len(idxs))
			for i, idx := range idxs {
				ids[i] = articles[idx].ID
			}
			if err := tx.Model(&models.Article{}).Where("id IN ?", ids).Update("topic_id", topic.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("topics persistieren: %w", err)
	}

	s.Logger.Info("Clustering abgeschlossen",
		zap.Int("articles", len(articles)),
		zap.Int("new_topics", len(clusters)))
	return len(clusters), nil
}
