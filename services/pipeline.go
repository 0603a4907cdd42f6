package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"harmoni/config"
	"harmoni/providers"
)

// PipelineStats zählt die Arbeit eines vollständigen Pipeline-Laufs.
type PipelineStats struct {
	TopicsCreated      int
	Summaries          int
	ArticlesClassified int
	ArticlesAnalyzed   int
	Shorts             int
	Debates            int
}

// PipelineService fährt die Stages in fester Reihenfolge: Clustering →
// Summary → Klassifikation → Detailanalyse → Shorts → Debatten.
// Die Reihenfolge ist Korrektheitsbedingung: Summaries brauchen Topics,
// Shorts und Debatten bevorzugen die neutrale Headline als Grounding.
type PipelineService struct {
	Config    *config.Config
	Logger    *zap.Logger
	Generator providers.TextGenerator
	Embedder  providers.Embedder
	Cluster   *ClusterService
	Content   *ContentService
	Classify  *ClassifyService
	Debate    *DebateService
}

// NewPipelineService erstellt eine neue Instanz des PipelineService.
func NewPipelineService(cfg *config.Config, logger *zap.Logger, generator providers.TextGenerator, embedder providers.Embedder,
	cluster *ClusterService, content *ContentService, classify *ClassifyService, debate *DebateService) *PipelineService {
	return &PipelineService{
		Config:    cfg,
		Logger:    logger,
		Generator: generator,
		Embedder:  embedder,
		Cluster:   cluster,
		Content:   content,
		Classify:  classify,
		Debate:    debate,
	}
}

// RunAll führt einen vollständigen Pipeline-Lauf aus. Item-Fehler sind
// bereits in den Stages isoliert; hier eskalieren nur Infrastruktur-Fehler
// an der Stage-Grenze. Ein erneuter Lauf nach Teilausfall ist sicher, weil
// jedes Pending-Prädikat mit erledigter Arbeit monoton schrumpft.
func (p *PipelineService) RunAll(ctx context.Context) (*PipelineStats, error) {
	// Provider-Vorbedingungen einmal vorab, nicht pro Item.
	if err := p.Generator.Ping(ctx); err != nil {
		return nil, fmt.Errorf("text-Generator nicht verfügbar: %w", err)
	}
	if err := p.Embedder.Ping(ctx); err != nil {
		return nil, fmt.Errorf("embedder nicht verfügbar: %w", err)
	}

	stats := &PipelineStats{}
	var err error

	p.Logger.Info("Pipeline-Lauf gestartet")

	if stats.TopicsCreated, err = p.Cluster.Run(ctx, p.Config.ClusterBatch); err != nil {
		return stats, fmt.Errorf("clustering: %w", err)
	}
	if stats.Summaries, err = p.Content.RunTopicSummaries(ctx, p.Config.SummaryBatch); err != nil {
		return stats, fmt.Errorf("topic-Summaries: %w", err)
	}
	if stats.ArticlesClassified, err = p.Classify.Run(ctx, p.Config.ClassifyBatch); err != nil {
		return stats, fmt.Errorf("klassifikation: %w", err)
	}
	if stats.ArticlesAnalyzed, err = p.Content.RunArticleDetails(ctx, p.Config.DetailBatch); err != nil {
		return stats, fmt.Errorf("artikel-Details: %w", err)
	}
	if stats.Shorts, err = p.Content.RunShorts(ctx, p.Config.ShortsBatch); err != nil {
		return stats, fmt.Errorf("shorts: %w", err)
	}
	if stats.Debates, err = p.Debate.RunAll(ctx, p.Config.DebateBatch); err != nil {
		return stats, fmt.Errorf("debatten: %w", err)
	}

	p.Logger.Info("Pipeline-Lauf abgeschlossen",
		zap.Int("new_topics", stats.TopicsCreated),
		zap.Int("summaries", stats.Summaries),
		zap.Int("classified", stats.ArticlesClassified),
		zap.Int("analyzed", stats.ArticlesAnalyzed),
		zap.Int("shorts", stats.Shorts),
		zap.Int("debates", stats.Debates))
	return stats, nil
}
