package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"harmoni/models"
)

func newTestPipeline(t *testing.T, db *gorm.DB, gen *fakeGenerator, embedder *fakeEmbedder) *PipelineService {
	t.Helper()
	cfg := testConfig()
	log := testLogger()
	tasks, err := NewTaskRunner(2, log)
	require.NoError(t, err)
	t.Cleanup(tasks.Release)

	return NewPipelineService(cfg, log, gen, embedder,
		NewClusterService(cfg, db, embedder, log),
		NewContentService(cfg, db, gen, log),
		NewClassifyService(cfg, db, gen, log),
		NewDebateService(cfg, db, gen, tasks, log))
}

func TestPipelineRunAllEndToEnd(t *testing.T) {
	db := newTestDB(t)
	gen := schemaGenerator(map[string]string{
		"news_summary":         `{"headline": "부동산 대책 발표", "summary": "요약"}`,
		"article_details":      `{"alternative_title": "중립 제목", "bias_score": 4, "reporter_summary": "논조", "sentiment": "neutral"}`,
		"shorts_script":        `{"title": "숏폼", "script": "대본", "hashtags": ["#뉴스"]}`,
		"press_classification": `{"press_name": "한겨레", "bias": "left"}`,
		"debate":               validDebateJSON,
	})
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"정부, 부동산 대책 발표": {1, 0, 0},
		"부동산 대책 나왔다":    {0.99, 0.05, 0},
		"프로야구 개막":       {0, 1, 0},
	}}
	pipeline := newTestPipeline(t, db, gen, embedder)

	// Artikel kommen wie vom Scraper unter der Default-Source herein.
	ingest := NewIngestService(testConfig(), db, testLogger())
	created, _ := ingest.Ingest([]IncomingArticle{
		{Title: "정부, 부동산 대책 발표", URL: "https://news.example/e1", Body: "본문"},
		{Title: "부동산 대책 나왔다", URL: "https://news.example/e2", Body: "본문"},
		{Title: "프로야구 개막", URL: "https://news.example/e3", Body: "본문"},
	})
	require.Equal(t, 3, created)

	stats, err := pipeline.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TopicsCreated)
	assert.Equal(t, 1, stats.Summaries)
	assert.Equal(t, 2, stats.ArticlesClassified, "nur Artikel mit headlined Topic werden klassifiziert")
	assert.Equal(t, 3, stats.ArticlesAnalyzed)
	assert.Equal(t, 1, stats.Shorts)
	assert.Equal(t, 1, stats.Debates)

	var topic models.Topic
	require.NoError(t, db.Preload("Articles").First(&topic).Error)
	require.NotNil(t, topic.AiNeutralHeadline)
	assert.Equal(t, "부동산 대책 발표", *topic.AiNeutralHeadline)
	assert.Len(t, topic.Articles, 2)

	// Zweiter Lauf: alle Pending-Prädikate sind leer, nichts wird doppelt
	// generiert.
	callsAfterFirst := gen.calls.Load()
	stats, err = pipeline.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &PipelineStats{}, stats)
	assert.Equal(t, callsAfterFirst, gen.calls.Load())
}

func TestPipelineRunAllFailsFastWhenProviderDown(t *testing.T) {
	db := newTestDB(t)
	gen := &fakeGenerator{pingErr: fmt.Errorf("kein API-Key")}
	embedder := &fakeEmbedder{vectors: map[string][]float32{}}
	pipeline := newTestPipeline(t, db, gen, embedder)

	seedArticle(t, db, &models.Article{Title: "기사", URL: "https://news.example/pf", Body: "b"})

	_, err := pipeline.RunAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(0), gen.calls.Load(), "Vorbedingungen werden vor jeder Item-Arbeit geprüft")
	assert.Equal(t, int64(0), embedder.calls.Load())
}

func TestPipelineRunAllToleratesItemFailures(t *testing.T) {
	db := newTestDB(t)
	gen := schemaGenerator(map[string]string{
		"news_summary": `{"headline": "", "summary": ""}`, // scheitert in der Validierung
	})
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"기사 하나": {1, 0},
		"기사 둘":  {0.99, 0.05},
	}}
	pipeline := newTestPipeline(t, db, gen, embedder)

	seedArticle(t, db, &models.Article{Title: "기사 하나", URL: "https://news.example/t1", Body: "b"})
	seedArticle(t, db, &models.Article{Title: "기사 둘", URL: "https://news.example/t2", Body: "b"})

	// Die Detail-Stage bekommt dieselbe kaputte Antwort nicht: sie nutzt ein
	// anderes Schema, für das nichts hinterlegt ist, und scheitert ebenfalls
	// pro Item. Der Lauf als Ganzes bleibt trotzdem fehlerfrei.
	stats, err := pipeline.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TopicsCreated)
	assert.Equal(t, 0, stats.Summaries)
	assert.Equal(t, 0, stats.Shorts, "ohne Headline kein Short")
}
