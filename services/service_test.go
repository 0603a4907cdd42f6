package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"harmoni/config"
	"harmoni/models"
	"harmoni/providers"
)

var testDBCounter atomic.Int64

// newTestDB öffnet eine frische In-Memory-Datenbank mit migriertem Schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Source{}, &models.Topic{}, &models.Article{}, &models.Short{}, &models.Debate{}))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		ClusterEpsilon:    0.5,
		ClusterMinPts:     2,
		ClusterBatch:      100,
		SummaryBatch:      50,
		ClassifyBatch:     30,
		DetailBatch:       30,
		ShortsBatch:       100,
		DebateBatch:       50,
		ContextCharLimit:  500,
		TopicCacheTTL:     5,
		TaskPoolSize:      2,
		DefaultSourceName: "네이버뉴스",
	}
}

// fakeGenerator beantwortet GenerateJSON über eine injizierte Funktion und
// zählt die Aufrufe mit.
type fakeGenerator struct {
	respond func(systemPrompt, userPrompt string, schema providers.Schema) (json.RawMessage, error)
	pingErr error
	calls   atomic.Int64
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, schema providers.Schema) (json.RawMessage, error) {
	f.calls.Add(1)
	return f.respond(systemPrompt, userPrompt, schema)
}

func (f *fakeGenerator) Ping(ctx context.Context) error { return f.pingErr }

// schemaGenerator liefert pro Schema-Name eine feste Antwort.
func schemaGenerator(responses map[string]string) *fakeGenerator {
	return &fakeGenerator{
		respond: func(_, _ string, schema providers.Schema) (json.RawMessage, error) {
			resp, ok := responses[schema.Name]
			if !ok {
				return nil, fmt.Errorf("keine Antwort für Schema %q hinterlegt", schema.Name)
			}
			return json.RawMessage(resp), nil
		},
	}
}

// fakeEmbedder bildet jeden Text über eine feste Tabelle auf einen Vektor ab.
type fakeEmbedder struct {
	vectors map[string][]float32
	pingErr error
	calls   atomic.Int64
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := f.vectors[text]
		if !ok {
			return nil, fmt.Errorf("kein Vektor für Text %q hinterlegt", text)
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Ping(ctx context.Context) error { return f.pingErr }

func testLogger() *zap.Logger { return zap.NewNop() }

func seedArticle(t *testing.T, db *gorm.DB, article *models.Article) *models.Article {
	t.Helper()
	if article.SourceID == 0 {
		source := models.Source{Name: "연합뉴스", BiasLabel: "center"}
		require.NoError(t, db.Where(models.Source{Name: source.Name}).FirstOrCreate(&source).Error)
		article.SourceID = source.ID
	}
	require.NoError(t, db.Create(article).Error)
	return article
}
