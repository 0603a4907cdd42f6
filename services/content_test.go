package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"harmoni/models"
	"harmoni/providers"
)

func seedTopicWithArticles(t *testing.T, db *gorm.DB, headline *string, articles ...*models.Article) *models.Topic {
	t.Helper()
	topic := &models.Topic{AiNeutralHeadline: headline}
	require.NoError(t, db.Create(topic).Error)
	for _, art := range articles {
		art.TopicID = &topic.ID
		seedArticle(t, db, art)
	}
	return topic
}

func TestGenerateTopicSummaryPersistsResult(t *testing.T) {
	db := newTestDB(t)
	gen := schemaGenerator(map[string]string{
		"news_summary": `{"headline": "정부 부동산 대책 발표", "summary": "요약 문장입니다."}`,
	})
	svc := NewContentService(testConfig(), db, gen, testLogger())

	topic := seedTopicWithArticles(t, db, nil,
		&models.Article{Title: "제목1", URL: "https://news.example/1", Body: "본문1"},
		&models.Article{Title: "제목2", URL: "https://news.example/2", Body: "본문2"})

	result, err := svc.GenerateTopicSummary(context.Background(), topic.ID)
	require.NoError(t, err)
	assert.Equal(t, "정부 부동산 대책 발표", result.Headline)

	var saved models.Topic
	require.NoError(t, db.First(&saved, topic.ID).Error)
	require.NotNil(t, saved.AiNeutralHeadline)
	assert.Equal(t, "정부 부동산 대책 발표", *saved.AiNeutralHeadline)
	require.NotNil(t, saved.AiSummary)
	assert.Equal(t, "요약 문장입니다.", *saved.AiSummary)
	require.NotNil(t, saved.Body)
	assert.Contains(t, *saved.Body, "News1: 제목1", "verwendeter Quelltext wird mitgespeichert")
}

func TestGenerateTopicSummaryFailsWithoutArticles(t *testing.T) {
	db := newTestDB(t)
	gen := schemaGenerator(map[string]string{})
	svc := NewContentService(testConfig(), db, gen, testLogger())

	topic := &models.Topic{}
	require.NoError(t, db.Create(topic).Error)

	_, err := svc.GenerateTopicSummary(context.Background(), topic.ID)
	assert.Error(t, err)
	assert.Equal(t, int64(0), gen.calls.Load(), "ohne Artikel wird kein Prompt abgeschickt")
}

func TestRunTopicSummariesSkipsMalformedItem(t *testing.T) {
	db := newTestDB(t)
	svc := NewContentService(testConfig(), db, nil, testLogger())

	good := seedTopicWithArticles(t, db, nil,
		&models.Article{Title: "정상 토픽 기사", URL: "https://news.example/good", Body: "b"})
	bad := seedTopicWithArticles(t, db, nil,
		&models.Article{Title: "불량 토픽 기사", URL: "https://news.example/bad", Body: "b"})

	gen := &fakeGenerator{}
	gen.respond = func(_, userPrompt string, _ providers.Schema) (json.RawMessage, error) {
		if strings.Contains(userPrompt, "불량 토픽 기사") {
			return json.RawMessage(`{"headline": "제목만 있고 요약 없음"`), nil // kaputtes JSON
		}
		return json.RawMessage(`{"headline": "헤드라인", "summary": "요약"}`), nil
	}
	svc.Generator = gen

	done, err := svc.RunTopicSummaries(context.Background(), 50)
	require.NoError(t, err, "ein fehlgeschlagenes Item bricht den Batch nicht ab")
	assert.Equal(t, 1, done)

	var savedGood models.Topic
	require.NoError(t, db.First(&savedGood, good.ID).Error)
	assert.NotNil(t, savedGood.AiNeutralHeadline, "erfolgreiches Item ist committet")

	var savedBad models.Topic
	require.NoError(t, db.First(&savedBad, bad.ID).Error)
	assert.Nil(t, savedBad.AiNeutralHeadline, "fehlgeschlagenes Item bleibt pending")
}

func TestRunArticleDetailsUpdatesArticle(t *testing.T) {
	db := newTestDB(t)
	gen := schemaGenerator(map[string]string{
		"article_details": `{"alternative_title": "중립 제목", "bias_score": 6.5, "reporter_summary": "논조 요약", "sentiment": "negative"}`,
	})
	svc := NewContentService(testConfig(), db, gen, testLogger())

	art := seedArticle(t, db, &models.Article{Title: "자극적 제목!", URL: "https://news.example/d1", Body: "본문"})

	done, err := svc.RunArticleDetails(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	var saved models.Article
	require.NoError(t, db.First(&saved, art.ID).Error)
	require.NotNil(t, saved.AiAlternativeTitle)
	assert.Equal(t, "중립 제목", *saved.AiAlternativeTitle)
	assert.InDelta(t, 6.5, saved.AiBiasScore, 1e-9)
	require.NotNil(t, saved.Sentiment)
	assert.Equal(t, "negative", *saved.Sentiment)

	// Analysierte Artikel fallen aus dem Pending-Prädikat heraus.
	done, err = svc.RunArticleDetails(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 0, done)
	assert.Equal(t, int64(1), gen.calls.Load())
}

func TestCoerceScore(t *testing.T) {
	assert.InDelta(t, 7.5, coerceScore(json.RawMessage(`7.5`)), 1e-9)
	assert.InDelta(t, 3.0, coerceScore(json.RawMessage(`"3"`)), 1e-9, "Zahl-als-String wird akzeptiert")
	assert.InDelta(t, 0.0, coerceScore(json.RawMessage(`"편향됨"`)), 1e-9, "Unsinn wird 0.0 statt Fehler")
	assert.InDelta(t, 0.0, coerceScore(json.RawMessage(`null`)), 1e-9)
	assert.InDelta(t, 0.0, coerceScore(json.RawMessage(`{"value": 5}`)), 1e-9)
}

func TestGenerateShortBackfillsImageFromArticles(t *testing.T) {
	db := newTestDB(t)
	gen := schemaGenerator(map[string]string{
		"shorts_script": `{"title": "숏폼 제목", "script": "대본", "hashtags": ["#뉴스"]}`,
	})
	svc := NewContentService(testConfig(), db, gen, testLogger())

	topic := seedTopicWithArticles(t, db, strPtr("헤드라인"),
		&models.Article{Title: "기사1", URL: "https://news.example/s1", Body: "b"},
		&models.Article{Title: "기사2", URL: "https://news.example/s2", Body: "b", ImageURL: strPtr("https://img.example/2.jpg")})

	payload, err := svc.GenerateShort(context.Background(), topic.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/2.jpg", payload.ImageURL, "Bild kommt aus dem ersten Artikel mit Bild")

	var saved models.Short
	require.NoError(t, db.Where("topic_id = ?", topic.ID).First(&saved).Error)
	var stored ShortPayload
	require.NoError(t, json.Unmarshal(saved.Content, &stored))
	assert.Equal(t, "https://img.example/2.jpg", stored.ImageURL)
}

func TestGenerateShortOverwritesExisting(t *testing.T) {
	db := newTestDB(t)
	gen := schemaGenerator(map[string]string{
		"shorts_script": `{"title": "새 제목", "script": "새 대본", "hashtags": []}`,
	})
	svc := NewContentService(testConfig(), db, gen, testLogger())

	topic := seedTopicWithArticles(t, db, strPtr("헤드라인"),
		&models.Article{Title: "기사", URL: "https://news.example/ow", Body: "b"})
	require.NoError(t, db.Create(&models.Short{TopicID: topic.ID, Content: []byte(`{"title":"옛 제목","script":"옛 대본","hashtags":[]}`)}).Error)

	_, err := svc.GenerateShort(context.Background(), topic.ID)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Short{}).Where("topic_id = ?", topic.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "Regenerieren überschreibt, dupliziert nie")

	var saved models.Short
	require.NoError(t, db.Where("topic_id = ?", topic.ID).First(&saved).Error)
	var stored ShortPayload
	require.NoError(t, json.Unmarshal(saved.Content, &stored))
	assert.Equal(t, "새 제목", stored.Title)
}

func TestRunShortsOnlyCoversHeadlinedTopics(t *testing.T) {
	db := newTestDB(t)
	gen := schemaGenerator(map[string]string{
		"shorts_script": `{"title": "숏폼", "script": "대본", "hashtags": ["#뉴스"]}`,
	})
	svc := NewContentService(testConfig(), db, gen, testLogger())

	ready := seedTopicWithArticles(t, db, strPtr("완성된 헤드라인"),
		&models.Article{Title: "기사A", URL: "https://news.example/ra", Body: "b"})
	pending := seedTopicWithArticles(t, db, nil,
		&models.Article{Title: "기사B", URL: "https://news.example/rb", Body: "b"})

	done, err := svc.RunShorts(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	var count int64
	require.NoError(t, db.Model(&models.Short{}).Where("topic_id = ?", ready.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&models.Short{}).Where("topic_id = ?", pending.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count, "Topic ohne Headline bekommt kein Short")

	// Zweiter Lauf ist ein No-Op.
	done, err = svc.RunShorts(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, done)
	assert.Equal(t, int64(1), gen.calls.Load())
}
