package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"harmoni/config"
	"harmoni/models"
	"harmoni/providers"
)

var summarySchema = providers.Schema{
	Name: "news_summary",
	Definition: json.RawMessage(`{
		"type": "object",
		"properties": {
			"headline": {"type": "string"},
			"summary": {"type": "string"}
		},
		"required": ["headline", "summary"],
		"additionalProperties": false
	}`),
}

var detailSchema = providers.Schema{
	Name: "article_details",
	Definition: json.RawMessage(`{
		"type": "object",
		"properties": {
			"alternative_title": {"type": "string"},
			"bias_score": {"type": "number"},
			"reporter_summary": {"type": "string"},
			"sentiment": {"type": "string", "enum": ["positive", "neutral", "negative"]}
		},
		"required": ["alternative_title", "bias_score", "reporter_summary", "sentiment"],
		"additionalProperties": false
	}`),
}

var shortsSchema = providers.Schema{
	Name: "shorts_script",
	Definition: json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"script": {"type": "string"},
			"hashtags": {"type": "array", "items": {"type": "string"}},
			"image_url": {"type": "string"}
		},
		"required": ["title", "script", "hashtags"],
		"additionalProperties": false
	}`),
}

// TopicSummary ist das validierte Ergebnis der Summary-Stage.
type TopicSummary struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
}

// ShortPayload ist das strukturierte Payload eines Kurzvideo-Skripts.
type ShortPayload struct {
	Title    string   `json:"title"`
	Script   string   `json:"script"`
	Hashtags []string `json:"hashtags"`
	ImageURL string   `json:"image_url,omitempty"`
}

// articleDetails ist das Roh-Ergebnis der Detail-Stage. BiasScore bleibt
// untypisiert, weil Provider den Score gelegentlich als String liefern.
type articleDetails struct {
	AlternativeTitle string          `json:"alternative_title"`
	BiasScore        json.RawMessage `json:"bias_score"`
	ReporterSummary  string          `json:"reporter_summary"`
	Sentiment        string          `json:"sentiment"`
}

// ContentService generiert Topic-Headlines/Summaries, Artikel-Detailanalysen
// und Kurzvideo-Skripte über den Text-Generierungs-Provider.
type ContentService struct {
	Config    *config.Config
	DB        *gorm.DB
	Generator providers.TextGenerator
	Logger    *zap.Logger
}

// NewContentService erstellt eine neue Instanz des ContentService.
func NewContentService(cfg *config.Config, db *gorm.DB, generator providers.TextGenerator, logger *zap.Logger) *ContentService {
	return &ContentService{
		Config:    cfg,
		DB:        db,
		Generator: generator,
		Logger:    logger,
	}
}

// decodeStrict dekodiert raw in v und lehnt unbekannte Felder ab.
func decodeStrict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// RunTopicSummaries generiert für bis zu batchLimit Topics ohne Headline
// eine neutrale Headline plus Zusammenfassung.
func (s *ContentService) RunTopicSummaries(ctx context.Context, batchLimit int) (int, error) {
	var topics []models.Topic
	if err := s.DB.Where("ai_neutral_headline IS NULL").Order("id").Limit(batchLimit).Find(&topics).Error; err != nil {
		return 0, fmt.Errorf("topics ohne Headline laden: %w", err)
	}

	s.Logger.Info("Summary-Stage gestartet", zap.Int("pending_topics", len(topics)))

	done := forEachItem(s.Logger, "topic_summary", topics,
		func(t models.Topic) uint { return t.ID },
		func(t models.Topic) error {
			_, err := s.GenerateTopicSummary(ctx, t.ID)
			return err
		})
	return done, nil
}

// GenerateTopicSummary generiert Headline und Summary für ein Topic und
// committet das Ergebnis sofort.
func (s *ContentService) GenerateTopicSummary(ctx context.Context, topicID uint) (*TopicSummary, error) {
	var topic models.Topic
	if err := s.DB.First(&topic, topicID).Error; err != nil {
		return nil, err
	}

	var articles []models.Article
	if err := s.DB.Where("topic_id = ?", topicID).Order("id").Limit(5).Find(&articles).Error; err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("topic %d hat keine Artikel", topicID)
	}

	articlesText := buildArticlesContext(articles, s.Config.ContextCharLimit)

	systemPrompt := "You are a helpful AI news editor. Analyze news articles and output JSON."
	userPrompt := fmt.Sprintf(`다음 뉴스들을 종합하여 중립적인 헤드라인 1개와 3문장 요약을 작성하라.

[헤드라인 작성 원칙: 카테고리별 가이드라인]
1. 연예: 가십/열애설보다는 공식 활동이나 작품 위주로 작성
2. 정치: 감정적 어휘(격노, 맹비난 등)를 배제하고 객관적 사실 전달
3. 경제: 과도한 공포나 기대감(대폭락, 대박) 조성을 지양하고 수치와 현상 위주로 작성
4. 사회: 자극적인 범죄 묘사를 피하고 사건의 개요를 건조하게 서술

위 가이드라인을 참고하여, 클릭을 유도하는 자극적인 표현(어그로)을 제거하고 가장 중요한 사실 하나를 담백하게 표현하는 헤드라인을 작성하라.
반드시 한글로 작성하고 JSON으로 출력하라.

[기사]
%s`, articlesText)

	raw, err := s.Generator.GenerateJSON(ctx, systemPrompt, userPrompt, summarySchema)
	if err != nil {
		return nil, err
	}

	var result TopicSummary
	if err := decodeStrict(raw, &result); err != nil {
		return nil, fmt.Errorf("summary-Antwort ungültig: %w", err)
	}
	if result.Headline == "" || result.Summary == "" {
		return nil, fmt.Errorf("summary-Antwort unvollständig")
	}

	// Der verwendete Quelltext wird für Audit-Zwecke mitgespeichert.
	updates := map[string]any{
		"ai_neutral_headline": result.Headline,
		"ai_summary":          result.Summary,
		"body":                articlesText,
	}
	if err := s.DB.Model(&topic).Updates(updates).Error; err != nil {
		return nil, err
	}

	s.Logger.Info("Topic-Summary generiert", zap.Uint("topic_id", topicID), zap.String("headline", result.Headline))
	return &result, nil
}

// RunArticleDetails analysiert bis zu batchLimit Artikel ohne Alternativtitel
// (Alternativtitel, Bias-Score, Tonalität, Sentiment).
func (s *ContentService) RunArticleDetails(ctx context.Context, batchLimit int) (int, error) {
	var articles []models.Article
	if err := s.DB.Preload("Source").Where("ai_alternative_title IS NULL").Order("id").Limit(batchLimit).Find(&articles).Error; err != nil {
		return 0, fmt.Errorf("artikel ohne Analyse laden: %w", err)
	}

	s.Logger.Info("Detail-Stage gestartet", zap.Int("pending_articles", len(articles)))

	done := forEachItem(s.Logger, "article_details", articles,
		func(a models.Article) uint { return a.ID },
		func(a models.Article) error { return s.generateArticleDetails(ctx, &a) })
	return done, nil
}

func (s *ContentService) generateArticleDetails(ctx context.Context, article *models.Article) error {
	pressName := "Unknown"
	if article.Source != nil {
		pressName = article.Source.Name
	}

	userPrompt := fmt.Sprintf(`뉴스 기사를 분석해서 다음 4가지 정보를 JSON으로 추출해줘.

[기사 정보]
제목: %s
본문: %s
언론사: %s

[지시사항]
1. alternative_title: 낚시성/자극적 요소를 제거한 '건조하고 중립적인 사실 위주'의 제목 (한글)
2. bias_score: 이 기사의 정치적 편향성 점수 (0=완전중립, 10=매우편향됨). 0에서 10 사이의 숫자(소수점 가능).
3. reporter_summary: 이 언론사(%s)의 성향이나 기사의 논조를 1문장으로 요약.
4. sentiment: 기사의 전반적인 감정 (positive, neutral, negative 중 하나).`,
		article.Title, truncateRunes(article.Body, s.Config.ContextCharLimit), pressName, pressName)

	raw, err := s.Generator.GenerateJSON(ctx, "Output valid JSON only.", userPrompt, detailSchema)
	if err != nil {
		return err
	}

	var details articleDetails
	if err := decodeStrict(raw, &details); err != nil {
		return fmt.Errorf("detail-Antwort ungültig: %w", err)
	}
	if details.AlternativeTitle == "" {
		return fmt.Errorf("detail-Antwort ohne alternative_title")
	}

	updates := map[string]any{
		"ai_alternative_title": details.AlternativeTitle,
		"ai_bias_score":        coerceScore(details.BiasScore),
		"ai_reporter_summary":  details.ReporterSummary,
		"sentiment":            details.Sentiment,
	}
	return s.DB.Model(article).Updates(updates).Error
}

// coerceScore macht aus einem rohen bias_score-Wert einen Float.
// Zahl, Zahl-als-String und Unsinn werden akzeptiert; Unsinn wird 0.0,
// damit ein kaputter Score nicht das ganze Item scheitern lässt.
func coerceScore(raw json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if f, err := strconv.ParseFloat(str, 64); err == nil {
			return f
		}
	}
	return 0.0
}

// RunShorts generiert Kurzvideo-Skripte für bis zu batchLimit Topics, die
// eine Headline aber noch kein Short haben.
func (s *ContentService) RunShorts(ctx context.Context, batchLimit int) (int, error) {
	subquery := s.DB.Model(&models.Short{}).Select("topic_id")
	var topics []models.Topic
	if err := s.DB.Where("ai_neutral_headline IS NOT NULL AND id NOT IN (?)", subquery).
		Order("id").Limit(batchLimit).Find(&topics).Error; err != nil {
		return 0, fmt.Errorf("topics ohne Short laden: %w", err)
	}

	s.Logger.Info("Shorts-Stage gestartet", zap.Int("pending_topics", len(topics)))

	done := forEachItem(s.Logger, "shorts", topics,
		func(t models.Topic) uint { return t.ID },
		func(t models.Topic) error {
			// Existenz wird vor der Generierung erneut geprüft, damit
			// sequentielle Läufe keine Duplikate erzeugen.
			var existing models.Short
			if err := s.DB.Where("topic_id = ?", t.ID).First(&existing).Error; err == nil {
				return nil
			}
			_, err := s.GenerateShort(ctx, t.ID)
			return err
		})
	return done, nil
}

// GenerateShort generiert das Kurzvideo-Skript für ein Topic. Ein bereits
// vorhandenes Short wird überschrieben, nie dupliziert.
func (s *ContentService) GenerateShort(ctx context.Context, topicID uint) (*ShortPayload, error) {
	var topic models.Topic
	if err := s.DB.First(&topic, topicID).Error; err != nil {
		return nil, err
	}

	var articles []models.Article
	if err := s.DB.Where("topic_id = ?", topicID).Order("id").Limit(3).Find(&articles).Error; err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("topic %d hat keine Artikel", topicID)
	}

	// Ohne neutrale Headline dient der erste Rohtitel als Grounding.
	headline := derefOr(topic.AiNeutralHeadline, articles[0].Title)

	var imageURL string
	for _, art := range articles {
		if art.ImageURL != nil && *art.ImageURL != "" {
			imageURL = *art.ImageURL
			break
		}
	}

	systemPrompt := "You are a professional news anchor. Output valid JSON only."
	userPrompt := fmt.Sprintf(`아래 내용을 바탕으로 15초 분량의 뉴스 숏폼 영상 대본을 작성하라.
말투는 진중하고 신뢰감 있는 경어체(존댓말)를 사용하라.

[내용]
Topic: %s
%s`, headline, buildArticlesContext(articles, s.Config.ContextCharLimit))

	raw, err := s.Generator.GenerateJSON(ctx, systemPrompt, userPrompt, shortsSchema)
	if err != nil {
		return nil, err
	}

	var payload ShortPayload
	if err := decodeStrict(raw, &payload); err != nil {
		return nil, fmt.Errorf("shorts-Antwort ungültig: %w", err)
	}
	if payload.Title == "" || payload.Script == "" {
		return nil, fmt.Errorf("shorts-Antwort unvollständig")
	}

	// Bild aus dem ersten Artikel mit Bild nachziehen, falls der Provider
	// keines geliefert hat.
	if imageURL != "" {
		payload.ImageURL = imageURL
	}

	content, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var existing models.Short
	err = s.DB.Where("topic_id = ?", topicID).First(&existing).Error
	switch {
	case err == nil:
		if err := s.DB.Model(&existing).Update("content", content).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		short := models.Short{TopicID: topicID, Content: content}
		if err := s.DB.Create(&short).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	s.Logger.Info("Short generiert", zap.Uint("topic_id", topicID), zap.String("title", payload.Title))
	return &payload, nil
}
