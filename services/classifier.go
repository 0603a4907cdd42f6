package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"harmoni/config"
	"harmoni/models"
	"harmoni/providers"
)

var classifySchema = providers.Schema{
	Name: "press_classification",
	Definition: json.RawMessage(`{
		"type": "object",
		"properties": {
			"press_name": {"type": "string"},
			"bias": {"type": "string", "enum": ["left", "center", "right"]}
		},
		"required": ["press_name", "bias"],
		"additionalProperties": false
	}`),
}

// pressClassification ist das validierte Ergebnis der Klassifikations-Stage.
type pressClassification struct {
	PressName string `json:"press_name"`
	Bias      string `json:"bias"`
}

// ClassifyService ordnet Artikel, die noch unter der Default-Source hängen,
// per Textanalyse einem echten Verlag samt Bias-Label zu.
type ClassifyService struct {
	Config    *config.Config
	DB        *gorm.DB
	Generator providers.TextGenerator
	Logger    *zap.Logger
}

// NewClassifyService erstellt eine neue Instanz des ClassifyService.
func NewClassifyService(cfg *config.Config, db *gorm.DB, generator providers.TextGenerator, logger *zap.Logger) *ClassifyService {
	return &ClassifyService{
		Config:    cfg,
		DB:        db,
		Generator: generator,
		Logger:    logger,
	}
}

// Run klassifiziert bis zu batchLimit Artikel der Default-Source, deren Topic
// bereits eine Headline hat (die Headline dient als Kontext im Prompt).
// Unbekannte Verlagsnamen erzeugen neue Source-Zeilen.
func (s *ClassifyService) Run(ctx context.Context, batchLimit int) (int, error) {
	var defaultSource models.Source
	if err := s.DB.Where("name = ?", s.Config.DefaultSourceName).First(&defaultSource).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Ohne Default-Source gibt es nichts zu klassifizieren.
			s.Logger.Info("Keine Default-Source vorhanden, Klassifikation übersprungen")
			return 0, nil
		}
		return 0, fmt.Errorf("default-Source laden: %w", err)
	}

	headlinedTopics := s.DB.Model(&models.Topic{}).Select("id").Where("ai_neutral_headline IS NOT NULL")

	var articles []models.Article
	if err := s.DB.Preload("Topic").
		Where("source_id = ? AND topic_id IN (?)", defaultSource.ID, headlinedTopics).
		Order("id").Limit(batchLimit).Find(&articles).Error; err != nil {
		return 0, fmt.Errorf("unklassifizierte Artikel laden: %w", err)
	}

	s.Logger.Info("Klassifikations-Stage gestartet", zap.Int("pending_articles", len(articles)))

	done := forEachItem(s.Logger, "classify", articles,
		func(a models.Article) uint { return a.ID },
		func(a models.Article) error { return s.classifyArticle(ctx, &a) })
	return done, nil
}

func (s *ClassifyService) classifyArticle(ctx context.Context, article *models.Article) error {
	headline := ""
	if article.Topic != nil {
		headline = derefOr(article.Topic.AiNeutralHeadline, "")
	}

	userPrompt := fmt.Sprintf(`이 뉴스는 '%s'라는 사건에 대한 기사야.
아래 기사 내용을 분석해서 '언론사 이름'과 '정치적 관점(bias)'을 판단해줘.

[기사 정보]
제목: %s
본문요약: %s
링크: %s

[지시사항]
1. press_name: 기사의 어조와 출처를 분석해 한국 언론사 이름을 정확히 추론해줘.
2. bias: 이 기사가 사건을 다루는 관점을 'left', 'right', 'center' 중 하나로 분류해줘.
   - Right (보수): 한미동맹/안보 강조, 기업/시장 친화, 대북 강경, 보수 진영 옹호 (예: 조선, 중앙, 동아, 매경 등)
   - Left (진보): 평화/인권 강조, 노동 친화, 검찰/재벌 개혁, 진보 진영 옹호 (예: 한겨레, 경향, 오마이뉴스 등)
   - Center (중도/팩트): 기계적 중립, 단순 사실 전달, 또는 판단 불가 (예: 연합뉴스, YTN, 한국일보 등)
3. 반드시 JSON으로만 출력해.`,
		headline, article.Title, truncateRunes(article.Body, s.Config.ContextCharLimit), article.URL)

	raw, err := s.Generator.GenerateJSON(ctx, "Output valid JSON only.", userPrompt, classifySchema)
	if err != nil {
		return err
	}

	var result pressClassification
	if err := decodeStrict(raw, &result); err != nil {
		return fmt.Errorf("klassifikations-Antwort ungültig: %w", err)
	}
	if result.PressName == "" {
		return fmt.Errorf("klassifikations-Antwort ohne press_name")
	}

	source, err := s.findOrCreateSource(result.PressName, result.Bias)
	if err != nil {
		return err
	}

	return s.DB.Model(article).Update("source_id", source.ID).Error
}

// findOrCreateSource liefert die Source mit dem Namen oder legt sie neu an.
// Ein Insert-Race mit parallelen Items wird über den Unique-Index abgefangen
// und durch erneutes Lesen aufgelöst.
func (s *ClassifyService) findOrCreateSource(name, bias string) (*models.Source, error) {
	var source models.Source
	err := s.DB.Where("name = ?", name).First(&source).Error
	if err == nil {
		return &source, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
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
	s.Logger.Info("Neue Source angelegt", zap.String("name", name), zap.String("bias", bias))
	return &source, nil
}
