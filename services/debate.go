package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"harmoni/config"
	"harmoni/models"
	"harmoni/providers"
)

var debateSchema = providers.Schema{
	Name: "debate",
	Definition: json.RawMessage(`{
		"type": "object",
		"properties": {
			"topic_headline": {"type": "string"},
			"debaters": {
				"type": "object",
				"properties": {
					"positive": {"$ref": "#/$defs/debater"},
					"neutral": {"$ref": "#/$defs/debater"},
					"negative": {"$ref": "#/$defs/debater"}
				},
				"required": ["positive", "neutral", "negative"],
				"additionalProperties": false
			},
			"rounds": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"round_number": {"type": "integer"},
						"theme": {"type": "string"},
						"statements": {
							"type": "array",
							"items": {
								"type": "object",
								"properties": {
									"speaker": {"type": "string"},
									"content": {"type": "string"}
								},
								"required": ["speaker", "content"],
								"additionalProperties": false
							}
						}
					},
					"required": ["round_number", "theme", "statements"],
					"additionalProperties": false
				}
			},
			"conclusion": {
				"type": "object",
				"properties": {
					"summary": {"type": "string"},
					"key_points": {"type": "array", "items": {"type": "string"}},
					"recommendation": {"type": "string"}
				},
				"required": ["summary", "key_points", "recommendation"],
				"additionalProperties": false
			}
		},
		"required": ["topic_headline", "debaters", "rounds", "conclusion"],
		"additionalProperties": false,
		"$defs": {
			"debater": {
				"type": "object",
				"properties": {
					"name": {"type": "string"},
					"stance": {"type": "string"},
					"avatar_color": {"type": "string"}
				},
				"required": ["name", "stance", "avatar_color"],
				"additionalProperties": false
			}
		}
	}`),
}

// debateDocument dient der Schema-Validierung der Provider-Antwort.
type debateDocument struct {
	TopicHeadline string `json:"topic_headline"`
	Debaters      map[string]struct {
		Name        string `json:"name"`
		Stance      string `json:"stance"`
		AvatarColor string `json:"avatar_color"`
	} `json:"debaters"`
	Rounds []struct {
		RoundNumber int    `json:"round_number"`
		Theme       string `json:"theme"`
		Statements  []struct {
			Speaker string `json:"speaker"`
			Content string `json:"content"`
		} `json:"statements"`
	} `json:"rounds"`
	Conclusion struct {
		Summary        string   `json:"summary"`
		KeyPoints      []string `json:"key_points"`
		Recommendation string   `json:"recommendation"`
	} `json:"conclusion"`
}

// DebateService generiert Mehrperspektiven-Debatten (positiv/neutral/negativ)
// zu Topics, im Batch und reaktiv auf Leseranfrage.
type DebateService struct {
	Config    *config.Config
	DB        *gorm.DB
	Generator providers.TextGenerator
	Tasks     *TaskRunner
	Logger    *zap.Logger
}

// NewDebateService erstellt eine neue Instanz des DebateService.
func NewDebateService(cfg *config.Config, db *gorm.DB, generator providers.TextGenerator, tasks *TaskRunner, logger *zap.Logger) *DebateService {
	return &DebateService{
		Config:    cfg,
		DB:        db,
		Generator: generator,
		Tasks:     tasks,
		Logger:    logger,
	}
}

// Get liefert den gespeicherten Debatten-Inhalt eines Topics oder
// gorm.ErrRecordNotFound.
func (s *DebateService) Get(topicID uint) (json.RawMessage, error) {
	var debate models.Debate
	if err := s.DB.Where("topic_id = ?", topicID).First(&debate).Error; err != nil {
		return nil, err
	}
	return json.RawMessage(debate.Content), nil
}

// GetOrSchedule gibt die Debatte synchron zurück, wenn sie existiert.
// Andernfalls wird die Generierung als Hintergrund-Task eingereiht und
// pending=true gemeldet; der Aufrufer pollt erneut.
func (s *DebateService) GetOrSchedule(topicID uint) (json.RawMessage, bool, error) {
	content, err := s.Get(topicID)
	if err == nil {
		return content, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	var topic models.Topic
	if err := s.DB.First(&topic, topicID).Error; err != nil {
		return nil, false, err
	}

	s.Tasks.Submit(fmt.Sprintf("debate-topic-%d", topicID), func() {
		if _, err := s.Generate(context.Background(), topicID); err != nil {
			s.Logger.Error("Hintergrund-Debattengenerierung fehlgeschlagen",
				zap.Uint("topic_id", topicID), zap.Error(err))
		}
	})
	return nil, true, nil
}

// Generate erzeugt die Debatte für ein Topic und speichert sie. Existiert
// bereits eine, wird deren Inhalt zurückgegeben. Verlieren wir das
// Check-then-Insert-Race gegen eine parallele Anfrage, gilt der fremde
// Insert als Ergebnis (Refetch statt Fehler).
func (s *DebateService) Generate(ctx context.Context, topicID uint) (json.RawMessage, error) {
	if content, err := s.Get(topicID); err == nil {
		return content, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var topic models.Topic
	if err := s.DB.First(&topic, topicID).Error; err != nil {
		return nil, err
	}

	var articles []models.Article
	if err := s.DB.Preload("Source").Where("topic_id = ?", topicID).Order("id").Limit(5).Find(&articles).Error; err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("topic %d hat keine Artikel", topicID)
	}

	headline := derefOr(topic.AiNeutralHeadline, articles[0].Title)
	content, err := s.generateContent(ctx, headline, articles)
	if err != nil {
		return nil, err
	}

	debate := models.Debate{TopicID: topicID, Content: datatypes.JSON(content)}
	if err := s.DB.Create(&debate).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.Logger.Info("Debatte wurde parallel erzeugt, übernehme bestehende", zap.Uint("topic_id", topicID))
			return s.Get(topicID)
		}
		return nil, err
	}

	s.Logger.Info("Debatte generiert", zap.Uint("topic_id", topicID))
	return content, nil
}

func (s *DebateService) generateContent(ctx context.Context, headline string, articles []models.Article) (json.RawMessage, error) {
	var articlesText string
	for i, art := range articles {
		sourceName := "알수없음"
		if art.Source != nil {
			sourceName = art.Source.Name
		}
		articlesText += fmt.Sprintf("[기사 %d]\n제목: %s\n언론사: %s\n내용: %s...\n\n",
			i+1, art.Title, sourceName, truncateRunes(art.Body, s.Config.ContextCharLimit))
	}

	systemPrompt := `당신은 뉴스 토론 AI입니다.
주어진 뉴스 기사들을 분석하여 세 가지 다른 관점(긍정, 중립, 부정)에서 토론을 진행합니다.
각 AI 토론자는 독립적인 인격과 논리를 가지고 토론에 참여합니다.
반드시 한글로 작성하고 JSON 형식으로 출력하세요.`

	userPrompt := fmt.Sprintf(`다음 뉴스 토픽에 대해 AI들이 토론하는 내용을 생성해주세요.

[토픽 헤드라인]
%s

[관련 기사들]
%s

[지시사항]
1. 세 명의 AI 토론자가 각각 긍정(positive), 중립(neutral), 부정(negative) 입장에서 토론합니다.
2. 각 토론자는 3-4라운드의 발언을 합니다.
3. 토론자들은 서로의 의견에 반박하거나 동의하며 건설적인 토론을 진행합니다.
4. 마지막에는 종합 정리를 포함해주세요.`, headline, articlesText)

	raw, err := s.Generator.GenerateJSON(ctx, systemPrompt, userPrompt, debateSchema)
	if err != nil {
		return nil, err
	}

	var doc debateDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return nil, fmt.Errorf("debatten-Antwort ungültig: %w", err)
	}
	if doc.TopicHeadline == "" || len(doc.Rounds) == 0 {
		return nil, fmt.Errorf("debatten-Antwort unvollständig")
	}
	return raw, nil
}

// Regenerate löscht eine bestehende Debatte und generiert sie neu.
func (s *DebateService) Regenerate(ctx context.Context, topicID uint) (json.RawMessage, error) {
	if err := s.DB.Where("topic_id = ?", topicID).Delete(&models.Debate{}).Error; err != nil {
		return nil, err
	}
	return s.Generate(ctx, topicID)
}

// RunAll generiert Debatten für bis zu batchLimit Topics mit mindestens
// einem Artikel und ohne bestehende Debatte.
func (s *DebateService) RunAll(ctx context.Context, batchLimit int) (int, error) {
	withArticles := s.DB.Model(&models.Article{}).Select("topic_id").Where("topic_id IS NOT NULL")
	withDebate := s.DB.Model(&models.Debate{}).Select("topic_id")

	var topics []models.Topic
	if err := s.DB.Where("id IN (?) AND id NOT IN (?)", withArticles, withDebate).
		Order("id").Limit(batchLimit).Find(&topics).Error; err != nil {
		return 0, fmt.Errorf("topics ohne Debatte laden: %w", err)
	}

	s.Logger.Info("Debatten-Stage gestartet", zap.Int("pending_topics", len(topics)))

	done := forEachItem(s.Logger, "debate", topics,
		func(t models.Topic) uint { return t.ID },
		func(t models.Topic) error {
			_, err := s.Generate(ctx, t.ID)
			return err
		})
	return done, nil
}
