package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"harmoni/config"
	"harmoni/models"
	"harmoni/providers/embeddings"
	"harmoni/providers/perplexity"
	"harmoni/services"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	newArticlesCounter prometheus.Counter
	newTopicsCounter   prometheus.Counter
	pipelineRunCounter prometheus.Counter
	stageItemsCounter  *prometheus.CounterVec
)

func init() {
	newArticlesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "new_articles_ingested_total",
			Help: "Total number of new articles ingested into the database.",
		},
	)
	newTopicsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "new_topics_created_total",
			Help: "Total number of topics created by clustering.",
		},
	)
	pipelineRunCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of completed full pipeline runs.",
		},
	)
	stageItemsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_items_total",
			Help: "Items successfully processed per enrichment stage.",
		},
		[]string{"stage"},
	)
	prometheus.MustRegister(newArticlesCounter, newTopicsCounter, pipelineRunCounter, stageItemsCounter)
}

func recordPipelineStats(stats *services.PipelineStats) {
	newTopicsCounter.Add(float64(stats.TopicsCreated))
	stageItemsCounter.WithLabelValues("summary").Add(float64(stats.Summaries))
	stageItemsCounter.WithLabelValues("classify").Add(float64(stats.ArticlesClassified))
	stageItemsCounter.WithLabelValues("details").Add(float64(stats.ArticlesAnalyzed))
	stageItemsCounter.WithLabelValues("shorts").Add(float64(stats.Shorts))
	stageItemsCounter.WithLabelValues("debates").Add(float64(stats.Debates))
	pipelineRunCounter.Inc()
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true, // Unique-Verletzungen werden zu gorm.ErrDuplicatedKey
	}
	var db *gorm.DB
	if cfg.UseSQLite() {
		logging.Info("Kein DB_HOST gesetzt, verwende lokale SQLite-Datenbank", zap.String("path", cfg.SQLitePath))
		db, err = gorm.Open(sqlite.Open(cfg.SQLitePath), gormConfig)
	} else {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	}
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to news database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(&models.Source{}, &models.Topic{}, &models.Article{}, &models.Short{}, &models.Debate{}); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	seedDefaultSource(db, cfg, logging)

	// Setup Providers
	generator := perplexity.NewClient(cfg, logging)
	embedder := embeddings.NewClient(cfg, logging)
	if cfg.PplxAPIKey == "" {
		logging.Warn("PPLX_API_KEY ist nicht gesetzt, Enrichment-Stages werden fehlschlagen")
	}
	if cfg.EmbeddingAPIKey == "" {
		logging.Warn("EMBEDDING_API_KEY ist nicht gesetzt, Clustering wird fehlschlagen")
	}

	// Setup Services
	tasks, err := services.NewTaskRunner(cfg.TaskPoolSize, logging)
	if err != nil {
		logging.Fatal("Task runner creation failed", zap.Error(err))
	}
	defer tasks.Release()

	clusterService := services.NewClusterService(cfg, db, embedder, logging)
	contentService := services.NewContentService(cfg, db, generator, logging)
	classifyService := services.NewClassifyService(cfg, db, generator, logging)
	debateService := services.NewDebateService(cfg, db, generator, tasks, logging)
	ingestService := services.NewIngestService(cfg, db, logging)
	pipeline := services.NewPipelineService(cfg, logging, generator, embedder,
		clusterService, contentService, classifyService, debateService)

	// Topic-Listen-Cache: feste TTL, keine aktive Invalidierung bei Writes.
	cacheTTL := time.Duration(cfg.TopicCacheTTL) * time.Minute
	topicCache := gocache.New(cacheTTL, 2*cacheTTL)

	// Setup Router
	router := gin.Default()
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "Harmoni news service is running."})
	})

	// Setup Routes
	setupTopicRoutes(router, db, topicCache, logging)
	setupArticleRoutes(router, db, ingestService, logging)
	setupShortRoutes(router, db, contentService, logging)
	setupDebateRoutes(router, debateService, logging)
	setupPipelineRoutes(router, pipeline, tasks, cfg, logging)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled pipeline job...")
		stats, err := pipeline.RunAll(context.Background())
		if err != nil {
			logging.Error("Cron pipeline run failed", zap.Error(err))
			return
		}
		recordPipelineStats(stats)
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      120 * time.Second, // SSE-Generierung blockiert den Stream
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// seedDefaultSource legt die Default-Source an, unter der der Scraper
// unklassifizierte Artikel abliefert.
func seedDefaultSource(db *gorm.DB, cfg *config.Config, log *zap.Logger) {
	source := models.Source{Name: cfg.DefaultSourceName, BiasLabel: "unknown"}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&source).Error; err != nil {
		log.Warn("Seeding der Default-Source fehlgeschlagen", zap.Error(err))
	}
}

// categoryKoreanMap übersetzt englische Kategorie-Codes in koreanische Labels.
var categoryKoreanMap = map[string]string{
	"politics":      "정치",
	"economy":       "경제",
	"society":       "사회",
	"culture":       "문화",
	"sports":        "스포츠",
	"entertainment": "연예",
	"world":         "국제",
	"tech":          "기술",
	"science":       "과학",
	"health":        "건강",
	"education":     "교육",
	"environment":   "환경",
	"etc":           "기타",
}

func translateCategory(category *string) *string {
	if category == nil {
		return nil
	}
	if korean, ok := categoryKoreanMap[*category]; ok {
		return &korean
	}
	return category
}

// dominantCategory bestimmt die häufigste Kategorie der Artikel eines Topics.
func dominantCategory(articles []models.Article) *string {
	counts := map[string]int{}
	for _, art := range articles {
		if art.Category != nil {
			counts[*art.Category]++
		}
	}
	best, bestCount := "", 0
	for cat, n := range counts {
		if n > bestCount {
			best, bestCount = cat, n
		}
	}
	if best == "" {
		return nil
	}
	return translateCategory(&best)
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

type topicArticleBrief struct {
	ArticleID    uint    `json:"article_id"`
	Title        string  `json:"title"`
	Category     *string `json:"category,omitempty"`
	ReporterName *string `json:"reporter_name,omitempty"`
}

type topicListEntry struct {
	TopicID           uint                `json:"topic_id"`
	CreatedAt         time.Time           `json:"created_at"`
	Category          *string             `json:"category,omitempty"`
	Articles          []topicArticleBrief `json:"articles"`
	ImageURL          *string             `json:"image_url,omitempty"`
	AiNeutralHeadline string              `json:"ai_neutral_headline"`
	AiSummary         *string             `json:"ai_summary,omitempty"`
}

type articleInTopic struct {
	ArticleID          uint    `json:"article_id"`
	OriginalTitle      string  `json:"original_title"`
	OriginalURL        string  `json:"original_url"`
	SourceName         string  `json:"source_name"`
	ReporterName       *string `json:"reporter_name,omitempty"`
	AiAlternativeTitle *string `json:"ai_alternative_title,omitempty"`
	AiBiasScore        float64 `json:"ai_bias_score"`
	AiReporterSummary  *string `json:"ai_reporter_summary,omitempty"`
}

func setupTopicRoutes(router *gin.Engine, db *gorm.DB, topicCache *gocache.Cache, log *zap.Logger) {
	rg := router.Group("/topics")

	// Liste aller Topics, cache-gestützt pro Sortiermodus. Leser sehen
	// nach Pipeline-Updates höchstens eine TTL lang veraltete Daten.
	rg.GET("", func(c *gin.Context) {
		sortBy := c.Query("sort_by")
		cacheKey := "topics_list_" + sortBy
		if cached, found := topicCache.Get(cacheKey); found {
			c.JSON(http.StatusOK, cached)
			return
		}

		var topics []models.Topic
		var err error
		if sortBy == "trending" {
			cutoff := time.Now().UTC().Add(-24 * time.Hour)
			err = db.Preload("Articles").Where("created_at >= ?", cutoff).Find(&topics).Error
		} else {
			err = db.Preload("Articles").Order("id desc").Limit(20).Find(&topics).Error
		}
		if err != nil {
			log.Error("Database query for topics failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		if sortBy == "trending" {
			// Nur Topics mit Artikeln, absteigend nach Artikelzahl, Top 5
			filtered := topics[:0]
			for _, t := range topics {
				if len(t.Articles) > 0 {
					filtered = append(filtered, t)
				}
			}
			topics = filtered
			sort.SliceStable(topics, func(i, j int) bool {
				return len(topics[i].Articles) > len(topics[j].Articles)
			})
			if len(topics) > 5 {
				topics = topics[:5]
			}
		}

		response := make([]topicListEntry, 0, len(topics))
		for _, topic := range topics {
			var thumb *string
			for _, art := range topic.Articles {
				if art.ImageURL != nil && *art.ImageURL != "" {
					thumb = art.ImageURL
					break
				}
			}

			// Ohne neutrale Headline dient der erste Rohtitel als Anzeige.
			displayTitle := ""
			if topic.AiNeutralHeadline != nil {
				displayTitle = *topic.AiNeutralHeadline
			} else if len(topic.Articles) > 0 {
				displayTitle = topic.Articles[0].Title
			}

			briefs := make([]topicArticleBrief, 0, len(topic.Articles))
			for _, art := range topic.Articles {
				briefs = append(briefs, topicArticleBrief{
					ArticleID:    art.ID,
					Title:        art.Title,
					Category:     translateCategory(art.Category),
					ReporterName: art.ReporterName,
				})
			}

			response = append(response, topicListEntry{
				TopicID:           topic.ID,
				CreatedAt:         topic.CreatedAt,
				Category:          dominantCategory(topic.Articles),
				Articles:          briefs,
				ImageURL:          thumb,
				AiNeutralHeadline: displayTitle,
				AiSummary:         topic.AiSummary,
			})
		}

		topicCache.Set(cacheKey, response, gocache.DefaultExpiration)
		c.JSON(http.StatusOK, response)
	})

	// Topic-Detailansicht mit links/center/rechts gruppierten Artikeln
	rg.GET("/:id", func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		var topic models.Topic
		if err := db.First(&topic, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "토픽을 찾을 수 없습니다."})
				return
			}
			log.Error("DB error loading topic", zap.Uint("topic_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		var articles []models.Article
		if err := db.Preload("Source").Where("topic_id = ?", id).Find(&articles).Error; err != nil {
			log.Error("DB error loading topic articles", zap.Uint("topic_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		grouped := map[string][]articleInTopic{
			"left": {}, "center": {}, "right": {}, "unknown": {},
		}
		for _, art := range articles {
			sourceName, biasLabel := "알수없음", "unknown"
			if art.Source != nil {
				sourceName = art.Source.Name
				biasLabel = art.Source.BiasLabel
			}
			entry := articleInTopic{
				ArticleID:          art.ID,
				OriginalTitle:      art.Title,
				OriginalURL:        art.URL,
				SourceName:         sourceName,
				ReporterName:       art.ReporterName,
				AiAlternativeTitle: art.AiAlternativeTitle,
				AiBiasScore:        art.AiBiasScore,
				AiReporterSummary:  art.AiReporterSummary,
			}
			if _, ok := grouped[biasLabel]; !ok {
				biasLabel = "unknown"
			}
			grouped[biasLabel] = append(grouped[biasLabel], entry)
		}

		// Repräsentativer Artikel: bevorzugt ein neutraler
		var representative *articleInTopic
		if len(grouped["center"]) > 0 {
			representative = &grouped["center"][0]
		} else {
			for _, key := range []string{"left", "right", "unknown"} {
				if len(grouped[key]) > 0 {
					representative = &grouped[key][0]
					break
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"topic_id":            topic.ID,
			"ai_neutral_headline": topic.AiNeutralHeadline,
			"ai_core_summary":     topic.AiSummary,
			"category":            dominantCategory(articles),
			"topic_body":          topic.Body,
			"article":             representative,
			"articles_left":       grouped["left"],
			"articles_center":     grouped["center"],
			"articles_right":      grouped["right"],
			"articles_unknown":    grouped["unknown"],
		})
	})
}

func setupArticleRoutes(router *gin.Engine, db *gorm.DB, ingest *services.IngestService, log *zap.Logger) {
	rg := router.Group("/articles")

	rg.GET("", func(c *gin.Context) {
		limit := 100
		if raw := c.Query("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}

		query := db.Preload("Source")
		if category := c.Query("category"); category != "" {
			query = query.Where("category = ?", category)
		}

		var articles []models.Article
		if err := query.Order("crawled_at desc").Limit(limit).Find(&articles).Error; err != nil {
			log.Error("Database query for articles failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		type articleListEntry struct {
			ArticleID    uint    `json:"article_id"`
			Title        string  `json:"title"`
			Press        string  `json:"press"`
			TopicID      *uint   `json:"topic_id,omitempty"`
			Category     *string `json:"category,omitempty"`
			ReporterName *string `json:"reporter_name,omitempty"`
		}

		response := make([]articleListEntry, 0, len(articles))
		for _, art := range articles {
			press := "알수없음"
			if art.Source != nil {
				press = art.Source.Name
			}
			response = append(response, articleListEntry{
				ArticleID:    art.ID,
				Title:        art.Title,
				Press:        press,
				TopicID:      art.TopicID,
				Category:     translateCategory(art.Category),
				ReporterName: art.ReporterName,
			})
		}
		c.JSON(http.StatusOK, response)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		var article models.Article
		if err := db.Preload("Source").First(&article, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "기사를 찾을 수 없습니다."})
				return
			}
			log.Error("DB error loading article", zap.Uint("article_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		press := "알수없음"
		if article.Source != nil {
			press = article.Source.Name
		}
		c.JSON(http.StatusOK, gin.H{
			"article_id":           article.ID,
			"title":                article.Title,
			"press":                press,
			"reporter_name":        article.ReporterName,
			"category":             translateCategory(article.Category),
			"body":                 article.Body,
			"url":                  article.URL,
			"image_url":            article.ImageURL,
			"crawled_at":           article.CrawledAt,
			"ai_alternative_title": article.AiAlternativeTitle,
			"ai_bias_score":        article.AiBiasScore,
			"ai_reporter_summary":  article.AiReporterSummary,
			"sentiment":            article.Sentiment,
		})
	})

	// Push-Endpunkt des externen Scrapers. Bekannte URLs werden nie
	// dupliziert, höchstens gezielt nachgetragen.
	rg.POST("/ingest", func(c *gin.Context) {
		var items []services.IncomingArticle
		if err := c.ShouldBindJSON(&items); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		created, backfilled := ingest.Ingest(items)
		newArticlesCounter.Add(float64(created))
		c.JSON(http.StatusOK, gin.H{
			"received":   len(items),
			"created":    created,
			"backfilled": backfilled,
		})
	})
}

func setupShortRoutes(router *gin.Engine, db *gorm.DB, content *services.ContentService, log *zap.Logger) {
	rg := router.Group("/shorts")

	rg.GET("/:topic_id", func(c *gin.Context) {
		topicID, ok := parseIDParam(c, "topic_id")
		if !ok {
			return
		}
		var short models.Short
		if err := db.Where("topic_id = ?", topicID).First(&short).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "아직 생성된 숏폼이 없습니다."})
				return
			}
			log.Error("DB error loading short", zap.Uint("topic_id", topicID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		var payload services.ShortPayload
		if err := json.Unmarshal(short.Content, &payload); err != nil {
			log.Error("Gespeichertes Short-Payload ist unlesbar", zap.Uint("topic_id", topicID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt short payload"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"topic_id":  topicID,
			"title":     payload.Title,
			"script":    payload.Script,
			"hashtags":  payload.Hashtags,
			"image_url": payload.ImageURL,
		})
	})

	// Generieren oder Regenerieren (überschreibt ein bestehendes Short)
	rg.POST("/:topic_id/generate", func(c *gin.Context) {
		topicID, ok := parseIDParam(c, "topic_id")
		if !ok {
			return
		}
		payload, err := content.GenerateShort(c.Request.Context(), topicID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "토픽을 찾을 수 없습니다."})
				return
			}
			log.Error("Short-Generierung fehlgeschlagen", zap.Uint("topic_id", topicID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "숏폼 생성 중 오류가 발생했습니다."})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"topic_id":  topicID,
			"title":     payload.Title,
			"script":    payload.Script,
			"hashtags":  payload.Hashtags,
			"image_url": payload.ImageURL,
		})
	})
}

// debateWithTopicID hängt die topic_id an das gespeicherte Debatten-Payload.
func debateWithTopicID(topicID uint, content json.RawMessage) gin.H {
	doc := gin.H{}
	_ = json.Unmarshal(content, &doc)
	doc["topic_id"] = topicID
	return doc
}

func setupDebateRoutes(router *gin.Engine, debate *services.DebateService, log *zap.Logger) {
	rg := router.Group("/debate")

	// Lesepfad mit On-Demand-Gate: existiert die Debatte nicht, wird sie
	// im Hintergrund generiert und sofort 202 + Platzhalter geliefert.
	rg.GET("/:topic_id", func(c *gin.Context) {
		topicID, ok := parseIDParam(c, "topic_id")
		if !ok {
			return
		}

		content, pending, err := debate.GetOrSchedule(topicID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "토픽을 찾을 수 없습니다."})
				return
			}
			log.Error("Debatten-Abruf fehlgeschlagen", zap.Uint("topic_id", topicID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if pending {
			c.JSON(http.StatusAccepted, gin.H{
				"topic_id":       topicID,
				"topic_headline": "토론 생성 중...",
				"debaters":       gin.H{},
				"rounds":         []gin.H{},
				"conclusion": gin.H{
					"summary":        "AI가 토론을 준비하고 있습니다. 잠시만 기다려주세요.",
					"key_points":     []string{},
					"recommendation": "",
				},
			})
			return
		}
		c.JSON(http.StatusOK, debateWithTopicID(topicID, content))
	})

	rg.GET("/:topic_id/status", func(c *gin.Context) {
		topicID, ok := parseIDParam(c, "topic_id")
		if !ok {
			return
		}
		_, err := debate.Get(topicID)
		hasDebate := err == nil
		message := "토론이 존재합니다."
		if !hasDebate {
			message = "토론이 아직 생성되지 않았습니다."
		}
		c.JSON(http.StatusOK, gin.H{
			"topic_id":   topicID,
			"has_debate": hasDebate,
			"message":    message,
		})
	})

	rg.POST("/:topic_id/regenerate", func(c *gin.Context) {
		topicID, ok := parseIDParam(c, "topic_id")
		if !ok {
			return
		}
		content, err := debate.Regenerate(c.Request.Context(), topicID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "토픽을 찾을 수 없습니다."})
				return
			}
			log.Error("Debatten-Regenerierung fehlgeschlagen", zap.Uint("topic_id", topicID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "토론 재생성 중 오류가 발생했습니다."})
			return
		}
		c.JSON(http.StatusOK, debateWithTopicID(topicID, content))
	})

	rg.POST("/:topic_id/generate-async", func(c *gin.Context) {
		topicID, ok := parseIDParam(c, "topic_id")
		if !ok {
			return
		}
		_, pending, err := debate.GetOrSchedule(topicID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "토픽을 찾을 수 없습니다."})
				return
			}
			log.Error("Async-Debattengenerierung fehlgeschlagen", zap.Uint("topic_id", topicID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if !pending {
			c.JSON(http.StatusOK, gin.H{"message": "토론이 이미 존재합니다.", "topic_id": topicID})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"message":  "토론 생성이 시작되었습니다. 잠시 후 조회해주세요.",
			"topic_id": topicID,
		})
	})

	// Streaming-Variante: complete sofort bei Cache-Hit, sonst generating →
	// Inline-Generierung (blockiert nur diesen Stream) → complete/error.
	rg.GET("/:topic_id/sse", func(c *gin.Context) {
		topicID, ok := parseIDParam(c, "topic_id")
		if !ok {
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")

		writeEvent := func(event string, data string) {
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
			c.Writer.Flush()
		}

		if content, err := debate.Get(topicID); err == nil {
			writeEvent("complete", string(content))
			return
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			writeEvent("error", err.Error())
			return
		}

		writeEvent("status", "generating")

		content, err := debate.Generate(c.Request.Context(), topicID)
		if err != nil {
			log.Error("SSE-Debattengenerierung fehlgeschlagen", zap.Uint("topic_id", topicID), zap.Error(err))
			writeEvent("error", err.Error())
			return
		}
		writeEvent("complete", string(content))
	})
}

func setupPipelineRoutes(router *gin.Engine, pipeline *services.PipelineService, tasks *services.TaskRunner, cfg *config.Config, log *zap.Logger) {
	// Trigger für den externen Scheduler: Shared-Secret im Pfad, sofortige
	// Bestätigung, Arbeit läuft im Hintergrund weiter. Überlappende Läufe
	// werden nicht verhindert (bekanntes Risiko).
	router.POST("/run-tasks/:secret", func(c *gin.Context) {
		if cfg.CronSecretKey == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "CRON_SECRET_KEY가 서버에 설정되지 않았습니다."})
			return
		}
		if c.Param("secret") != cfg.CronSecretKey {
			c.JSON(http.StatusForbidden, gin.H{"error": "잘못된 접근입니다 (Invalid Secret)."})
			return
		}

		tasks.Submit("full-pipeline", func() {
			stats, err := pipeline.RunAll(context.Background())
			if err != nil {
				log.Error("Triggered pipeline run failed", zap.Error(err))
				return
			}
			recordPipelineStats(stats)
		})
		c.JSON(http.StatusAccepted, gin.H{"message": "백그라운드 작업이 시작되었습니다."})
	})
}
