package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	// Datenbank. Bleibt DBHost leer, fällt der Service auf eine lokale
	// SQLite-Datei zurück (lokale Entwicklung ohne Postgres).
	DBHost     string `envconfig:"DB_HOST"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"harmoni"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"news.db"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"8000"`

	// Optionaler API-Key für alle HTTP-Endpunkte (Header X-API-KEY).
	// Leer = Auth deaktiviert (lokale Entwicklung).
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Text-Generierung (Perplexity, OpenAI-kompatible API)
	PplxAPIKey  string `envconfig:"PPLX_API_KEY"`
	PplxBaseURL string `envconfig:"PPLX_BASE_URL" default:"https://api.perplexity.ai"`
	PplxModel   string `envconfig:"PPLX_MODEL" default:"sonar-pro"`
	// Timeout pro Provider-Aufruf in Sekunden
	PplxTimeout int `envconfig:"PPLX_TIMEOUT" default:"60"`

	// Embeddings
	EmbeddingAPIKey  string `envconfig:"EMBEDDING_API_KEY"`
	EmbeddingBaseURL string `envconfig:"EMBEDDING_BASE_URL"`
	EmbeddingModel   string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingTimeout int    `envconfig:"EMBEDDING_TIMEOUT" default:"30"`

	// Clustering-Policy: Epsilon steuert die Paraphrasen-Toleranz,
	// MinPts verhindert Einzelartikel-Topics.
	ClusterEpsilon float64 `envconfig:"CLUSTER_EPSILON" default:"0.5"`
	ClusterMinPts  int     `envconfig:"CLUSTER_MIN_PTS" default:"2"`
	ClusterBatch   int     `envconfig:"CLUSTER_BATCH" default:"100"`

	// Batch-Limits der Enrichment-Stages
	SummaryBatch  int `envconfig:"SUMMARY_BATCH" default:"50"`
	ClassifyBatch int `envconfig:"CLASSIFY_BATCH" default:"30"`
	DetailBatch   int `envconfig:"DETAIL_BATCH" default:"30"`
	ShortsBatch   int `envconfig:"SHORTS_BATCH" default:"100"`
	DebateBatch   int `envconfig:"DEBATE_BATCH" default:"50"`

	// Zeichen-Budget pro Artikel beim Prompt-Bau
	ContextCharLimit int `envconfig:"CONTEXT_CHAR_LIMIT" default:"500"`

	CronSchedule  string `envconfig:"CRON_SCHEDULE" default:"0 * * * *"`
	CronSecretKey string `envconfig:"CRON_SECRET_KEY"`

	// TTL des Topic-Listen-Caches in Minuten
	TopicCacheTTL int `envconfig:"TOPIC_CACHE_TTL" default:"5"`

	// Größe des Hintergrund-Workerpools
	TaskPoolSize int `envconfig:"TASK_POOL_SIZE" default:"4"`

	// Name der Default-Source, unter der der Scraper Artikel ohne
	// erkannten Verlag abliefert. Die Klassifikations-Stage ordnet
	// diese Artikel später echten Verlagen zu.
	DefaultSourceName string `envconfig:"DEFAULT_SOURCE_NAME" default:"네이버뉴스"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// UseSQLite meldet, ob die lokale SQLite-Fallback-Datenbank verwendet wird.
func (c *Config) UseSQLite() bool {
	return c.DBHost == ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
