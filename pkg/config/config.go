package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Search   SearchConfig
	Vector   VectorConfig
	Analysis AnalysisConfig
	Dataset  DatasetConfig
	Output   OutputConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LLMConfig struct {
	APIKey         string
	Model          string
	Temperature    float32
	MaxTokens      int
	EmbeddingModel string
	EmbeddingDim   int
}

type SearchConfig struct {
	GoogleAPIKey string
	GoogleCSEID  string
	ProbeQuery   string
	MaxHits      int
	TimeoutSec   int
	MinDelayMS   int
	MaxDelayMS   int
	CooldownSec  int
	CacheEnabled bool
	CacheTTLMin  int
}

type VectorConfig struct {
	Provider       string
	MilvusEndpoint string
}

type AnalysisConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	TopCases       int
	MaxFindings    int
	TrustedDomains []string
	RiskKeywords   []string
}

type DatasetConfig struct {
	Path string
}

type OutputConfig struct {
	Dir string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/minewatch")

	viper.SetEnvPrefix("MINEWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 120)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("sqlite.path", "./data/minewatch.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.embeddingDim", 1536)

	viper.SetDefault("search.probeQuery", "mineração Brasil")
	viper.SetDefault("search.maxHits", 5)
	viper.SetDefault("search.timeoutSec", 10)
	viper.SetDefault("search.minDelayMS", 1500)
	viper.SetDefault("search.maxDelayMS", 2500)
	viper.SetDefault("search.cooldownSec", 5)
	viper.SetDefault("search.cacheEnabled", false)
	viper.SetDefault("search.cacheTTLMin", 360)

	viper.SetDefault("vector.provider", "memory")
	viper.SetDefault("vector.milvusEndpoint", "localhost:19530")

	viper.SetDefault("analysis.chunkSize", 1000)
	viper.SetDefault("analysis.chunkOverlap", 200)
	viper.SetDefault("analysis.topK", 8)
	viper.SetDefault("analysis.topCases", 10)
	viper.SetDefault("analysis.maxFindings", 5)
	viper.SetDefault("analysis.trustedDomains", []string{
		"terrasindigenas.org.br",
		"mpf.mp.br",
		"ibama.gov.br",
		"funai.gov.br",
		"socioambiental.org",
		"cimi.org.br",
		"imazon.org.br",
		"inesc.org.br",
		"apublica.org",
		"reporterbrasil.org.br",
	})
	viper.SetDefault("analysis.riskKeywords", []string{
		"terra indígena",
		"conflito",
		"ameaça",
		"impacto",
		"ambiental",
		"comunidade",
		"protesto",
		"multa",
		"ação civil",
		"ministério público",
		"sobreposição",
		"desmatamento",
		"poluição",
		"contaminação",
	})

	viper.SetDefault("dataset.path", "./data/processos.csv")

	viper.SetDefault("output.dir", "./output")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
