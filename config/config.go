package config

import (
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/redis/go-redis/v9"
)

// Config - Global variable to export
var Config AppConfig

// AppConfig defines the application configuration
type AppConfig struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Temporal  TemporalConfig  `koanf:"temporal"`
	Cache     CacheConfig     `koanf:"cache"`
	Minio     MinioConfig     `koanf:"minio"`
	Milvus    MilvusConfig    `koanf:"milvus"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Worker    WorkerConfig    `koanf:"worker"`
	Sweeper   SweeperConfig   `koanf:"sweeper"`
	Embedding EmbeddingConfig `koanf:"embedding"`
}

// ServerConfig defines HTTP server configurations
type ServerConfig struct {
	PublicPort int  `koanf:"publicport"`
	Debug      bool `koanf:"debug"`
}

// DatabaseConfig related to database
type DatabaseConfig struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Name     string `koanf:"name"`
	TimeZone string `koanf:"timezone"`
	Pool     struct {
		IdleConnections int           `koanf:"idleconnections"`
		MaxConnections  int           `koanf:"maxconnections"`
		ConnLifeTime    time.Duration `koanf:"connlifetime"`
	} `koanf:"pool"`
}

// TemporalConfig is the Temporal server configuration.
type TemporalConfig struct {
	HostPort  string `koanf:"hostport"`
	Namespace string `koanf:"namespace"`
}

// CacheConfig related to Redis
type CacheConfig struct {
	Redis struct {
		RedisOptions redis.Options `koanf:"redisoptions"`
	} `koanf:"redis"`
}

// MinioConfig is the object storage configuration for listing images.
type MinioConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	RootUser   string `koanf:"rootuser"`
	RootPwd    string `koanf:"rootpwd"`
	BucketName string `koanf:"bucketname"`
	Secure     bool   `koanf:"secure"`
}

// MilvusConfig is the milvus configuration.
type MilvusConfig struct {
	Host string `koanf:"host"`
	Port string `koanf:"port"`
}

// OpenAIConfig defines the configuration for the vision provider used by the
// content analyzer.
type OpenAIConfig struct {
	APIKey string `koanf:"apikey"`
	Model  string `koanf:"model"`
}

// WorkerConfig bounds the Temporal worker's concurrency. Activity and
// workflow-task caps are independent so that coordination tasks don't starve
// behind slow activities.
type WorkerConfig struct {
	MaxConcurrentActivities    int `koanf:"maxconcurrentactivities"`
	MaxConcurrentWorkflowTasks int `koanf:"maxconcurrentworkflowtasks"`
}

// SweeperConfig controls the stuck-workflow reconciliation job.
type SweeperConfig struct {
	Interval     time.Duration `koanf:"interval"`
	StaleTimeout time.Duration `koanf:"staletimeout"`
}

// EmbeddingConfig defines the configuration for the text encoder.
type EmbeddingConfig struct {
	Dimension int `koanf:"dimension"`
}

// Init - Assign global config to decoded config struct
func Init(filePath string) error {
	k := koanf.New(".")
	parser := yaml.Parser()

	if err := k.Load(confmap.Provider(map[string]any{
		"worker.maxconcurrentactivities":    10,
		"worker.maxconcurrentworkflowtasks": 100,
		"sweeper.interval":                  time.Minute,
		"sweeper.staletimeout":              5 * time.Minute,
		"embedding.dimension":               512,
		"openai.model":                      "gpt-4o-mini",
	}, "."), nil); err != nil {
		log.Fatal(err.Error())
	}

	if err := k.Load(file.Provider(filePath), parser); err != nil {
		log.Fatal(err.Error())
	}

	if err := k.Load(env.ProviderWithValue("CFG_", ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CFG_")), "_", ".")
		if strings.Contains(v, ",") {
			return key, strings.Split(strings.TrimSpace(v), ",")
		}
		return key, v
	}), nil); err != nil {
		return err
	}

	if err := k.Unmarshal("", &Config); err != nil {
		return err
	}

	return ValidateConfig(&Config)
}

// ValidateConfig is for custom validation rules for the configuration
func ValidateConfig(cfg *AppConfig) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return nil
}

var defaultConfigPath = "config/config.yaml"

// ParseConfigFlag allows clients to specify the relative path to the file from
// which the configuration will be loaded.
func ParseConfigFlag() string {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("file", defaultConfigPath, "configuration file")
	flag.Parse()

	return *configPath
}
