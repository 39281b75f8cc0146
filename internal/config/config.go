// Package config 负责加载和管理应用程序的配置
// 使用 viper 库支持 YAML 配置文件和环境变量覆盖
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 是应用程序的根配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`     // 服务器配置
	MySQL     MySQLConfig     `mapstructure:"mysql"`      // MySQL 配置
	Redis     RedisConfig     `mapstructure:"redis"`      // Redis 配置
	JWT       JWTConfig       `mapstructure:"jwt"`        // JWT 配置
	Log       LogConfig       `mapstructure:"log"`        // 日志配置
	AI        AIConfig        `mapstructure:"ai"`         // 模型服务配置
	Document  DocumentConfig  `mapstructure:"document"`   // 文档解析配置
	RateLimit RateLimitConfig `mapstructure:"rate_limit"` // 限流配置
}

// ServerConfig 服务器相关配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`          // 监听端口
	Mode         string        `mapstructure:"mode"`          // 运行模式: debug / release
	CORS         []string      `mapstructure:"cors"`          // CORS 允许的域名
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`  // 读超时
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 写超时，需大于 ai.timeout
}

// MySQLConfig MySQL 数据库连接配置
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Charset      string `mapstructure:"charset"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxLifetime  int    `mapstructure:"max_lifetime"` // 连接最大生命周期（秒）
}

// DSN 构建 MySQL 连接串
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret       string        `mapstructure:"secret"`        // JWT 签名密钥，至少32字符
	AccessExpire time.Duration `mapstructure:"access_expire"` // Access Token 过期时间
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"` // 日志级别: debug/info/warn/error
}

// AIConfig 模型服务配置
// 进程启动时构建一次，之后只读
type AIConfig struct {
	APIKey          string        `mapstructure:"api_key"`          // 模型服务 API Key
	BaseURL         string        `mapstructure:"base_url"`         // 例如 https://api.mistral.ai
	ChatModel       string        `mapstructure:"chat_model"`       // 对话使用的模型
	ExtractionModel string        `mapstructure:"extraction_model"` // 文档结构化使用的模型
	Timeout         time.Duration `mapstructure:"timeout"`          // 单次调用超时
}

// DocumentConfig 文档上传与解析配置
type DocumentConfig struct {
	MaxUploadBytes   int64         `mapstructure:"max_upload_bytes"`   // 上传大小上限
	PromptCharBudget int           `mapstructure:"prompt_char_budget"` // 发送给模型的最大字符数
	SummaryChars     int           `mapstructure:"summary_chars"`      // 降级摘要的字符数
	PDFToTextPath    string        `mapstructure:"pdftotext_path"`     // pdftotext 可执行文件
	ExtractTimeout   time.Duration `mapstructure:"extract_timeout"`    // 文本提取超时
}

// RateLimitConfig /api 限流配置（固定窗口）
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// Load 从指定路径加载配置文件
// 支持环境变量覆盖配置项
// 参数:
//   - configPath: 配置文件目录路径 (如 "./configs")
//
// 返回:
//   - *Config: 配置对象
//   - error: 如果加载失败则返回错误
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	// 例如: MYSQL_HOST -> mysql.host
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVariables(v)
	setDefaults(v)

	// 配置文件不存在时继续使用默认值和环境变量
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查启动所必需的配置
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return errors.New("jwt.secret must be at least 32 characters")
	}
	if c.AI.Timeout <= 0 {
		return errors.New("ai.timeout must be positive")
	}
	if c.Document.PromptCharBudget <= 0 || c.Document.SummaryChars <= 0 {
		return errors.New("document.prompt_char_budget and document.summary_chars must be positive")
	}
	return nil
}

// bindEnvVariables 绑定环境变量到配置项
func bindEnvVariables(v *viper.Viper) {
	// 服务器配置
	_ = v.BindEnv("server.port", "PORT", "SERVER_PORT")
	_ = v.BindEnv("server.mode", "SERVER_MODE")

	// MySQL 配置
	_ = v.BindEnv("mysql.host", "MYSQL_HOST")
	_ = v.BindEnv("mysql.port", "MYSQL_PORT")
	_ = v.BindEnv("mysql.username", "MYSQL_USERNAME")
	_ = v.BindEnv("mysql.password", "MYSQL_PASSWORD")
	_ = v.BindEnv("mysql.database", "MYSQL_DATABASE")

	// Redis 配置
	_ = v.BindEnv("redis.host", "REDIS_HOST")
	_ = v.BindEnv("redis.port", "REDIS_PORT")
	_ = v.BindEnv("redis.username", "REDIS_USERNAME")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT 配置
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")

	// 模型服务配置
	_ = v.BindEnv("ai.api_key", "MISTRAL_API_KEY")
	_ = v.BindEnv("ai.base_url", "MISTRAL_BASE_URL")
	_ = v.BindEnv("ai.timeout", "AI_TIMEOUT")
}

// setDefaults 设置配置项的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors", []string{"http://localhost:5173"})
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "150s")

	// MySQL 默认配置
	v.SetDefault("mysql.host", "localhost")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.database", "neural_chat")
	v.SetDefault("mysql.charset", "utf8mb4")
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.max_open_conns", 100)
	v.SetDefault("mysql.max_lifetime", 3600)

	// Redis 默认配置
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 50)

	// JWT 默认配置：15 天
	v.SetDefault("jwt.access_expire", "360h")

	v.SetDefault("log.level", "info")

	// 模型服务默认配置
	v.SetDefault("ai.base_url", "https://api.mistral.ai")
	v.SetDefault("ai.chat_model", "open-mistral-7b")
	v.SetDefault("ai.extraction_model", "mistral-small-latest")
	v.SetDefault("ai.timeout", "60s")

	// 文档解析默认配置
	v.SetDefault("document.max_upload_bytes", 5<<20)
	v.SetDefault("document.prompt_char_budget", 15000)
	v.SetDefault("document.summary_chars", 500)
	v.SetDefault("document.pdftotext_path", "pdftotext")
	v.SetDefault("document.extract_timeout", "2m")

	// 限流：15 分钟 100 次
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "15m")
}
