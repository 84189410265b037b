package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"gopkg.in/yaml.v3"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	Server      ServerConfig
	Log         LogConfig
	Mongo       MongoConfig
	Auth        AuthConfig
	LLM         LLMConfig
	Prompts     PromptConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = strings.TrimSpace(os.Getenv("GROQ_API_KEY"))
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	switch cfg.LLM.Provider {
	case ProviderOpenAI, ProviderArk:
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER value %q", cfg.LLM.Provider)
	}

	if cfg.Prompts.File != "" {
		if err := cfg.Prompts.mergeFile(cfg.Prompts.File); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Production 表示是否运行在生产环境，生产环境不向客户端暴露错误细节。
func (c *Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port              string `env:"PORT" envDefault:"8080"`
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`
	Addr              string `env:"-"`
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}

// MongoConfig 描述文档数据库连接。URI 为空时使用内存存储。
type MongoConfig struct {
	URI            string        `env:"MONGO_URI"`
	Database       string        `env:"MONGO_DATABASE" envDefault:"loan_coach"`
	Collection     string        `env:"MONGO_COLLECTION" envDefault:"conversations"`
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" envDefault:"10s"`
}

// Enabled 表示是否配置了数据库。
func (c MongoConfig) Enabled() bool {
	return strings.TrimSpace(c.URI) != ""
}

// AuthConfig 描述调用方身份解析方式。
type AuthConfig struct {
	JWTSecret           string `env:"AUTH_JWT_SECRET"`
	JWTIssuer           string `env:"AUTH_JWT_ISSUER"`
	TrustGatewayHeaders bool   `env:"AUTH_TRUST_GATEWAY_HEADERS" envDefault:"false"`
}

const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// LLMConfig 描述大模型相关配置。
type LLMConfig struct {
	Provider    string  `env:"LLM_PROVIDER" envDefault:"openai"`
	APIKey      string  `env:"LLM_API_KEY"`
	BaseURL     string  `env:"LLM_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	Model       string  `env:"LLM_MODEL"`
	Temperature float32 `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	MaxTokens   int     `env:"LLM_MAX_TOKENS" envDefault:"500"`
	Ark         ArkConfig
}

// Enabled 表示是否提供了必需的密钥。
func (c LLMConfig) Enabled() bool {
	if c.Provider == ProviderArk {
		return c.Model != "" && c.Ark.Enabled()
	}
	return c.Model != "" && c.APIKey != ""
}

// ArkConfig 描述火山方舟的凭证。
type ArkConfig struct {
	APIKey    string `env:"ARK_API_KEY"`
	AccessKey string `env:"ARK_ACCESS_KEY"`
	SecretKey string `env:"ARK_SECRET_KEY"`
	BaseURL   string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region    string `env:"ARK_REGION" envDefault:"cn-beijing"`
}

// Enabled 表示是否提供了 API Key 或 AK/SK 组合。
func (c ArkConfig) Enabled() bool {
	return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
}

// NewChatModel 使用配置创建一个方舟模型实例。
func (c LLMConfig) NewChatModel(ctx context.Context) (*ark.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + LLM_MODEL 或 AK/SK 组合")
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.Ark.BaseURL,
		Region:    c.Ark.Region,
		APIKey:    c.Ark.APIKey,
		AccessKey: c.Ark.AccessKey,
		SecretKey: c.Ark.SecretKey,
		Model:     c.Model,
	})
}

// PromptConfig 描述模拟客户的系统提示模板。
type PromptConfig struct {
	Easy string `env:"PROMPT1"`
	Hard string `env:"PROMPT2"`
	File string `env:"PROMPTS_FILE"`
}

type promptFile struct {
	Easy string `yaml:"easy"`
	Hard string `yaml:"hard"`
}

// mergeFile 从 YAML 文件补齐未通过环境变量设置的模板。
func (c *PromptConfig) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompts file: %w", err)
	}

	var file promptFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse prompts file %s: %w", path, err)
	}

	if c.Easy == "" {
		c.Easy = file.Easy
	}
	if c.Hard == "" {
		c.Hard = file.Hard
	}
	return nil
}
