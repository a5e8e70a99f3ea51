// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（密码、密钥）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 凭据单一数据源：
//
//	密码/密钥只存在 .env 文件中（YAML 中不存储任何密码）。
//
// 环境：
//   - 开发: APP_ENV=dev (默认) → configs/dev.yaml
//   - 测试: APP_ENV=test → configs/test.yaml
//   - 生产: APP_ENV=prod → configs/prod.yaml
package config

import "time"

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Auth     YAMLAuthConfig `yaml:"auth"`
	Mail     MailConfig     `yaml:"mail"`
}

// YAMLAuthConfig YAML 中的认证配置（TTL 为时长字符串，加载时解析）
type YAMLAuthConfig struct {
	AccessTokenTTL  string `yaml:"access_token_ttl"`  // 例如 "15m"
	RefreshTokenTTL string `yaml:"refresh_token_ttl"` // 例如 "168h"
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port string `yaml:"port"`
	// PublicURL 对外可达的基础 URL（重置密码链接用）
	PublicURL string `yaml:"public_url"`
}

// DatabaseConfig MongoDB 配置
type DatabaseConfig struct {
	URI  string `yaml:"uri"`  // 如 mongodb://localhost:27017，密码经 MONGO_URI 环境变量覆盖
	Name string `yaml:"name"` // 数据库名称
}

// RedisConfig Redis 配置（认证限流，可选）
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"` // 只从 REDIS_PASSWORD 环境变量读取
}

// MinIOConfig MinIO 对象存储配置（图片）
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000
	AccessKey string `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// AuthConfig 认证配置（最终形态）
// 密钥和管理员凭据只从环境变量读取，不存储在 YAML 中
type AuthConfig struct {
	AccessTokenSecret  string        // 只从 JWT_ACCESS_SECRET 环境变量读取
	RefreshTokenSecret string        // 只从 JWT_REFRESH_SECRET 环境变量读取
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	AdminEmail         string // 只从 ADMIN_EMAIL 环境变量读取
	AdminPassword      string // 只从 ADMIN_PASSWORD 环境变量读取
}

// MailConfig SMTP 邮件投递配置
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"-"` // 只从 SMTP_USERNAME 环境变量读取
	Password string `yaml:"-"` // 只从 SMTP_PASSWORD 环境变量读取
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env      Environment
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	MinIO    MinIOConfig
	Auth     AuthConfig
	Mail     MailConfig
}

// IsProduction 是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}
