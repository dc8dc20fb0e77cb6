package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var GlobalConfig *Config

// Config 全局配置
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Log          LogConfig          `mapstructure:"log"`
	Core         CoreConfig         `mapstructure:"core"`
	Source       SourceConfig       `mapstructure:"source"`
	Hosting      HostingConfig      `mapstructure:"hosting"`
	Notification NotificationConfig `mapstructure:"notification"`
	Template     TemplateConfig     `mapstructure:"template"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name string `mapstructure:"name"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release

	AllowOrigins []string `mapstructure:"allow_origins"` // CORS, 前端控制台地址
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // mysql, postgres, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"` // sqlite 时为文件路径
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	LogLevel        string `mapstructure:"log_level"`         // SQL日志级别: silent/error/warn/info
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWT JWTConfig `mapstructure:"jwt"`
}

// JWTConfig JWT配置, token 由外部登录服务签发
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`  // debug, info, warn, error
	Format   string `mapstructure:"format"` // json, console
	Output   string `mapstructure:"output"` // stdout, file
	FilePath string `mapstructure:"file_path"`
}

// CoreConfig Core模块配置
type CoreConfig struct {
	ScanInterval    string       `mapstructure:"scan_interval"`    // deploying 状态复查间隔
	ScanConcurrency int          `mapstructure:"scan_concurrency"` // 单次复查并发数
	ScanBatchSize   int          `mapstructure:"scan_batch_size"`
	ReapCron        string       `mapstructure:"reap_cron"`    // 中断步骤回收
	StaleAfter      string       `mapstructure:"stale_after"`  // 步骤超过该时长未推进视为中断
	StepTimeout     string       `mapstructure:"step_timeout"` // 单次外部调用超时
	Poll            PollConfig   `mapstructure:"poll"`
	Naming          NamingConfig `mapstructure:"naming"`
}

// PollConfig 构建状态轮询配置
type PollConfig struct {
	MaxAttempts int    `mapstructure:"max_attempts"`
	Interval    string `mapstructure:"interval"`
}

// NamingConfig 仓库命名配置
type NamingConfig struct {
	Prefix        string `mapstructure:"prefix"`
	MaxSlugLength int    `mapstructure:"max_slug_length"`
}

// SourceConfig 代码仓库平台配置
type SourceConfig struct {
	Provider string       `mapstructure:"provider"` // github, mock
	GitHub   GitHubConfig `mapstructure:"github"`
}

// GitHubConfig GitHub配置
type GitHubConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	Token         string `mapstructure:"token"`
	Owner         string `mapstructure:"owner"`
	OwnerType     string `mapstructure:"owner_type"` // user, organization
	Private       bool   `mapstructure:"private"`
	DefaultBranch string `mapstructure:"default_branch"`
}

// HostingConfig 托管平台配置
type HostingConfig struct {
	Provider   string           `mapstructure:"provider"` // cloudflare, mock
	Cloudflare CloudflareConfig `mapstructure:"cloudflare"`
}

// CloudflareConfig Cloudflare Pages配置
type CloudflareConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	APIToken          string `mapstructure:"api_token"`
	AccountID         string `mapstructure:"account_id"`
	CompatibilityDate string `mapstructure:"compatibility_date"`
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	Enabled     bool        `mapstructure:"enabled"`   // 是否启用
	Providers   []string    `mapstructure:"providers"` // email, lark, log
	AppURL      string      `mapstructure:"app_url"`   // 控制台地址, 用于生成详情链接
	Email       EmailConfig `mapstructure:"email"`
	LarkWebhook string      `mapstructure:"lark_webhook"`
	Timeout     string      `mapstructure:"timeout"`
}

// EmailConfig 邮件(Resend)配置
type EmailConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	From    string `mapstructure:"from"`
}

// TemplateConfig 落地页模板配置
type TemplateConfig struct {
	Dir string `mapstructure:"dir"` // 为空时使用内置模板
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	// .env 仅用于本地开发, 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// 读取环境变量, 例如 SOURCE_GITHUB_TOKEN -> source.github.token
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// 设置全局配置
	GlobalConfig = config

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "landing-cd")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("core.scan_interval", "30s")
	v.SetDefault("core.scan_concurrency", 4)
	v.SetDefault("core.scan_batch_size", 100)
	v.SetDefault("core.reap_cron", "0 */10 * * * *")
	v.SetDefault("core.stale_after", "30m")
	v.SetDefault("core.step_timeout", "60s")
	v.SetDefault("core.poll.max_attempts", 3)
	v.SetDefault("core.poll.interval", "5s")
	v.SetDefault("core.naming.prefix", "landing")
	v.SetDefault("core.naming.max_slug_length", 30)

	v.SetDefault("source.provider", "github")
	v.SetDefault("source.github.base_url", "https://api.github.com")
	v.SetDefault("source.github.owner_type", "user")
	v.SetDefault("source.github.default_branch", "main")

	v.SetDefault("hosting.provider", "cloudflare")
	v.SetDefault("hosting.cloudflare.base_url", "https://api.cloudflare.com/client/v4")
	v.SetDefault("hosting.cloudflare.compatibility_date", "2024-01-01")

	v.SetDefault("notification.enabled", true)
	v.SetDefault("notification.providers", []string{"log"})
	v.SetDefault("notification.timeout", "10s")
	v.SetDefault("notification.email.base_url", "https://api.resend.com")
	v.SetDefault("notification.email.from", "noreply@example.com")
}

const minStaleFactor = 3

// Validate 校验关键配置
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"core.scan_interval": c.Core.ScanInterval,
		"core.stale_after":   c.Core.StaleAfter,
		"core.step_timeout":  c.Core.StepTimeout,
		"core.poll.interval": c.Core.Poll.Interval,
	} {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("配置项 %s 无效: %q", name, raw)
		}
	}
	// 回收阈值需覆盖一个步骤及其后的通知, 否则仍在执行的步骤会被误判为中断
	if stale, step := Duration(c.Core.StaleAfter, 0), Duration(c.Core.StepTimeout, 0); stale < minStaleFactor*step {
		return fmt.Errorf("配置项 core.stale_after(%s) 至少为 core.step_timeout(%s) 的 %d 倍", stale, step, minStaleFactor)
	}
	if c.Core.Poll.MaxAttempts < 1 {
		return fmt.Errorf("配置项 core.poll.max_attempts 必须大于0")
	}
	if c.Source.Provider == "github" && (c.Source.GitHub.Token == "" || c.Source.GitHub.Owner == "") {
		return fmt.Errorf("source.github.token 与 source.github.owner 不能为空")
	}
	if c.Hosting.Provider == "cloudflare" && (c.Hosting.Cloudflare.APIToken == "" || c.Hosting.Cloudflare.AccountID == "") {
		return fmt.Errorf("hosting.cloudflare.api_token 与 hosting.cloudflare.account_id 不能为空")
	}
	return nil
}

// Duration 解析时长, 失败时返回默认值
func Duration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetDSN 获取数据库DSN
func (c *DatabaseConfig) GetDSN() string {
	switch c.Driver {
	case "postgres":
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.Username, c.Password, c.Database, sslMode)
	case "sqlite":
		return c.Database
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.Username,
			c.Password,
			c.Host,
			c.Port,
			c.Database,
		)
	}
}
