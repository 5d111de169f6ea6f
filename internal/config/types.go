package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// ByteSize 表示以字节计的容量，配置中可写 "50MiB"、"1GB" 或纯数字。
type ByteSize int64

// UnmarshalText 通过 go-humanize 解析带单位的容量字符串。
func (b *ByteSize) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*b = ByteSize(0)
		return nil
	}
	parsed, err := humanize.ParseBytes(raw)
	if err != nil {
		return fmt.Errorf("invalid byte size value: %s", raw)
	}
	*b = ByteSize(parsed)
	return nil
}

// Int64 返回字节数。
func (b ByteSize) Int64() int64 {
	return int64(b)
}

// String 输出人类可读的容量，例如 "50 MiB"。
func (b ByteSize) String() string {
	if b < 0 {
		return strconv.FormatInt(int64(b), 10)
	}
	return humanize.IBytes(uint64(b))
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// LogConfig 控制日志级别与落盘轮转策略。
type LogConfig struct {
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// Config 是进程级只读配置：启动时构建一次，随后以指针注入到各个组件。
type Config struct {
	Log LogConfig `mapstructure:",squash"`

	// ListenAddr 为主 HTTP 监听地址（上传 + 预览站点）。
	ListenAddr string `mapstructure:"ListenAddr"`
	// AdminAddr 为诊断/指标监听地址，留空表示关闭。
	AdminAddr string `mapstructure:"AdminAddr"`

	DataDir    string `mapstructure:"DataDir"`
	BaseDomain string `mapstructure:"BaseDomain"`
	APIToken   string `mapstructure:"APIToken"`
	// UseHTTPS 只影响返回的 preview_url 协议，本身不负责 TLS。
	UseHTTPS bool `mapstructure:"UseHTTPS"`

	MaxUploadSize  ByteSize `mapstructure:"MaxUploadSize"`
	MaxExtractSize ByteSize `mapstructure:"MaxExtractSize"`
	SlugAttempts   int      `mapstructure:"SlugAttempts"`

	SiteCacheSize int      `mapstructure:"SiteCacheSize"`
	SiteCacheTTL  Duration `mapstructure:"SiteCacheTTL"`

	// UploadRateInterval 为同一客户端两次上传之间的令牌补充间隔，0 表示不限速。
	UploadRateInterval Duration `mapstructure:"UploadRateInterval"`
	UploadRateBurst    int      `mapstructure:"UploadRateBurst"`

	ReadTimeout     Duration `mapstructure:"ReadTimeout"`
	ShutdownTimeout Duration `mapstructure:"ShutdownTimeout"`
}

// Scheme 返回 preview_url 使用的协议。
func (c *Config) Scheme() string {
	if c.UseHTTPS {
		return "https"
	}
	return "http"
}

// PreviewURL 拼接 <scheme>://<slug>.<base_domain>。
func (c *Config) PreviewURL(slug string) string {
	return fmt.Sprintf("%s://%s.%s", c.Scheme(), slug, c.BaseDomain)
}

// UploadRateLimited 表示是否对上传接口按客户端限速。
func (c *Config) UploadRateLimited() bool {
	return c.UploadRateInterval.DurationValue() > 0
}

// AdminEnabled 表示是否需要启动诊断监听。
func (c *Config) AdminEnabled() bool {
	return strings.TrimSpace(c.AdminAddr) != ""
}
