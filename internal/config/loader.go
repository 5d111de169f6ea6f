package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultConfigPath 是未显式指定配置文件时尝试读取的路径，文件不存在时直接使用默认值/环境变量。
const DefaultConfigPath = "config.toml"

// envBindings 记录配置键与 PV_* 环境变量的映射。
var envBindings = map[string]string{
	"DataDir":     "PV_DATA_DIR",
	"BaseDomain":  "PV_BASE_DOMAIN",
	"APIToken":    "PV_API_TOKEN",
	"UseHTTPS":    "PV_USE_HTTPS",
	"ListenAddr":  "PV_LISTEN_ADDR",
	"AdminAddr":   "PV_ADMIN_ADDR",
	"LogLevel":    "PV_LOG_LEVEL",
	"LogFilePath": "PV_LOG_FILE",
}

// flagBindings 记录配置键与 CLI 标志名的映射。
var flagBindings = map[string]string{
	"DataDir":    "data-dir",
	"BaseDomain": "base-domain",
	"APIToken":   "api-token",
	"UseHTTPS":   "use-https",
	"ListenAddr": "listen",
	"AdminAddr":  "admin-listen",
	"LogLevel":   "log-level",
}

// Load 读取 TOML 配置文件（可选）、PV_* 环境变量与 CLI 标志，注入默认值后完成校验。
// 优先级：flags > env > file > defaults。path 为空时尝试 DefaultConfigPath，缺失不报错；
// 显式给出的 path 必须存在。
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}
	if flags != nil {
		for key, name := range flagBindings {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("绑定参数失败: %w", err)
			}
		}
	}

	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		byteSizeDecodeHook(),
	))); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absData, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析数据目录: %w", err)
	}
	cfg.DataDir = absData

	return &cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("读取配置失败: %w", err)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取配置失败: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenAddr", ":3000")
	v.SetDefault("AdminAddr", "127.0.0.1:3001")
	v.SetDefault("DataDir", "data")
	v.SetDefault("BaseDomain", "localhost:3000")
	v.SetDefault("APIToken", "")
	v.SetDefault("UseHTTPS", false)
	v.SetDefault("MaxUploadSize", "50MiB")
	v.SetDefault("MaxExtractSize", "1GiB")
	v.SetDefault("SlugAttempts", 5)
	v.SetDefault("SiteCacheSize", 256)
	v.SetDefault("SiteCacheTTL", "10m")
	v.SetDefault("UploadRateInterval", "0s")
	v.SetDefault("UploadRateBurst", 10)
	v.SetDefault("ReadTimeout", "60s")
	v.SetDefault("ShutdownTimeout", "10s")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
}

func applyDefaults(c *Config) {
	c.BaseDomain = strings.ToLower(strings.TrimSpace(c.BaseDomain))
	c.APIToken = strings.TrimSpace(c.APIToken)
	if c.Log.LogLevel == "" {
		c.Log.LogLevel = "info"
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = ByteSize(50 * humanize.MiByte)
	}
	if c.SlugAttempts == 0 {
		c.SlugAttempts = 5
	}
	if c.SiteCacheTTL.DurationValue() == 0 {
		c.SiteCacheTTL = Duration(10 * time.Minute)
	}
	if c.UploadRateBurst == 0 {
		c.UploadRateBurst = 10
	}
	if c.ShutdownTimeout.DurationValue() == 0 {
		c.ShutdownTimeout = Duration(10 * time.Second)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(ByteSize(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			var size ByteSize
			if err := size.UnmarshalText([]byte(v)); err != nil {
				return nil, fmt.Errorf("无法解析容量字段: %s", v)
			}
			return size, nil
		case int:
			return ByteSize(v), nil
		case int64:
			return ByteSize(v), nil
		case float64:
			return ByteSize(int64(v)), nil
		case ByteSize:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的容量类型: %T", v)
		}
	}
}
