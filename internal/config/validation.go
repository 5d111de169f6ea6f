package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if strings.TrimSpace(c.DataDir) == "" {
		return newFieldError("DataDir", "不能为空")
	}
	if err := validateDomain(c.BaseDomain); err != nil {
		return fmt.Errorf("BaseDomain: %w", err)
	}
	if c.APIToken == "" {
		return newFieldError("APIToken", "不能为空")
	}
	if err := validateListenAddr(c.ListenAddr); err != nil {
		return fmt.Errorf("ListenAddr: %w", err)
	}
	if c.AdminEnabled() {
		if err := validateListenAddr(c.AdminAddr); err != nil {
			return fmt.Errorf("AdminAddr: %w", err)
		}
		if c.AdminAddr == c.ListenAddr {
			return newFieldError("AdminAddr", "不能与 ListenAddr 相同")
		}
	}
	if c.MaxUploadSize <= 0 {
		return newFieldError("MaxUploadSize", "必须大于 0")
	}
	if c.MaxExtractSize < 0 {
		return newFieldError("MaxExtractSize", "不能为负数")
	}
	if c.SlugAttempts < 1 {
		return newFieldError("SlugAttempts", "至少为 1")
	}
	if c.SiteCacheSize < 0 {
		return newFieldError("SiteCacheSize", "不能为负数")
	}
	if c.SiteCacheTTL.DurationValue() < 0 {
		return newFieldError("SiteCacheTTL", "不能为负数")
	}
	if c.UploadRateInterval.DurationValue() < 0 {
		return newFieldError("UploadRateInterval", "不能为负数")
	}
	if c.UploadRateLimited() && c.UploadRateBurst < 1 {
		return newFieldError("UploadRateBurst", "启用限速时至少为 1")
	}
	if c.ReadTimeout.DurationValue() < 0 {
		return newFieldError("ReadTimeout", "不能为负数")
	}
	if _, err := logrus.ParseLevel(c.Log.LogLevel); err != nil {
		return newFieldError("LogLevel", "无法识别的日志级别")
	}

	return nil
}

func validateDomain(domain string) error {
	if domain == "" {
		return errors.New("BaseDomain 不能为空")
	}
	if strings.Contains(domain, "/") {
		return errors.New("BaseDomain 不允许包含路径")
	}
	if strings.Contains(domain, " ") {
		return errors.New("BaseDomain 不允许包含空格")
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return errors.New("BaseDomain 不能以 . 开头或结尾")
	}
	return nil
}

func validateListenAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("监听地址不能为空")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("监听地址格式错误: %w", err)
	}
	return nil
}
