package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/pv-hub/pv-hub/internal/config"
)

func TestConfigureDefaultsToStdout(t *testing.T) {
	logger, err := InitLogger(config.LogConfig{LogLevel: "info"})
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("未指定文件时应输出到 stdout")
	}
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := InitLogger(config.LogConfig{LogLevel: "loud"}); err == nil {
		t.Fatalf("未知日志级别应报错")
	}
}

func TestInitLoggerFallsBackToConsole(t *testing.T) {
	// 父路径是普通文件，MkdirAll 对任何用户都会失败
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("创建文件失败: %v", err)
	}
	t.Cleanup(func() { logrus.SetOutput(os.Stderr) })

	var console bytes.Buffer
	cfg := config.LogConfig{
		LogLevel:    "info",
		LogFilePath: filepath.Join(blocker, "sub", "pv-hub.log"),
	}
	logger, err := newLogger(cfg, &console)
	if err != nil {
		t.Fatalf("初始化不应失败: %v", err)
	}
	if logger.Out != &console {
		t.Fatalf("fallback 时应退回控制台输出")
	}
	if !strings.Contains(console.String(), `"action":"logger_fallback"`) {
		t.Fatalf("应记录 logger_fallback 日志，得到 %s", console.String())
	}
}

func TestConfigureCreatesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pv-hub.log")
	cfg := config.LogConfig{LogLevel: "debug", LogFilePath: path}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	logger.Info("test")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("预期创建日志文件: %v", err)
	}
}

func TestRequestFieldsOmitsEmptySlug(t *testing.T) {
	fields := RequestFields("req-1", "localhost:3000", "")
	if _, ok := fields["slug"]; ok {
		t.Fatalf("slug 为空时不应写入字段")
	}
	fields = RequestFields("req-1", "a-b-c.localhost:3000", "a-b-c")
	if fields["slug"] != "a-b-c" {
		t.Fatalf("slug 字段缺失: %v", fields)
	}
}
