package main

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

var repoRoot string

func init() {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return
	}
	dir := filepath.Dir(file)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			repoRoot = dir
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	if repoRoot == "" {
		t.Fatal("无法定位项目根目录")
	}
	return repoRoot
}

func configFixture(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(projectRoot(t), "internal", "config", "testdata", name)
}

// clearPVEnv 清空 PV_* 环境变量，避免宿主环境影响配置加载。
func clearPVEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PV_CONFIG", "PV_DATA_DIR", "PV_BASE_DOMAIN", "PV_API_TOKEN", "PV_USE_HTTPS",
		"PV_LISTEN_ADDR", "PV_ADMIN_ADDR", "PV_LOG_LEVEL", "PV_LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}
