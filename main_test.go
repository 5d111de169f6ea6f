package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("PV_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestParseCLIFlagsKeepsOverrides(t *testing.T) {
	t.Setenv("PV_CONFIG", "")

	opts, err := parseCLIFlags([]string{"--base-domain", "preview.test", "--use-https"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "" {
		t.Fatalf("未指定配置时应留空，得到 %s", opts.configPath)
	}
	if opts.flags == nil || !opts.flags.Changed("base-domain") || !opts.flags.Changed("use-https") {
		t.Fatalf("覆盖项应保留在 FlagSet 中")
	}
}

func TestParseCLIFlagsRejectsUnknown(t *testing.T) {
	if _, err := parseCLIFlags([]string{"--nope"}); err == nil {
		t.Fatalf("未知参数应返回错误")
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	clearPVEnv(t)
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d (stderr=%s)", code, stdErrBuffer().String())
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	clearPVEnv(t)
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
	if !strings.Contains(stdErrBuffer().String(), "加载配置失败") {
		t.Fatalf("stderr 应包含失败原因，得到 %s", stdErrBuffer().String())
	}
}

func TestRunCheckConfigWithFlagToken(t *testing.T) {
	clearPVEnv(t)
	useBufferWriters(t)

	opts, err := parseCLIFlags([]string{
		"--config", configFixture(t, "missing.toml"),
		"--api-token", "from-flag",
		"--check-config",
	})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if code := run(opts); code != 0 {
		t.Fatalf("flag 提供 token 后应校验通过，得到 %d (stderr=%s)", code, stdErrBuffer().String())
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOut.(*bytes.Buffer).String(), "pv-hub") {
		t.Fatalf("version 输出应包含 pv-hub 标识")
	}
}
