package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/pv-hub/pv-hub/internal/config"
	"github.com/pv-hub/pv-hub/internal/logging"
	"github.com/pv-hub/pv-hub/internal/server"
	"github.com/pv-hub/pv-hub/internal/server/routes"
	"github.com/pv-hub/pv-hub/internal/site"
	"github.com/pv-hub/pv-hub/internal/slug"
	"github.com/pv-hub/pv-hub/internal/static"
	"github.com/pv-hub/pv-hub/internal/upload"
	"github.com/pv-hub/pv-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	// flags 携带 --data-dir 等覆盖项，交给 config.Load 绑定到 viper。
	flags *pflag.FlagSet
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath, opts.flags)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["base_domain"] = cfg.BaseDomain
		fields["data_dir"] = cfg.DataDir
		fields["max_upload"] = cfg.MaxUploadSize.String()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序为“配置 → 站点目录 → 上传/站点 handler → Fiber server”，
	// 数据目录无法创建时直接失败，避免服务起来后每次上传都报错。
	app, store, err := buildApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化服务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen"] = cfg.ListenAddr
	fields["admin_listen"] = cfg.AdminAddr
	fields["base_domain"] = cfg.BaseDomain
	fields["data_dir"] = store.Root()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := serve(cfg, app, store, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := pflag.NewFlagSet("pv-hub", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 PV_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.String("data-dir", "", "站点数据目录（PV_DATA_DIR）")
	fs.String("base-domain", "", "预览站点的基础域名，可带端口（PV_BASE_DOMAIN）")
	fs.String("api-token", "", "上传接口的 Bearer token（PV_API_TOKEN）")
	fs.Bool("use-https", false, "preview_url 使用 https（PV_USE_HTTPS）")
	fs.String("listen", "", "主监听地址（PV_LISTEN_ADDR）")
	fs.String("admin-listen", "", "诊断/指标监听地址（PV_ADMIN_ADDR）")
	fs.String("log-level", "", "日志级别（PV_LOG_LEVEL）")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("PV_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		flags:       fs,
	}, nil
}

// buildApp 组装主监听使用的 Fiber 应用，返回的 store 供诊断接口复用。
func buildApp(cfg *config.Config, logger *logrus.Logger) (*fiber.App, site.Store, error) {
	store, err := site.NewStore(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化数据目录失败: %w", err)
	}

	router, err := server.NewHostRouter(cfg.BaseDomain, store)
	if err != nil {
		return nil, nil, err
	}
	allocator, err := slug.NewAllocator(store, slug.Options{
		MaxAttempts: cfg.SlugAttempts,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}
	gate, err := upload.NewGate(cfg.APIToken, cfg.BaseDomain)
	if err != nil {
		return nil, nil, err
	}
	uploads, err := upload.NewHandler(cfg, gate, allocator, store, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.UploadRateLimited() {
		uploads.WithLimiter(upload.NewLimiter(cfg.UploadRateInterval.DurationValue(), cfg.UploadRateBurst))
	}
	sites := static.NewHandler(static.Options{
		Logger:    logger,
		CacheSize: cfg.SiteCacheSize,
		CacheTTL:  cfg.SiteCacheTTL.DurationValue(),
	})

	app, err := server.NewApp(server.AppOptions{
		Logger:      logger,
		Router:      router,
		Sites:       sites,
		Upload:      uploads.Handle,
		BodyLimit:   int(cfg.MaxUploadSize.Int64()),
		ReadTimeout: cfg.ReadTimeout.DurationValue(),
	})
	if err != nil {
		return nil, nil, err
	}
	return app, store, nil
}

// buildAdminApp 构造诊断监听，未配置 AdminAddr 时返回 nil。
func buildAdminApp(cfg *config.Config, store site.Store) *fiber.App {
	if !cfg.AdminEnabled() {
		return nil
	}
	admin := fiber.New(fiber.Config{CaseSensitive: true})
	routes.RegisterDiagnosticsRoutes(admin, store, cfg)
	return admin
}

// serve 启动主监听与诊断监听，收到 SIGINT/SIGTERM 后在 ShutdownTimeout 内优雅退出。
func serve(cfg *config.Config, app *fiber.App, store site.Store, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 任一监听失败都会取消 gctx，另一个监听随之退出
	g, gctx := errgroup.WithContext(ctx)
	listenCfg := fiber.ListenConfig{
		GracefulContext:       gctx,
		ShutdownTimeout:       cfg.ShutdownTimeout.DurationValue(),
		DisableStartupMessage: true,
	}

	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"action": "listen",
			"addr":   cfg.ListenAddr,
		}).Info("Fiber 服务启动")
		return app.Listen(cfg.ListenAddr, listenCfg)
	})

	if admin := buildAdminApp(cfg, store); admin != nil {
		g.Go(func() error {
			logger.WithFields(logrus.Fields{
				"action": "listen_admin",
				"addr":   cfg.AdminAddr,
			}).Info("诊断服务启动")
			return admin.Listen(cfg.AdminAddr, listenCfg)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.WithField("action", "shutdown").Info("服务已退出")
	return nil
}
