package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pv-hub/pv-hub/internal/config"
	"github.com/pv-hub/pv-hub/internal/site"
	"github.com/pv-hub/pv-hub/internal/version"
)

type statusPayload struct {
	Version    string `json:"version"`
	BaseDomain string `json:"base_domain"`
	Scheme     string `json:"scheme"`
	DataDir    string `json:"data_dir"`
	Sites      int    `json:"sites"`
}

type sitePayload struct {
	Slug       string `json:"slug"`
	PreviewURL string `json:"preview_url"`
	CreatedAt  string `json:"created_at"`
}

// RegisterDiagnosticsRoutes 在管理监听上暴露 /-/status、/-/sites 与 /metrics，供 SRE 巡检。
func RegisterDiagnosticsRoutes(app *fiber.App, store site.Store, cfg *config.Config) {
	if app == nil || store == nil || cfg == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		sites, err := store.List(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "site_list_failed"})
		}
		return c.JSON(statusPayload{
			Version:    version.Full(),
			BaseDomain: cfg.BaseDomain,
			Scheme:     cfg.Scheme(),
			DataDir:    store.Root(),
			Sites:      len(sites),
		})
	})

	app.Get("/-/sites", func(c fiber.Ctx) error {
		sites, err := store.List(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "site_list_failed"})
		}
		return c.JSON(fiber.Map{"sites": encodeSites(sites, cfg)})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func encodeSites(sites []site.Site, cfg *config.Config) []sitePayload {
	result := make([]sitePayload, 0, len(sites))
	for _, s := range sites {
		result = append(result, sitePayload{
			Slug:       s.Slug,
			PreviewURL: cfg.PreviewURL(s.Slug),
			CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return result
}
