package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Namespace = "pvhub"

	NameUploads        = "uploads_total"
	NameSiteRequests   = "site_requests_total"
	NameSlugCollisions = "slug_collisions_total"
	NameExtractedBytes = "extracted_bytes_total"
	LabelResult        = "result"
)

var Uploads = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      NameUploads,
		Help:      "Upload requests by outcome",
		Namespace: Namespace,
	},
	[]string{LabelResult},
)

var SiteRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      NameSiteRequests,
		Help:      "Host-routed requests by outcome",
		Namespace: Namespace,
	},
	[]string{LabelResult},
)

var SlugCollisions = promauto.NewCounter(
	prometheus.CounterOpts{
		Name:      NameSlugCollisions,
		Help:      "Generated slugs whose directory already existed",
		Namespace: Namespace,
	},
)

var ExtractedBytes = promauto.NewCounter(
	prometheus.CounterOpts{
		Name:      NameExtractedBytes,
		Help:      "Bytes written while extracting uploaded bundles",
		Namespace: Namespace,
	},
)
