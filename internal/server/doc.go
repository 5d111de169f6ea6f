// Package server hosts the Fiber HTTP service and the Host-header routing
// that maps <slug>.<base_domain> onto preview site directories. NewApp wires
// the request ID middleware, the HostRouter and the injected upload and site
// handlers; packages such as static and upload depend on the exported
// SiteRoute, RequestID and HostHeader helpers, so keep exports narrow.
package server
