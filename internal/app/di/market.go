// Package di provides dependency injection factories for creating application components.
package di

import (
	"astock_backend/internal/platform/externalapi/akshare"
	infrahttp "astock_backend/internal/platform/http"
)

// NewMarketSource creates a fully configured AKTools client with HTTP client.
func NewMarketSource(cfg akshare.Config) *akshare.Client {
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
	return akshare.NewClient(cfg, httpClient)
}
