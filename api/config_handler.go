package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/seenimoa/calcthis/internal/config"
)

// configMu serialises writes to the config file.
var configMu sync.Mutex

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config     *config.Config `json:"config"`
	ConfigFile string         `json:"config_file"` // path to the active config file
}

// handleGetConfig returns the running configuration. Secrets are excluded
// via json:"-" tags.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	configMu.Lock()
	defer configMu.Unlock()

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Config:     s.cfg,
			ConfigFile: config.ConfigFilePath(),
		},
	})
}

// handleUpdateConfig merges a partial configuration into the running config,
// validates the result and persists it. Settings that size long-lived
// components (port, rate limits, catalog) take effect on restart.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var incoming config.Config
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	configMu.Lock()
	defer configMu.Unlock()

	merged := *s.cfg
	mergeConfig(&merged, &incoming)
	if err := merged.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	cfgPath := config.ConfigFilePath()
	if err := config.SaveToFile(&merged, cfgPath); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save config: "+err.Error())
		return
	}
	*s.cfg = merged
	s.logger.Info("configuration updated", zap.String("file", cfgPath))

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Config:     s.cfg,
			ConfigFile: cfgPath,
		},
	})
}

// handleGetConfigKeys returns the status of all sensitive API keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}

// mergeConfig copies non-zero/non-empty values from src into dst.
func mergeConfig(dst, src *config.Config) {
	// Catalog
	if src.Catalog.File != "" {
		dst.Catalog.File = src.Catalog.File
	}
	if len(src.Catalog.Categories) > 0 {
		dst.Catalog.Categories = src.Catalog.Categories
	}

	// Cache
	if src.Cache.TTL != 0 {
		dst.Cache.TTL = src.Cache.TTL
	}

	// QA
	if src.QA.Concurrency != 0 {
		dst.QA.Concurrency = src.QA.Concurrency
	}
	if src.QA.Tolerance != 0 {
		dst.QA.Tolerance = src.QA.Tolerance
	}
	if src.QA.MaxCalcMS != 0 {
		dst.QA.MaxCalcMS = src.QA.MaxCalcMS
	}
	if src.QA.TimeoutSec != 0 {
		dst.QA.TimeoutSec = src.QA.TimeoutSec
	}

	// Market data
	if src.MarketData.FeedURL != "" {
		dst.MarketData.FeedURL = src.MarketData.FeedURL
	}
	if src.MarketData.TableURL != "" {
		dst.MarketData.TableURL = src.MarketData.TableURL
	}
	if src.MarketData.TableSelector != "" {
		dst.MarketData.TableSelector = src.MarketData.TableSelector
	}
	if src.MarketData.SeriesURL != "" {
		dst.MarketData.SeriesURL = src.MarketData.SeriesURL
	}
	if src.MarketData.MaxAgeDays != 0 {
		dst.MarketData.MaxAgeDays = src.MarketData.MaxAgeDays
	}
	if src.MarketData.CacheTTL != 0 {
		dst.MarketData.CacheTTL = src.MarketData.CacheTTL
	}
	if src.MarketData.RequestsPerSec != 0 {
		dst.MarketData.RequestsPerSec = src.MarketData.RequestsPerSec
	}

	// API
	if src.API.Host != "" {
		dst.API.Host = src.API.Host
	}
	if src.API.Port != 0 {
		dst.API.Port = src.API.Port
	}
	if len(src.API.CORSOrigins) > 0 {
		dst.API.CORSOrigins = src.API.CORSOrigins
	}
	if src.API.RateLimit != 0 {
		dst.API.RateLimit = src.API.RateLimit
	}
	if src.API.RateWindowSec != 0 {
		dst.API.RateWindowSec = src.API.RateWindowSec
	}

	// Logging
	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		dst.Logging.Format = src.Logging.Format
	}
}
