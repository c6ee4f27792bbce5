package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const proxyCacheControl = "public, s-maxage=3600, stale-while-revalidate=59"

// ResponseCache stores upstream bodies across instances
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, body []byte) error
}

// ProxyHandler forwards catalog requests upstream with the server's
// credentials, so they never reach the browser
type ProxyHandler struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	readToken string
	cache     ResponseCache
	logger    *log.Logger
}

// ProxyConfig holds the proxy's upstream settings. The v3 APIKey is sent when
// set, ReadToken as a bearer header otherwise. Cache may be nil.
type ProxyConfig struct {
	BaseURL    string
	APIKey     string
	ReadToken  string
	HTTPClient *http.Client
	Cache      ResponseCache
}

// NewProxyHandler creates a new proxy handler
func NewProxyHandler(cfg ProxyConfig, logger *log.Logger) *ProxyHandler {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ProxyHandler{
		client:    client,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		readToken: cfg.ReadToken,
		cache:     cfg.Cache,
		logger:    logger,
	}
}

// Forward handles GET /tmdb/{path...}
func (h *ProxyHandler) Forward(w http.ResponseWriter, r *http.Request) {
	if h.apiKey == "" && h.readToken == "" {
		http.Error(w, `{"error":"TMDB API key is not configured"}`, http.StatusInternalServerError)
		return
	}

	path := strings.Trim(r.PathValue("path"), "/")
	query := r.URL.Query()
	query.Del("api_key")
	// Encode sorts by key, so equivalent requests share a cache entry
	cacheKey := path + "?" + query.Encode()

	if h.cache != nil {
		body, ok, err := h.cache.Get(r.Context(), cacheKey)
		if err != nil {
			h.logger.Printf("Proxy cache read failed for %s: %v", cacheKey, err)
		}
		if ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Cache-Control", proxyCacheControl)
			w.Header().Set("X-Cache", "HIT")
			w.Write(body)
			return
		}
	}

	upstream, err := url.Parse(h.baseURL + "/" + path)
	if err != nil {
		http.Error(w, `{"error":"Invalid path"}`, http.StatusBadRequest)
		return
	}
	params := url.Values{}
	for key, values := range query {
		params[key] = values
	}
	if h.apiKey != "" {
		params.Set("api_key", h.apiKey)
	}
	upstream.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstream.String(), nil)
	if err != nil {
		http.Error(w, `{"error":"Invalid path"}`, http.StatusBadRequest)
		return
	}
	req.Header.Set("Accept", "application/json")
	if h.apiKey == "" {
		req.Header.Set("Authorization", "Bearer "+h.readToken)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Printf("Proxy request to /%s failed: %v", path, err)
		http.Error(w, `{"error":"Failed to fetch data from TMDB"}`, http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.logger.Printf("Proxy response from /%s unreadable: %v", path, err)
		http.Error(w, `{"error":"Failed to fetch data from TMDB"}`, http.StatusInternalServerError)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if ok {
		w.Header().Set("Cache-Control", proxyCacheControl)
		if h.cache != nil {
			if err := h.cache.Set(r.Context(), cacheKey, body); err != nil {
				h.logger.Printf("Proxy cache write failed for %s: %v", cacheKey, err)
			}
		}
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(body); err != nil {
		h.logger.Printf("Proxy write for /%s failed: %v", path, err)
	}
}
