/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

//go:embed assets/*
var assets embed.FS

var pages = template.Must(template.ParseFS(assets, "assets/home.html", "assets/hotpotato/game.html"))

type pageData struct {
	Prefix  string
	Version string
}

// renderPage executes a named page template into memory, so a failed render
// never leaves a half-written response.
func renderPage(cfg *Config, name string) ([]byte, error) {
	var buf bytes.Buffer

	err := pages.ExecuteTemplate(&buf, name, pageData{
		Prefix:  cfg.prefix,
		Version: releaseVersion,
	})
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func servePage(cfg *Config, log *zap.Logger, name string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		data, err := renderPage(cfg, name)
		if err != nil {
			log.Error("SERVE: Failed to render page", zap.String("page", name), zap.Error(err))
			http.Error(w, "page unavailable", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		written, err := w.Write(data)
		if err != nil {
			log.Debug("SERVE: Failed to write page", zap.String("page", name), zap.Error(err))

			return
		}

		log.Debug("SERVE: Page served",
			zap.String("page", name),
			zap.String("size", humanReadableSize(int64(written))),
			zap.String("remote", realIP(r)),
			zap.Duration("elapsed", time.Since(startTime).Round(time.Microsecond)),
		)
	}
}

func serveHealthCheck(cfg *Config, log *zap.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		if _, err := w.Write([]byte("Ok\n")); err != nil {
			log.Debug("SERVE: Failed to write health check", zap.Error(err))
		}
	}
}

func serveAssets(cfg *Config, log *zap.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		fname := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, cfg.prefix), "/")

		// Pages are templates and only reachable through their own routes.
		if strings.HasSuffix(fname, ".html") {
			http.NotFound(w, r)

			return
		}

		data, err := assets.ReadFile(fname)
		if err != nil {
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		ext := strings.ToLower(filepath.Ext(fname))
		switch ext {
		case ".css":
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
		case ".js":
			w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		case ".svg":
			w.Header().Set("Content-Type", "image/svg+xml")
		case ".woff2":
			w.Header().Set("Content-Type", "font/woff2")
		}

		if _, err := w.Write(data); err != nil {
			log.Debug("SERVE: Failed to write asset", zap.String("file", fname), zap.Error(err))
		}
	}
}

func serveRobots(cfg *Config, log *zap.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /hotpotato/
Disallow: /ws

User-agent: GPTBot
Disallow: /

User-agent: CCBot
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		if _, err := w.Write([]byte(data)); err != nil {
			log.Debug("SERVE: Failed to write robots.txt", zap.Error(err))
		}
	}
}

func registerHome(cfg *Config, log *zap.Logger, mux *httprouter.Router) {
	mux.GET(cfg.prefix+"/", servePage(cfg, log, "home.html"))
	mux.GET(cfg.prefix+"/assets/*asset", serveAssets(cfg, log))
	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, log))
	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, log))
}
