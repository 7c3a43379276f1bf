package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"drawing-ocr/api/internal/config"
	"drawing-ocr/api/internal/extract"
	"drawing-ocr/api/internal/handle"
	"drawing-ocr/api/internal/httpserver"
	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/ocr/engines"
	"drawing-ocr/api/internal/store"
)

var Logger = logger.GetLogger("ocr-api")

func fatal(msg string, err error) {
	Logger.Error(msg, "err", err)
	os.Exit(1)
}

func main() {
	cfg := config.Load()

	profiles, err := config.LoadProfiles(cfg.ProfilesFile)
	if err != nil {
		fatal("load profiles", err)
	}
	if err := os.MkdirAll(cfg.UploadPath, 0o755); err != nil {
		fatal("upload dir", err)
	}

	h := handle.New(
		engines.FromConfig(cfg),
		profiles,
		extract.New(cfg.OCRConcurrency, cfg.OCRTimeout),
		extract.NewResultCache(256),
		cfg.UploadPath,
	)

	// --- Postgres (необязателен: без него работают только /api/document-ocr ручки) ---
	ctx := context.Background()
	db, err := store.Open(ctx, cfg.DSN)
	if err != nil {
		Logger.Warn("running without database", "err", err)
	} else {
		defer db.Close()
		if err := store.Migrate(ctx, db); err != nil {
			fatal("migrate", err)
		}
		h.Projects = store.NewProjectRepo(db)
		h.Files = store.NewFileRepo(db)
		h.Regions = store.NewRegionRepo(db)
		h.Tables = store.NewTableRepo(db)
		h.Results = store.NewResultRepo(db)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthz(db))
	h.Register(mux)

	addr := ":" + cfg.Port
	Logger.Info("ocr-api listening", "addr", addr, "profiles", profiles.Names())
	if err := httpserver.ListenAndServe(ctx, addr, mux); err != nil {
		fatal("http server", err)
	}
}

func healthz(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
