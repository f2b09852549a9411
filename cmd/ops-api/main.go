package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	shared "github.com/pulseloop/server/pkg"
	"github.com/pulseloop/server/pkg/bootstrap"
	"github.com/pulseloop/server/pkg/infrastructure/dump"
)

// ops-api exposes the failure dumps for inspection: which notifications and
// tasks exhausted their retries, and what they carried.
func main() {
	ctx := context.Background()
	bootstrap.InitLogger()
	cfg := bootstrap.LoadConfig()
	logger := bootstrap.NewLogger("ops-api")

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatalf("firestore init: %v", err)
	}

	readers := map[string]shared.DumpReader{
		shared.DumpPrefixNotification: dump.NewFirestoreDump(fsClient, shared.DumpPrefixNotification),
		shared.DumpPrefixTasks:        dump.NewFirestoreDump(fsClient, shared.DumpPrefixTasks),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/dumps/{prefix}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			reader, ok := readers[chi.URLParam(req, "prefix")]
			if !ok {
				http.Error(w, "unknown dump prefix", http.StatusNotFound)
				return
			}
			keys, err := reader.ListKeys(req.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, map[string]interface{}{"keys": keys})
		})
		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			reader, ok := readers[chi.URLParam(req, "prefix")]
			if !ok {
				http.Error(w, "unknown dump prefix", http.StatusNotFound)
				return
			}
			fields, err := reader.Get(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				http.Error(w, "dump record not found", http.StatusNotFound)
				return
			}
			writeJSON(w, fields)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8090"
	}
	logger.Info("ops-api listening", "port", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("listen: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
