package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"safeguard/internal/analysis"
	"safeguard/internal/config"
	"safeguard/internal/evidence"
	"safeguard/internal/llmclient"
	"safeguard/internal/monitor"
	"safeguard/internal/notify"
	"safeguard/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var llm llmclient.Client
	if strings.TrimSpace(os.Getenv("GEMINI_API_KEY")) == "" {
		log.Printf("GEMINI_API_KEY is not set; using the offline fake model")
		llm = llmclient.NewFakeClient(`{"isAccident":false,"confidence":0,"reason":"offline fake model"}`)
	} else {
		gem, gErr := llmclient.NewGeminiClient(ctx, os.Getenv("GEMINI_API_KEY"), cfg.GeminiModel)
		if gErr != nil {
			log.Fatalf("gemini client: %v", gErr)
		}
		llm = gem
	}
	defer llm.Close()

	var ev monitor.EvidenceStore
	if cfg.Evidence.Enabled {
		store, eErr := evidence.New(cfg.Evidence)
		if eErr != nil {
			log.Printf("evidence store disabled: %v", eErr)
		} else {
			ev = store
		}
	}

	mon, err := monitor.New(monitor.Options{
		Source:      &source.FileSource{Path: strings.TrimSpace(os.Getenv("VIDEO_FRAME_PATH"))},
		Analyzer:    analysis.New(llm),
		Alerter:     notify.New(cfg.Twilio),
		Evidence:    ev,
		Session:     cfg.Session,
		SettleDelay: cfg.SettleDelay,
	})
	if err != nil {
		log.Fatalf("monitor: %v", err)
	}
	mon.Start(ctx)
	defer mon.Stop()

	s := newAPIServer(mon)
	h := withCORS(buildMux(s))

	log.Printf("Starting API server on %s", cfg.Port)
	log.Fatal(http.ListenAndServe(cfg.Port, h2c.NewHandler(h, &http2.Server{})))
}

// Simple CORS middleware
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
