package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/joelkehle/activity-concierge/internal/httpapi"
	"github.com/joelkehle/activity-concierge/internal/llm"
	"github.com/joelkehle/activity-concierge/internal/profile"
	"github.com/joelkehle/activity-concierge/internal/retrieval"
	"github.com/joelkehle/activity-concierge/internal/store"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "./concierge.db", "SQLite database path (events + activity types + reviews)")
	preferReviews := flag.Bool("prefer-reviews", false, "widen recall past the profile city and rerank by reviews")
	noLLM := flag.Bool("no-llm", false, "disable LLM profile extraction")
	flag.Parse()

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	activities, err := store.NewActivityStore(db)
	if err != nil {
		log.Fatal(err)
	}
	events, err := store.NewEventStore(db)
	if err != nil {
		log.Fatal(err)
	}
	reviews, err := store.NewReviewStore(db)
	if err != nil {
		log.Fatal(err)
	}

	cfg := retrieval.DefaultConfig()
	cfg.TopN = envInt("CONCIERGE_TOP_N", cfg.TopN)
	cfg.PreferReviews = *preferReviews
	retriever := retrieval.NewRetriever(activities, events, reviews, cfg)

	var extractor httpapi.ProfileExtractor
	if !*noLLM {
		caller, err := llm.NewAnthropicCallerFromEnv()
		if err != nil {
			log.Fatal(err)
		}
		extractor = profile.NewExtractor(llm.NewExecutor(caller))
		log.Printf("concierge llm_enabled model=%s", caller.ModelName())
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           httpapi.NewServer(extractor, retriever),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("concierge listening addr=%s db=%s prefer_reviews=%v", *addr, *dbPath, *preferReviews)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
