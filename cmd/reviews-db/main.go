package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joelkehle/activity-concierge/internal/llm"
	"github.com/joelkehle/activity-concierge/internal/reviews"
	"github.com/joelkehle/activity-concierge/internal/store"
)

func main() {
	_ = godotenv.Load()

	csvPath := flag.String("csv", "./reviews_rag_2000.csv", "reviews CSV path")
	dbPath := flag.String("db", "./concierge.db", "SQLite database path")
	batchSize := flag.Int("batch-size", 10, "reviews per LLM extraction call")
	useLLM := flag.Bool("llm", true, "use LLM metadata extraction (false: regex only)")
	flag.Parse()

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	st, err := store.NewReviewStore(db)
	if err != nil {
		log.Fatal(err)
	}

	var extractor *reviews.Extractor
	if *useLLM {
		caller, err := llm.NewAnthropicCallerFromEnv()
		if err != nil {
			log.Fatal(err)
		}
		extractor = reviews.NewExtractor(llm.NewExecutor(caller), *batchSize)
		log.Printf("reviews-db llm_enabled model=%s batch_size=%d", caller.ModelName(), *batchSize)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	n, err := reviews.Build(ctx, *csvPath, st, extractor)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("reviews-db complete count=%d db=%s", n, *dbPath)
}
