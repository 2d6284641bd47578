package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joelkehle/activity-concierge/internal/brochure"
	"github.com/joelkehle/activity-concierge/internal/store"
)

func main() {
	_ = godotenv.Load()

	docsPath := flag.String("docs", "./documents", "documents directory (Events/ and activityType/ folders)")
	dbPath := flag.String("db", "./concierge.db", "SQLite database path")
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	counts, err := brochure.BuildStores(ctx, *docsPath, activities, events)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("ingest complete activity_docs=%d events=%d db=%s", counts.ActivityDocs, counts.Events, *dbPath)
}
