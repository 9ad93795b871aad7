package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/application/factories/infrastructure"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/config"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/infrastructure/postgres"
)

func main() {
	fix := flag.Bool("fix", false, "reset outbox events stuck in processing to new")
	limit := flag.Int("n", 5, "number of recent orders to list")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	pool, err := infraFactory.Postgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	orders := postgres.NewOrderRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)

	if *fix {
		n, err := outboxRepo.ResetProcessing(ctx)
		if err != nil {
			fmt.Printf("Fix failed: %v\n", err)
		} else {
			fmt.Printf("Fixed %d events\n", n)
		}
	}

	fmt.Println("--- Orders ---")
	recent, err := orders.ListRecent(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list orders: %v\n", err)
		os.Exit(1)
	}
	for _, o := range recent {
		fmt.Printf("ID: %s | Method: %s | Status: %s | Amount: %s %s | Updated: %s\n",
			o.ID, o.PaymentMethod, o.PaymentStatus, o.ExpectedAmount.StringFixed(2), o.Currency,
			o.UpdatedAt.Format(time.RFC3339))
	}

	fmt.Println("\n--- Outbox ---")
	counts, err := outboxRepo.CountByStatus(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "count outbox: %v\n", err)
		os.Exit(1)
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Printf("%s: %d\n", s, counts[s])
	}
}
