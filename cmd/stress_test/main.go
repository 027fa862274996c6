package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/cartsync/internal/adapter/auth"
	"github.com/rl1809/cartsync/internal/adapter/gateway"
	"github.com/rl1809/cartsync/internal/adapter/storage"
	"github.com/rl1809/cartsync/internal/cli"
	"github.com/rl1809/cartsync/internal/config"
	"github.com/rl1809/cartsync/internal/core/service"
)

const rounds = 10

var products = []string{"1", "2", "3", "4", "5"}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	gw, err := gateway.NewHTTPGateway(cfg.CartAPIURL, gateway.Options{
		Timeout: cfg.RequestTimeout,
		Tokens:  auth.StaticToken(cfg.AuthToken),
	})
	if err != nil {
		log.Fatalf("failed to create gateway: %v", err)
	}

	logger := zap.NewNop()
	backup := service.NewBackup(storage.NewMemoryAdapter(), service.DefaultBackupKey, logger)
	store := service.NewCartStore(gw, backup, nil, logger)
	defer store.Close()

	report, err := cli.RunStress(ctx, store, cli.StressOptions{Products: products, Rounds: rounds})
	if err != nil {
		log.Fatalf("stress run failed: %s (%v)", service.UserMessage(err), err)
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Cart API:         %s\n", cfg.CartAPIURL)
	fmt.Printf("Products:         %d\n", len(products))
	fmt.Printf("Adds per product: %d\n", rounds)
	fmt.Printf("Successful:       %d\n", report.Succeeded)
	fmt.Printf("Failed:           %d\n", report.Failed)
	fmt.Printf("Duration:         %v\n", report.Duration)
	fmt.Println("==========================================")

	expected := len(products) * rounds
	if report.Succeeded == expected {
		fmt.Printf("PASS: all %d adds succeeded\n", expected)
	} else {
		fmt.Printf("FAIL: expected %d successful adds, got %d\n", expected, report.Succeeded)
	}

	fmt.Printf("Server item count: %d\n", report.ServerCount)
	if report.Consistent() {
		fmt.Println("PASS: server count matches successful adds")
	} else {
		fmt.Printf("FAIL: expected server count %d, got %d\n", report.Succeeded, report.ServerCount)
		os.Exit(1)
	}

	fmt.Printf("Local count after last response: %d\n", report.LocalCount)
	if report.Stale() {
		fmt.Println("INFO: last response was older than the server state (last write wins)")
	}
}
