//go:build ignore

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"complaint-trends-engine/internal/config"
	"complaint-trends-engine/internal/models"
	"complaint-trends-engine/internal/services/cfpb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🔍 Testing Connections...")
	fmt.Println()

	fmt.Println("1️⃣  Checking Environment Variables:")
	checkEnvVar("CFPB_BASE_URL")
	checkEnvVar("AWS_REGION")
	checkEnvVar("S3_BUCKET")
	checkEnvVar("DATABASE_URL")
	checkEnvVar("SES_SENDER_EMAIL")
	fmt.Println()

	fmt.Println("2️⃣  Testing Database Connection:")
	testDatabaseConnection(cfg)
	fmt.Println()

	fmt.Println("3️⃣  Testing Complaint Search API:")
	testComplaintAPI(cfg)
	fmt.Println()

	fmt.Println("✅ Connection tests complete!")
}

func checkEnvVar(name string) {
	value := os.Getenv(name)
	if value == "" {
		fmt.Printf("   ❌ %s: NOT SET\n", name)
		return
	}
	masked := value
	if len(value) > 8 && name == "DATABASE_URL" {
		masked = value[:8] + "..." + value[len(value)-4:]
	}
	fmt.Printf("   ✅ %s: %s\n", name, masked)
}

func testDatabaseConnection(cfg *config.Config) {
	if !cfg.DatabaseConfigured() {
		fmt.Println("   ⏭️  Database not configured, snapshots will be disabled")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, cfg.DatabaseURL())
	if err != nil {
		fmt.Printf("   ❌ Database connection failed: %v\n", err)
		return
	}
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx, "SELECT to_regclass('analysis_snapshots') IS NOT NULL").Scan(&exists)
	if err != nil {
		fmt.Printf("   ❌ Database query failed: %v\n", err)
		return
	}
	fmt.Println("   ✅ Database connection successful!")
	if !exists {
		fmt.Println("   ⚠️  analysis_snapshots table missing, run: go run scripts/init_db.go")
	}
}

func testComplaintAPI(cfg *config.Config) {
	client := cfpb.NewClient(cfpb.ClientConfig{
		BaseURL: cfg.CFPBBaseURL,
		Timeout: cfg.CFPBTimeout,
	}, nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CFPBTimeout+5*time.Second)
	defer cancel()

	q := models.QueryFor(models.CategoryPersonalLoans, time.Now(), cfg.CFPBLookbackMonths, 1)
	start := time.Now()
	env, err := client.Fetch(ctx, q)
	if err != nil {
		fmt.Printf("   ❌ Complaint search failed: %v\n", err)
		fmt.Println("   ℹ️  The API will serve sample data until the upstream recovers")
		return
	}
	fmt.Printf("   ✅ Complaint search reachable (%d personal loan complaints, %s)\n",
		env.TotalComplaints(), time.Since(start).Round(time.Millisecond))
}
