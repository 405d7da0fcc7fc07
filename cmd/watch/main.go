package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sahilchouksey/gradgrid/grid"
	"github.com/sahilchouksey/gradgrid/model"
)

// Terminal grid viewer: runs the sync engine against a live server and
// re-renders the materialized rows on every state change. Useful for
// watching enrichment cycles and push events without a browser.

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	baseURL := os.Getenv("GRADGRID_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := os.Getenv("GRADGRID_TOKEN")
	if token == "" {
		log.Fatal("GRADGRID_TOKEN is required (run cmd/seed to print one)")
	}
	email := os.Getenv("GRADGRID_EMAIL")
	if email == "" {
		email = "member@gradgrid.local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := grid.NewClient(baseURL, token)
	engine := grid.NewEngine(api, grid.SessionUser{Email: email}, grid.Options{})
	defer engine.Close()

	// Coalesce change notifications so a burst of push events repaints
	// the table once.
	repaint := make(chan struct{}, 1)
	engine.OnChange(func() {
		select {
		case repaint <- struct{}{}:
		default:
		}
	})

	if err := engine.Load(ctx); err != nil {
		log.Fatalf("initial load failed: %v", err)
	}

	stream := grid.NewStream(baseURL+"/api/events", token)
	engine.AttachStream(stream)
	go func() {
		if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("event stream stopped: %v", err)
		}
	}()

	render(engine)
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nbye")
			return
		case <-repaint:
			// Let the burst settle before repainting.
			time.Sleep(100 * time.Millisecond)
			drain(repaint)
			render(engine)
		}
	}
}

func drain(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func render(engine *grid.Engine) {
	rows := engine.Rows()
	columns := engine.Registry().List()

	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Printf("gradgrid: %d rows", len(rows))
	if hidden := engine.HiddenCount(); hidden > 0 {
		fmt.Printf(" (%d universities hidden)", hidden)
	}
	fmt.Println()
	fmt.Println()

	widths := make([]int, len(columns))
	cells := make([][]string, len(rows))
	for ci, col := range columns {
		widths[ci] = len(col.Title)
	}
	for ri, row := range rows {
		cells[ri] = make([]string, len(columns))
		for ci, col := range columns {
			v := grid.DisplayValue(row, col.ID)
			if len(v) > 40 {
				v = v[:37] + "..."
			}
			cells[ri][ci] = v
			if len(v) > widths[ci] {
				widths[ci] = len(v)
			}
		}
	}

	var header strings.Builder
	for ci, col := range columns {
		fmt.Fprintf(&header, "%-*s  ", widths[ci], col.Title)
	}
	fmt.Println(header.String())
	fmt.Println(strings.Repeat("-", len(header.String())))

	for ri := range rows {
		for ci := range columns {
			fmt.Printf("%-*s  ", widths[ci], cells[ri][ci])
		}
		fmt.Println()
	}

	if engine.Policy().SubscriptionStatus == model.SubscriptionExpired {
		fmt.Println()
		fmt.Println("subscription expired: showing the free tier only")
	}
}
