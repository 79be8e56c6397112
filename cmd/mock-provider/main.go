// Command mock-provider serves an in-memory Brevo API for local development.
// Point BREVO_BASE_URL at it and use any non-empty BREVO_API_KEY that
// matches MOCK_API_KEY.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/Priya8975/newsletter-service/internal/provider/brevotest"
)

var requestCount atomic.Int64

func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}
	apiKey := os.Getenv("MOCK_API_KEY")
	if apiKey == "" {
		apiKey = "mock-key"
	}

	fake := brevotest.NewServer(apiKey)
	plID := envInt64("BREVO_LIST_ID_PL", 7)
	enID := envInt64("BREVO_LIST_ID_EN", 8)
	fake.AddList(plID, "Newsletter PL", seedEmails("MOCK_SEED_PL")...)
	fake.AddList(enID, "Newsletter EN", seedEmails("MOCK_SEED_EN")...)

	mux := http.NewServeMux()
	mux.Handle("/v3/", http.StripPrefix("/v3", logRequests(fake.Handler())))

	// Stats endpoint: request count and what the fake has sent so far
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"total_requests":    requestCount.Load(),
			"campaigns":         fake.Campaigns(),
			"transactional":     len(fake.SentEmails()),
			"polish_members":    fake.Members(plID),
			"english_members":   fake.Members(enID),
			"lists":             fake.ListCount(),
		})
	})

	log.Printf("Mock Brevo server starting on :%s", port)
	log.Printf("  base URL           -> http://localhost:%s/v3", port)
	log.Printf("  polish list id     -> %d", plID)
	log.Printf("  english list id    -> %d", enID)
	log.Printf("  GET  /stats        -> request count and sends")

	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		fmt.Printf("[#%d] %s %s\n", count, r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func seedEmails(key string) []string {
	var out []string
	for _, e := range strings.Split(os.Getenv(key), ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func envInt64(key string, fallback int64) int64 {
	if n, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return n
	}
	return fallback
}
