package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/model"
	"Go2NetSentry/internal/query"
)

// --- Main Function ---
func main() {
	mode := flag.String("mode", "api", "Query mode: 'api' to query via HTTP API, 'direct' to query ClickHouse directly.")
	apiBase := flag.String("api", "http://localhost:8080", "Base URL of the ns-sentry API.")
	what := flag.String("what", "features", "API resource: status, hosts, blocked, label, features.")
	setLabel := flag.String("set-label", "", "Change the capture label (normal or attack) instead of querying.")
	configPath := flag.String("config", "configs/config.yaml", "Config file used in direct mode.")
	limit := flag.Int("limit", 20, "Maximum feature rows.")
	label := flag.String("label", "", "Only rows with this label (normal or attack).")
	since := flag.Duration("since", 0, "Only rows newer than this (e.g. 10m); 0 for no bound.")
	flag.Parse()

	switch *mode {
	case "api":
		if *setLabel != "" {
			putLabel(*apiBase, *setLabel)
			return
		}
		queryViaAPI(*apiBase, *what, *limit, *label, *since)
	case "direct":
		directQueryClickHouse(*configPath, *limit, *label, *since)
	default:
		log.Fatalf("Invalid mode: %s. Use 'api' or 'direct'.", *mode)
	}
}

// --- API Query Logic ---
func queryViaAPI(base, what string, limit int, label string, since time.Duration) {
	paths := map[string]string{
		"status":   "/api/v1/status",
		"hosts":    "/api/v1/hosts",
		"blocked":  "/api/v1/hosts/blocked",
		"label":    "/api/v1/label",
		"features": "/api/v1/features",
	}
	path, ok := paths[what]
	if !ok {
		log.Fatalf("Unknown resource '%s'", what)
	}
	q := url.Values{}
	if what == "features" {
		q.Set("limit", strconv.Itoa(limit))
		if label != "" {
			q.Set("label", label)
		}
		if since > 0 {
			q.Set("since", time.Now().Add(-since).UTC().Format(time.RFC3339))
		}
	}
	u := base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	log.Printf("GET %s", u)
	resp, err := http.Get(u)
	if err != nil {
		log.Fatalf("Error sending request: %v", err)
	}
	printResponse(resp)
}

func putLabel(base, label string) {
	body, _ := json.Marshal(map[string]string{"label": label})
	req, err := http.NewRequest(http.MethodPut, base+"/api/v1/label", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Error building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Error sending request: %v", err)
	}
	printResponse(resp)
}

func printResponse(resp *http.Response) {
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("API returned non-200 status code: %d\nResponse: %s", resp.StatusCode, string(respBody))
	}

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, respBody, "", "  "); err != nil {
		log.Printf("Could not prettify JSON, printing raw response:")
		fmt.Println(string(respBody))
		return
	}
	fmt.Println(prettyJSON.String())
}

// --- Direct ClickHouse Query Logic ---
func directQueryClickHouse(configPath string, limit int, label string, since time.Duration) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	var chCfg *config.ClickHouseConfig
	for _, def := range cfg.Emitter.Writers {
		if def.Type == "clickhouse" {
			chCfg = &def.ClickHouse
			break
		}
	}
	if chCfg == nil {
		log.Fatalf("No ClickHouse writer found in %s", configPath)
	}

	f := query.Filter{Limit: limit}
	if label != "" {
		l, ok := model.ParseLabel(label)
		if !ok {
			log.Fatalf("Unknown label '%s'", label)
		}
		f.Label = &l
	}
	if since > 0 {
		f.Since = time.Now().Add(-since)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	q, err := query.NewClickHouseQuerier(ctx, *chCfg)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer q.Close()

	rows, err := q.RecentFeatures(ctx, f)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		log.Fatalf("Failed to print rows: %v", err)
	}
}
