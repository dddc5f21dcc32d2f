package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Each worker acts as one anonymous session: it uploads a generated log
// file, then hammers the query endpoint against it. Distinct file contents
// per worker keep deduplication from collapsing the uploads.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the log viewer")
	concurrency := flag.Int("c", 10, "Number of concurrent sessions")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	qps := flag.Int("qps", 100, "Query rate limit across all sessions")
	fileLines := flag.Int("lines", 5000, "Number of lines per generated log file")
	flag.Parse()

	log.Printf("Starting load test on %s", *baseURL)
	log.Printf("Sessions: %d, Duration: %s, QPS: %d, Lines per file: %d", *concurrency, *duration, *qps, *fileLines)

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*qps), 20)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			jar, _ := cookiejar.New(nil)
			client := &http.Client{
				Timeout: 30 * time.Second,
				Jar:     jar, // carries the session cookie across requests
			}

			fileID, err := uploadFile(ctx, client, *baseURL, workerID, *fileLines)
			if err != nil {
				log.Printf("worker %d: upload failed: %v", workerID, err)
				errorCount.Add(1)
				return
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
					if err := limiter.Wait(ctx); err != nil {
						return
					}
					if err := runQuery(ctx, client, *baseURL, fileID, workerID); err != nil {
						errorCount.Add(1)
					} else {
						successCount.Add(1)
					}
				}
			}
		}(i)
	}

	wg.Wait()

	totalQueries := successCount.Load() + errorCount.Load()
	log.Println("Load test finished.")
	log.Printf("Total Queries: %d", totalQueries)
	log.Printf("Successful: %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual QPS: %.2f", float64(totalQueries)/duration.Seconds())
}

func uploadFile(ctx context.Context, client *http.Client, baseURL string, workerID, lines int) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fmt.Sprintf("loadtest-%d.log", workerID))
	if err != nil {
		return "", err
	}

	levels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < lines; i++ {
		fmt.Fprintf(part, "[%s] %s worker=%d event=%d payload=%08x\n",
			ts.Format("2006-01-02 15:04:05"), levels[rand.Intn(len(levels))], workerID, i, rand.Int63())
		ts = ts.Add(time.Second)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload returned %d", resp.StatusCode)
	}

	var uploadResp struct {
		File struct {
			ID string `json:"id"`
		} `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return "", err
	}
	if uploadResp.File.ID == "" {
		return "", fmt.Errorf("upload response missing file id")
	}
	return uploadResp.File.ID, nil
}

func runQuery(ctx context.Context, client *http.Client, baseURL, fileID string, workerID int) error {
	queries := []string{
		`{"include": ["ERROR"]}`,
		`{"include": ["WARN", "ERROR"], "logic": "OR"}`,
		fmt.Sprintf(`{"include": ["worker=%d"], "exclude": ["DEBUG"]}`, workerID),
		`{"start_date": "2024-01-01 00:10:00", "end_date": "2024-01-01 00:30:00"}`,
		`{}`,
	}
	payload := queries[rand.Intn(len(queries))]

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/logs/"+fileID, bytes.NewBufferString(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query returned %d", resp.StatusCode)
	}
	return nil
}
