package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var paths = []string{"/api/submit-freelancer", "/api/submit-partner"}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the intake service")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 200, "Requests per second limit")
	malformedEvery := flag.Int("malformed-every", 0, "Send a malformed body every N requests per worker (0 disables)")
	flag.Parse()

	log.Printf("Starting load test on %s", *baseURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var okCount, failedCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), *concurrency)
	base := strings.TrimRight(*baseURL, "/")

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{Timeout: 5 * time.Second}

			for n := 0; ; n++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				body := fmt.Sprintf(`{"submission_id":%q,"name":"load test %d","sent_at":%q}`,
					uuid.NewString(), workerID, time.Now().Format(time.RFC3339Nano))
				if *malformedEvery > 0 && n%*malformedEvery == 0 {
					body = "{malformed"
				}

				url := base + paths[(workerID+n)%len(paths)]
				req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
				if err != nil {
					continue
				}
				req.Header.Set("Content-Type", "application/json")

				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						errorCount.Add(1)
					}
					continue
				}
				switch resp.StatusCode {
				case http.StatusOK:
					okCount.Add(1)
				case http.StatusInternalServerError:
					failedCount.Add(1)
				default:
					errorCount.Add(1)
				}
				resp.Body.Close()
			}
		}(i)
	}

	wg.Wait()

	total := okCount.Load() + failedCount.Load() + errorCount.Load()
	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", total)
	log.Printf("Acknowledged (200): %d", okCount.Load())
	log.Printf("Rejected (500): %d", failedCount.Load())
	log.Printf("Unexpected status or transport errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", float64(total)/duration.Seconds())
}
