// Benchmark tool for replaying the labeled historical dataset against a
// running FloodWatch instance.
//
// Usage:
//
//	go run cmd/benchmark/main.go -csv /path/to/enriched_flood_dataset.csv -url http://localhost:8080
//
// This tool:
//  1. Reads the enriched historical dataset (with flood labels)
//  2. Sends each row's observation to FloodWatch for assessment
//  3. Compares the verdict with the recorded flood outcome
//  4. Calculates precision, recall, F1-score, and the confusion matrix
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urbanrisk/floodwatch/internal/dataset"
	"github.com/urbanrisk/floodwatch/internal/domain"
)

// AssessRequest matches the /assess/custom request format.
type AssessRequest struct {
	WardCode    string             `json:"ward_code"`
	Observation domain.Observation `json:"observation"`
}

// AssessResponse is the subset of the API response the benchmark needs.
type AssessResponse struct {
	Assessment struct {
		WillFlood        bool    `json:"will_flood"`
		CombinedHighRisk bool    `json:"combined_high_risk"`
		FloodProbability float64 `json:"flood_probability"`
	} `json:"assessment"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Flood predicted and occurred
	FalsePositives int64 // Flood predicted, did not occur
	TrueNegatives  int64 // No flood predicted, none occurred
	FalseNegatives int64 // Flood occurred but was not predicted

	TotalProcessed int64
	TotalFlooded   int64
	TotalDry       int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to the enriched historical CSV")
	baseURL := flag.String("url", "http://localhost:8080", "FloodWatch base URL")
	limit := flag.Int("limit", 0, "Maximum rows to replay (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verdict := flag.String("verdict", "combined", "Verdict to score: combined or classifier")
	verbose := flag.Bool("verbose", false, "Print each row result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/enriched_flood_dataset.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("=== FLOODWATCH BENCHMARK ===")
	fmt.Printf("CSV File:  %s\n", *csvPath)
	fmt.Printf("URL:       %s\n", *baseURL)
	fmt.Printf("Workers:   %d\n", *workers)
	fmt.Printf("Verdict:   %s\n", *verdict)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: FloodWatch not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure FloodWatch is running:")
		fmt.Println("  go run cmd/floodwatch/main.go")
		os.Exit(1)
	}
	fmt.Println("FloodWatch is healthy")

	records, err := dataset.LoadFile(*csvPath)
	if err != nil {
		fmt.Printf("ERROR: failed to read dataset: %v\n", err)
		os.Exit(1)
	}
	if *limit > 0 && len(records) > *limit {
		records = records[:*limit]
	}

	flooded := 0
	for _, rec := range records {
		if rec.FloodOccurred {
			flooded++
		}
	}
	fmt.Printf("Loaded %d rows (%d flooded, %d dry)\n", len(records), flooded, len(records)-flooded)

	fmt.Printf("\nReplaying with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(records, *baseURL, *workers, *verdict == "combined", *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func runBenchmark(records []*domain.HistoricalRecord, baseURL string, numWorkers int, combined, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan *domain.HistoricalRecord, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for rec := range work {
				start := time.Now()
				result, err := assessRecord(client, baseURL, rec)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: ward %s -> %v\n", rec.WardCode, err)
					}
					continue
				}

				if rec.FloodOccurred {
					atomic.AddInt64(&metrics.TotalFlooded, 1)
				} else {
					atomic.AddInt64(&metrics.TotalDry, 1)
				}

				predicted := result.Assessment.CombinedHighRisk
				if !combined {
					predicted = result.Assessment.WillFlood
				}
				actual := rec.FloodOccurred

				switch {
				case predicted && actual:
					atomic.AddInt64(&metrics.TruePositives, 1)
				case predicted && !actual:
					atomic.AddInt64(&metrics.FalsePositives, 1)
				case !predicted && !actual:
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				default:
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "ok  "
					if predicted != actual {
						status = "miss"
					}
					fmt.Printf("%s ward %-4s | rain %7.1fmm | flooded %-5v | predicted %-5v (p=%.2f)\n",
						status,
						rec.WardCode,
						*rec.Observation.RainfallMM,
						actual,
						predicted,
						result.Assessment.FloodProbability,
					)
				}
			}
		}()
	}

	for _, rec := range records {
		work <- rec
	}
	close(work)
	wg.Wait()

	return metrics
}

func assessRecord(client *http.Client, baseURL string, rec *domain.HistoricalRecord) (*AssessResponse, error) {
	req := AssessRequest{
		WardCode:    rec.WardCode,
		Observation: rec.Observation,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/assess/custom", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result AssessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n=== BENCHMARK RESULTS ===")

	fmt.Printf("\nDATASET\n")
	fmt.Printf("   Total Processed: %d\n", m.TotalProcessed)
	fmt.Printf("   Flooded:         %d\n", m.TotalFlooded)
	fmt.Printf("   Dry:             %d\n", m.TotalDry)
	fmt.Printf("   Errors:          %d\n", m.TotalErrors)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Println("                       Predicted")
	fmt.Println("                   FLOOD       DRY")
	fmt.Printf("   Actual FLOOD  %8d  %8d   (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Printf("          DRY    %8d  %8d   (FP, TN)\n", m.FalsePositives, m.TrueNegatives)

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\nDETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flood warnings, how many floods happened)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of floods, how many were warned)\n", recall)
	fmt.Printf("   F1-Score:   %.4f\n", f1)
	fmt.Printf("   Accuracy:   %.4f\n", accuracy)

	if m.TotalFlooded > 0 {
		missRate := float64(m.FalseNegatives) / float64(m.TotalFlooded) * 100
		fmt.Printf("   Missed floods: %d / %d (%.2f%%)\n", m.FalseNegatives, m.TotalFlooded, missRate)
	}
	if m.TotalDry > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalDry) * 100
		fmt.Printf("   False alarms:  %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalDry, falseAlarmRate)
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration: %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:    %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:     %.2f assessments/sec\n", rps)
	}
	fmt.Println()
}
