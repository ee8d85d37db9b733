// Command train runs an offline training pass: load the historical CSV,
// fit the models, print the training report, and persist the exported
// state bundle to a file and/or the artifact store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/urbanrisk/floodwatch/internal/dataset"
	"github.com/urbanrisk/floodwatch/internal/domain"
	"github.com/urbanrisk/floodwatch/internal/engine"
	"github.com/urbanrisk/floodwatch/internal/repository"
)

func main() {
	datasetPath := flag.String("dataset", "", "path to the enriched historical CSV (required)")
	outPath := flag.String("out", "", "write the exported state bundle to this file")
	dbPath := flag.String("db", "", "SQLite path; when set, stores the corpus and the artifact bundle")
	fusionMode := flag.String("fusion", string(domain.FusionAuto), "fusion mode: auto, network, or fallback")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *datasetPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(*datasetPath, *outPath, *dbPath, domain.FusionMode(*fusionMode)); err != nil {
		slog.Error("training failed", "error", err)
		os.Exit(1)
	}
}

func run(datasetPath, outPath, dbPath string, mode domain.FusionMode) error {
	records, err := dataset.LoadFile(datasetPath)
	if err != nil {
		return err
	}
	slog.Info("dataset loaded", "path", datasetPath, "records", len(records))

	cfg := domain.DefaultConfig().Training
	cfg.FusionMode = mode

	eng := engine.New(cfg)
	state, err := eng.TrainAndSwap(records)
	if err != nil {
		return err
	}

	printReport(state)

	bundle, err := eng.Export()
	if err != nil {
		return fmt.Errorf("failed to export state: %w", err)
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, bundle, 0o644); err != nil {
			return fmt.Errorf("failed to write bundle: %w", err)
		}
		slog.Info("bundle written", "path", outPath, "bytes", len(bundle))
	}

	if dbPath != "" {
		if err := persist(dbPath, records, state.Version, bundle); err != nil {
			return err
		}
	}

	return nil
}

func persist(dbPath string, records []*domain.HistoricalRecord, version string, bundle []byte) error {
	ctx := context.Background()

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: dbPath})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()

	if err := repo.SaveHistoricalRecords(ctx, records); err != nil {
		return fmt.Errorf("failed to store corpus: %w", err)
	}
	if err := repo.SaveModelArtifact(ctx, version, bundle); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}

	slog.Info("corpus and artifact stored", "db", dbPath, "version", version)
	return nil
}

func printReport(state *engine.TrainedState) {
	r := state.Report

	fmt.Println()
	fmt.Println("=== TRAINING REPORT ===")
	fmt.Printf("Version:           %s\n", state.Version)
	fmt.Printf("Records:           %d\n", r.Records)
	fmt.Printf("Wards:             %d\n", r.Wards)
	fmt.Printf("Held-out accuracy: %.3f\n", r.HeldOutAccuracy)
	fmt.Printf("Fusion mode:       %s\n", r.FusionMode)
	fmt.Printf("Duration:          %s\n", r.Duration)

	names := make([]string, 0, len(r.FeatureImportance))
	for name := range r.FeatureImportance {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return r.FeatureImportance[names[i]] > r.FeatureImportance[names[j]]
	})

	fmt.Println("Feature importance:")
	for _, name := range names {
		fmt.Printf("  %-18s %.4f\n", name, r.FeatureImportance[name])
	}

	zones := state.Zoning.Assignments()
	fmt.Println("Ward risk zones:")
	for _, z := range zones {
		fmt.Printf("  %-6s %s\n", z.WardCode, z.RiskZone)
	}
	fmt.Println()
}
