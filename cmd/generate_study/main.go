// generate_study writes a synthetic expert judgment study for demos and
// benchmarks of the calculation engine.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/ahrav/go-cooke/infrastructure/projectio"
	"github.com/ahrav/go-cooke/internal/testutils"
)

func main() {
	var (
		seeds      = flag.Int("seeds", 10, "Number of seed items")
		targets    = flag.Int("targets", 5, "Number of target items")
		logShare   = flag.Float64("log-share", 0.2, "Fraction of log-scale items")
		missing    = flag.Float64("missing", 0, "Chance that an expert skips an item")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		outputPath = flag.String("output", "testdata/study/synthetic_study.json", "Output file path, .json or .dtt")
	)
	flag.Parse()

	cfg := testutils.DefaultStudyConfig()
	cfg.SeedItems = *seeds
	cfg.TargetItems = *targets
	cfg.LogShare = *logShare
	cfg.MissingRate = *missing

	study, err := testutils.GenerateStudy(cfg, *seed)
	if err != nil {
		log.Fatalf("Failed to generate study: %v", err)
	}
	if err := projectio.SaveFile(*outputPath, study); err != nil {
		log.Fatalf("Failed to save study: %v", err)
	}

	stats := testutils.ComputeStudyStatistics(study)
	fmt.Printf("Generated synthetic study:\n")
	fmt.Printf("- Path: %s\n", *outputPath)
	fmt.Printf("- Seed: %d\n", *seed)
	fmt.Printf("- Experts: %d\n", stats.Experts)
	fmt.Printf("- Seed items: %d, target items: %d, log scale: %d\n", stats.SeedItems, stats.TargetItems, stats.LogItems)
	fmt.Printf("- Answered: %.0f%%\n", 100*stats.AnsweredShare)
}
