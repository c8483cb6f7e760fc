package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/argenomics/arg_go_server/config"
	"github.com/argenomics/arg_go_server/internal/database"
	"github.com/argenomics/arg_go_server/internal/repository"
)

var (
	dryRun       = flag.Bool("dry-run", true, "Dry run mode, don't actually delete files")
	staleHours   = flag.Int("stale-hours", 24, "Fail RUNNING jobs older than this many hours")
	outputExpire = flag.Int("output-expire", 0, "Delete output directories older than this many days (0 disables)")
)

func main() {
	flag.Parse()

	log.Println("Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	jobRepo := repository.NewJobRepository(db)

	// 1. Fail stale RUNNING jobs
	if *dryRun {
		log.Printf("Would reap RUNNING jobs older than %d hours", *staleHours)
	} else {
		reaped, err := jobRepo.ReapStale(time.Duration(*staleHours) * time.Hour)
		if err != nil {
			log.Fatalf("Failed to reap stale jobs: %v", err)
		}
		log.Printf("Reaped %d stale job(s)", reaped)
	}

	// 2. Remove old output directories
	if *outputExpire > 0 {
		removed, freed := cleanOldOutputs(filepath.Join(cfg.Pipeline.WorkDir, "outputs"), *outputExpire, *dryRun)
		log.Printf("Output cleanup: %d directories, %.1f MB", removed, float64(freed)/(1024*1024))
	}

	log.Println("Cleanup done")
}

func cleanOldOutputs(outputsDir string, expireDays int, dryRun bool) (int, int64) {
	entries, err := os.ReadDir(outputsDir)
	if err != nil {
		log.Printf("Cannot read outputs directory %s: %v", outputsDir, err)
		return 0, 0
	}

	cutoff := time.Now().AddDate(0, 0, -expireDays)
	removed := 0
	var freed int64

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		dir := filepath.Join(outputsDir, entry.Name())
		size := dirSize(dir)

		if dryRun {
			log.Printf("Would delete %s (%.1f MB)", dir, float64(size)/(1024*1024))
		} else {
			if err := os.RemoveAll(dir); err != nil {
				log.Printf("Failed to delete %s: %v", dir, err)
				continue
			}
			log.Printf("Deleted %s (%.1f MB)", dir, float64(size)/(1024*1024))
		}
		removed++
		freed += size
	}

	return removed, freed
}

func dirSize(dir string) int64 {
	var size int64
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
