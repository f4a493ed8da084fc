package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"coaster-builder/internal/config"
	"coaster-builder/internal/session"
	"coaster-builder/internal/track"
)

func main() {
	coasterPath := flag.String("coaster", "", "coaster document to ride (required)")
	configPath := flag.String("config", "", "tuning config JSON")
	seconds := flag.Float64("seconds", 60, "ride duration")
	fps := flag.Float64("fps", 60, "simulation frames per second")
	outDir := flag.String("out", "plots", "output directory")
	flag.Parse()

	if *coasterPath == "" || *fps <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatal(err)
		}
	}

	doc, err := track.LoadDocument(*coasterPath)
	if err != nil {
		log.Fatal(err)
	}
	s := session.New(cfg.SessionParams())
	if err := s.Load(doc); err != nil {
		log.Fatal(err)
	}

	samples, err := Simulate(s, *seconds, 1 / *fps)
	if err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatal(err)
	}
	name := doc.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(*coasterPath), filepath.Ext(*coasterPath))
	}
	paths, err := WritePlots(name, samples, *outDir)
	if err != nil {
		log.Fatal(err)
	}

	last := samples[len(samples)-1]
	fmt.Printf("%s: %.1fm track, %d laps in %.0fs\n", name, s.Curve().Length(), last.Laps, *seconds)
	for _, p := range paths {
		fmt.Println("wrote", p)
	}
}
