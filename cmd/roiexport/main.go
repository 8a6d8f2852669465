// Command roiexport converts a template's region set into a manifest, in
// percentage or absolute pixel coordinates.
package main

import (
	"flag"
	"fmt"
	"os"

	"card-annotator/internal/config"
	"card-annotator/internal/engine"
	"card-annotator/internal/logging"
	"card-annotator/internal/persist"
	"card-annotator/internal/template"
)

func main() {
	templateDir := flag.String("templates", "templates", "Template directory")
	templateID := flag.String("template", "", "Template ID to export")
	mode := flag.String("mode", "percentage", "Export mode: percentage or pixel")
	out := flag.String("out", "", "Output path (default stdout)")
	configPath := flag.String("config", "", "Path to config TOML")
	flag.Parse()

	if *templateID == "" {
		fmt.Println("Usage: roiexport -template <id> [-templates dir] [-mode percentage|pixel] [-out file]")
		os.Exit(1)
	}

	var exportMode persist.ExportMode
	switch *mode {
	case "percentage":
		exportMode = persist.ModePercentage
	case "pixel":
		exportMode = persist.ModePixel
	default:
		fmt.Fprintf(os.Stderr, "Unknown mode %q\n", *mode)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	eng := engine.New(engine.Options{
		Config:    cfg,
		Logger:    logger,
		Templates: template.NewFileProvider(*templateDir),
	})
	defer eng.Close()

	if err := eng.LoadTemplate(*templateID); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load template: %v\n", err)
		os.Exit(1)
	}

	data, err := eng.ExportManifest(exportMode, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to export manifest: %v\n", err)
		os.Exit(1)
	}

	if *out == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write manifest: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d regions to %s\n", len(eng.Regions()), *out)
}
