// Command roiscore scores a card scan against a template and prints the
// ranked guidance, best-framed regions first.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/tiff"

	"card-annotator/internal/config"
	"card-annotator/internal/engine"
	"card-annotator/internal/logging"
	"card-annotator/internal/recognition"
	"card-annotator/internal/template"
)

func main() {
	imagePath := flag.String("image", "", "Path to card scan (TIFF, PNG, or JPEG)")
	templateDir := flag.String("templates", "templates", "Template directory")
	templateID := flag.String("template", "", "Template ID to load")
	configPath := flag.String("config", "", "Path to config TOML")
	ocr := flag.Bool("ocr", false, "Enrich text regions with OCR confidence")
	flag.Parse()

	if *imagePath == "" || *templateID == "" {
		fmt.Println("Usage: roiscore -image <path> -template <id> [-templates dir] [-ocr]")
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

	f, err := os.Open(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open image: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode image: %v\n", err)
		os.Exit(1)
	}
	bounds := img.Bounds()
	fmt.Printf("Loaded %s image: %dx%d pixels\n", format, bounds.Dx(), bounds.Dy())

	var enricher *recognition.Service
	if *ocr {
		reader, err := recognition.NewTextReader()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start OCR: %v\n", err)
			os.Exit(1)
		}
		enricher = recognition.NewService(reader, nil, logging.Component(logger, "recognition"))
		defer enricher.Close()
	}

	opts := engine.Options{
		Config:    cfg,
		Logger:    logger,
		Templates: template.NewFileProvider(*templateDir),
	}
	if enricher != nil {
		opts.Enricher = enricher
	}
	eng := engine.New(opts)
	defer eng.Close()

	if err := eng.LoadTemplate(*templateID); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load template: %v\n", err)
		os.Exit(1)
	}
	eng.BindImage(img)

	fmt.Printf("\nGuidance for template %s:\n", *templateID)
	for i, g := range eng.Guidance() {
		name := g.Name
		if name == "" {
			name = g.Key
		}
		fmt.Printf("%2d. %-24s score %.3f  (contrast %.2f  sharpness %.2f  ink %.2f)\n",
			i+1, name, g.Score, g.Metrics.Contrast, g.Metrics.Sharpness, g.Metrics.TextDensity)
		if g.Confidence.OCR != nil {
			fmt.Printf("    OCR confidence: %.2f\n", *g.Confidence.OCR)
		}
	}
}
