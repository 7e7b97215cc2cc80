package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lllllllleong/resolutionflow/internal/extract"
	"github.com/Lllllllleong/resolutionflow/internal/gcp"
	"github.com/Lllllllleong/resolutionflow/internal/services"
	"github.com/Lllllllleong/resolutionflow/internal/tabular"
)

func newExtractCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract every PDF and write the backup and reconciled dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runExtract(cmd, cfg)
		},
	}
	cmd.Flags().String("csv", "", "metadata table (default: newest cns_resolucoes_*.csv or .xlsx in --csv-dir)")
	cmd.Flags().String("ocr-language", "", "tesseract language")
	cmd.Flags().Int("max-pages", 0, "pages read per document, 0 for all")
	cmd.Flags().Int64("min-file-size", 0, "smallest acceptable PDF in bytes")
	cmd.Flags().Bool("xlsx", false, "also write an .xlsx copy of the output")
	cmd.Flags().Int("progress-every", 0, "log progress every N documents")
	return cmd
}

func runExtract(cmd *cobra.Command, cfg Config) error {
	ctx := cmd.Context()

	csvPath := cfg.CSV
	if csvPath == "" {
		newest, err := tabular.FindNewestMetadata(cfg.CSVDir)
		if err != nil {
			return err
		}
		csvPath = newest
	}
	slog.Info("Reading metadata table.", "path", csvPath)
	md, err := tabular.ReadMetadataFile(csvPath)
	if err != nil {
		return err
	}

	var model extract.GenerativeModel
	if cfg.OCREngine == extract.EngineVertex {
		vc, err := gcp.NewVertexClient(ctx, cfg.VertexProject, cfg.VertexRegion)
		if err != nil {
			return fmt.Errorf("failed to create vertex client: %w", err)
		}
		defer vc.Close()
		model = vc.OCRModel
	}

	ocr := extract.ProbeOCR(cfg.OCREngine, model != nil)
	if !ocr.Available {
		slog.Warn("OCR unavailable; scanned documents will fail extraction.", "engine", ocr.Engine, "reason", ocr.Reason)
	}
	pipeline := extract.NewPipeline(extract.Config{
		MaxPages:    cfg.MaxPages,
		MinFileSize: cfg.MinFileSize,
		OCR:         ocr,
		Recognizer:  extract.NewRecognizer(cfg.OCREngine, cfg.OCRLanguage, model),
	}, slog.Default())

	orch := services.NewOrchestrator(pipeline, services.DirSink{Dir: cfg.OutDir}, services.OrchestratorConfig{
		ProgressEvery: cfg.ProgressEvery,
		WriteXLSX:     cfg.XLSX,
	}, slog.Default())

	res, err := orch.Run(ctx, cfg.PDFDir, md)
	if err != nil {
		return err
	}
	services.WriteReport(cmd.OutOrStdout(), res)
	return nil
}

func newStatusCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show metadata tables, the PDF tree and previous outputs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return writeStatus(cmd.OutOrStdout(), cfg, v.GetBool("status.pages"))
		},
	}
	cmd.Flags().Bool("pages", false, "also count pages per year")
	return cmd
}

// pageCount is swapped in tests.
var pageCount = api.PageCountFile

func writeStatus(w io.Writer, cfg Config, withPages bool) error {
	tables, err := tabular.ListMetadataFiles(cfg.CSVDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Metadata tables in %s:\n", cfg.CSVDir)
	if len(tables) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, t := range tables {
		marker := ""
		if i == 0 {
			marker = " (newest)"
		}
		fmt.Fprintf(w, "  %s%s\n", filepath.Base(t), marker)
	}

	fmt.Fprintf(w, "\nPDF tree %s:\n", cfg.PDFDir)
	docs, err := services.DiscoverDocuments(cfg.PDFDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintln(w, "  (missing)")
	case err != nil:
		return err
	default:
		perYear := make(map[string]int)
		pages := make(map[string]int)
		for _, d := range docs {
			perYear[d.Year]++
			if withPages {
				n, err := pageCount(d.Path)
				if err != nil {
					slog.Debug("Could not count pages.", "path", d.Path, "error", err)
					continue
				}
				pages[d.Year] += n
			}
		}
		years := make([]string, 0, len(perYear))
		for y := range perYear {
			years = append(years, y)
		}
		sort.Strings(years)
		for _, y := range years {
			if withPages {
				fmt.Fprintf(w, "  %s: %d PDFs, %d pages\n", y, perYear[y], pages[y])
			} else {
				fmt.Fprintf(w, "  %s: %d PDFs\n", y, perYear[y])
			}
		}
		fmt.Fprintf(w, "  total: %d PDFs\n", len(docs))
	}

	outputs, err := tabular.ListOutputs(cfg.OutDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nOutputs in %s:\n", cfg.OutDir)
	if len(outputs) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, o := range outputs {
		fmt.Fprintf(w, "  %s\n", filepath.Base(o))
	}
	return nil
}

func newProbeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report whether the configured OCR engine can run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			c := extract.ProbeOCR(cfg.OCREngine, cfg.VertexProject != "")
			if c.Available {
				fmt.Fprintf(cmd.OutOrStdout(), "ocr engine %s: available\n", c.Engine)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "ocr engine %s: unavailable (%s)\n", c.Engine, c.Reason)
			}
			return nil
		},
	}
}
