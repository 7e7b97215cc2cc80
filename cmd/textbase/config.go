package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lllllllleong/resolutionflow/internal/extract"
)

const envPrefix = "TEXTBASE"

// Config is the resolved CLI configuration: flags over environment over
// config file over defaults.
type Config struct {
	PDFDir        string
	CSV           string
	CSVDir        string
	OutDir        string
	MaxPages      int
	MinFileSize   int64
	OCREngine     string
	OCRLanguage   string
	VertexProject string
	VertexRegion  string
	XLSX          bool
	ProgressEvery int
	Debug         bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pdf_dir", "pdfs_cns_resolucoes")
	v.SetDefault("csv", "")
	v.SetDefault("csv_dir", ".")
	v.SetDefault("out_dir", ".")
	v.SetDefault("max_pages", 0)
	v.SetDefault("min_file_size", extract.DefaultMinFileSize)
	v.SetDefault("ocr.engine", extract.EngineTesseract)
	v.SetDefault("ocr.language", "por")
	v.SetDefault("vertex.project", "")
	v.SetDefault("vertex.region", "us-central1")
	v.SetDefault("xlsx", false)
	v.SetDefault("progress_every", 10)
	v.SetDefault("debug", false)
}

// initViper wires the .env file, environment and optional config file into v.
func initViper(v *viper.Viper, cfgFile string) error {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// bindFlags binds flags to viper keys. Flags missing from cmd are ignored.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			f = cmd.PersistentFlags().Lookup(flag)
		}
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", flag, err)
		}
	}
	return nil
}

func loadConfig(v *viper.Viper) (Config, error) {
	c := Config{
		PDFDir:        v.GetString("pdf_dir"),
		CSV:           v.GetString("csv"),
		CSVDir:        v.GetString("csv_dir"),
		OutDir:        v.GetString("out_dir"),
		MaxPages:      v.GetInt("max_pages"),
		MinFileSize:   v.GetInt64("min_file_size"),
		OCREngine:     strings.ToLower(v.GetString("ocr.engine")),
		OCRLanguage:   v.GetString("ocr.language"),
		VertexProject: v.GetString("vertex.project"),
		VertexRegion:  v.GetString("vertex.region"),
		XLSX:          v.GetBool("xlsx"),
		ProgressEvery: v.GetInt("progress_every"),
		Debug:         v.GetBool("debug"),
	}
	if c.MaxPages < 0 {
		return c, fmt.Errorf("max_pages must be >= 0, got %d", c.MaxPages)
	}
	if c.MinFileSize < 0 {
		return c, fmt.Errorf("min_file_size must be >= 0, got %d", c.MinFileSize)
	}
	switch c.OCREngine {
	case extract.EngineTesseract, extract.EngineVertex, extract.EngineNone:
	default:
		return c, fmt.Errorf("ocr.engine must be one of tesseract, vertex, none; got %q", c.OCREngine)
	}
	if c.OCREngine == extract.EngineVertex && c.VertexProject == "" {
		return c, fmt.Errorf("vertex.project must be set when ocr.engine is vertex")
	}
	return c, nil
}
