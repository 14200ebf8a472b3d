package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"photo-styler/internal/app"
	"photo-styler/internal/apperr"
	"photo-styler/internal/config"
	"photo-styler/internal/media"
	"photo-styler/internal/style"
	"photo-styler/internal/styler"
)

type runOptions struct {
	image   string
	out     string
	catalog string
	backend string
	model   string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate every catalog style for one photo and save the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStyles(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.image, "image", "i", "", "JPG or PNG photo, at most 10MB")
	f.StringVarP(&opts.out, "out", "o", ".", "directory the styled images are written to")
	f.StringVar(&opts.catalog, "catalog", "", "YAML style catalog (default: STYLE_CATALOG_FILE or built-in)")
	f.StringVar(&opts.backend, "backend", "", "gemini backend: rest or sdk (default: GEMINI_BACKEND)")
	f.StringVar(&opts.model, "model", "", "image model (default: GEMINI_IMAGE_MODEL)")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func runStyles(cmd *cobra.Command, opts runOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.GeminiBackend = firstNonEmpty(strings.ToLower(opts.backend), cfg.GeminiBackend)
	cfg.GeminiImageModel = firstNonEmpty(opts.model, cfg.GeminiImageModel)
	cfg.StyleCatalogFile = firstNonEmpty(opts.catalog, cfg.StyleCatalogFile)

	logger := app.NewLogger(cfg, cmd.ErrOrStderr())

	catalog, err := style.LoadFile(cfg.StyleCatalogFile)
	if err != nil {
		return err
	}

	img, err := media.EncodeFile(opts.image)
	if err != nil {
		if apperr.IsKind(err, apperr.KindValidation) {
			return errors.New(apperr.UserMessage(err))
		}
		return err
	}

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	gen, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var writeErr error
	written := 0
	lastMessage := ""
	orch := styler.New(styler.Options{Generator: gen, Logger: logger})

	results, err := orch.Run(ctx, img, catalog, func(s styler.Snapshot) {
		if s.Message != lastMessage {
			lastMessage = s.Message
			fmt.Fprintf(out, "[%d/%d] %s\n", s.Completed+1, s.Total, s.Message)
		}
		for ; written < len(s.Results); written++ {
			path, err := writeResult(opts.out, s.Results[written])
			if err != nil {
				writeErr = errors.Join(writeErr, err)
				continue
			}
			fmt.Fprintf(out, "  saved %s\n", path)
		}
	})
	if err != nil {
		fmt.Fprintf(out, "%d of %d styles finished\n", len(results), catalog.Len())
		return errors.New(apperr.UserMessage(err))
	}
	if writeErr != nil {
		return writeErr
	}

	fmt.Fprintf(out, "done: %d styles written to %s\n", len(results), opts.out)
	return nil
}

func writeResult(dir string, r styler.Result) (string, error) {
	data, err := r.Image.Bytes()
	if err != nil {
		return "", fmt.Errorf("%s: %w", r.Style, err)
	}
	path := filepath.Join(dir, r.DownloadName())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
