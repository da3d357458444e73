package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yuanying/epubtext/internal/config"
	"github.com/yuanying/epubtext/internal/epub"
	"github.com/yuanying/epubtext/internal/extract"
)

// newRootCmd builds the command tree. The root command extracts text;
// inspect and cover are diagnostic side features.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "epubtext <book.epub>",
		Short: "Extract reading-order plain text from EPUB files",
		Long: `epubtext converts an EPUB ebook into a single plain-text stream in
spine (reading) order, with an explicit chapter-break marker between
chapters. The output is intended for downstream text processing such as
summarization; it preserves paragraph and chapter structure but carries
no markup.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runExtract,
	}

	root.PersistentFlags().String("config", "", "Path to YAML config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	root.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	root.Flags().Int("workers", 0, "Concurrent chapter extractions (default: from config)")

	inspect := &cobra.Command{
		Use:   "inspect <book.epub>",
		Short: "Print metadata, spine order, and table of contents",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}

	cover := &cobra.Command{
		Use:   "cover <book.epub>",
		Short: "Export the book's cover image",
		Args:  cobra.ExactArgs(1),
		RunE:  runCover,
	}
	cover.Flags().StringP("output", "o", "", "Output image path (default: <book>-cover.jpg)")
	cover.Flags().Int("max-width", 0, "Downscale covers wider than this (default: from config)")

	root.AddCommand(inspect, cover)
	return root
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	outputPath, _ := cmd.Flags().GetString("output")

	p := extract.NewPipeline(extract.Options{
		Workers:       cfg.Extract.Workers,
		MaxEntrySize:  cfg.Extract.MaxEntrySize,
		SkipNonLinear: cfg.Extract.SkipNonLinear,
		Logger:        logger,
	})

	text, err := p.ExtractFile(args[0])
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	if outputPath == "" {
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	}
	if err := os.WriteFile(outputPath, []byte(text+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	logger.Info("extraction complete",
		zap.String("output", outputPath),
		zap.Int("bytes", len(text)))
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	_, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	r, err := epub.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	pkg, err := epub.LoadPackage(r)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printMetadata(out, pkg)
	fmt.Fprintf(out, "Package:    %s\n", r.PackagePath())
	printSpine(out, pkg)

	ncx, err := epub.LoadNCX(r, pkg)
	if err != nil {
		logger.Warn("failed to load navigation document", zap.Error(err))
	} else if ncx != nil && len(ncx.NavPoints) > 0 {
		fmt.Fprintln(out, "Table of contents:")
		printNavPoints(out, ncx.NavPoints, 1)
	}
	return nil
}

func runCover(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		base := strings.TrimSuffix(args[0], filepath.Ext(args[0]))
		outputPath = base + "-cover.jpg"
	}
	if w, _ := cmd.Flags().GetInt("max-width"); w > 0 {
		cfg.Cover.MaxWidth = w
	}

	r, err := epub.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	pkg, err := epub.LoadPackage(r)
	if err != nil {
		return err
	}

	info, err := extract.ExportCover(r, pkg, outputPath, extract.CoverOptions{
		MaxWidth: cfg.Cover.MaxWidth,
		Quality:  cfg.Cover.Quality,
	})
	if err != nil {
		return err
	}
	logger.Info("cover exported",
		zap.String("output", outputPath),
		zap.String("source", info.Href),
		zap.String("method", info.DetectionMethod))
	fmt.Fprintln(cmd.OutOrStdout(), outputPath)
	return nil
}

// setup loads the configuration and builds the logger shared by all
// commands. Flags override config file values.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg := config.Default()
	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}

	if f := cmd.Flags().Lookup("workers"); f != nil && f.Changed {
		if w, err := cmd.Flags().GetInt("workers"); err == nil && w > 0 {
			cfg.Extract.Workers = w
		}
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logCfg := zap.NewDevelopmentConfig()
	if verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		logCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, logger, nil
}

func printMetadata(w io.Writer, pkg *epub.Package) {
	md := pkg.Metadata
	fmt.Fprintf(w, "Title:      %s\n", md.Title)
	if len(md.Creators) > 0 {
		names := make([]string, 0, len(md.Creators))
		for _, c := range md.Creators {
			if c.Role != "" {
				names = append(names, fmt.Sprintf("%s (%s)", c.Name, c.Role))
			} else {
				names = append(names, c.Name)
			}
		}
		fmt.Fprintf(w, "Creators:   %s\n", strings.Join(names, ", "))
	}
	if md.Language != "" {
		fmt.Fprintf(w, "Language:   %s\n", md.Language)
	}
	if md.Identifier != "" {
		fmt.Fprintf(w, "Identifier: %s\n", md.Identifier)
	}
	if md.Publisher != "" {
		fmt.Fprintf(w, "Publisher:  %s\n", md.Publisher)
	}
	if md.Date != "" {
		fmt.Fprintf(w, "Date:       %s\n", md.Date)
	}
	if len(md.Subjects) > 0 {
		fmt.Fprintf(w, "Subjects:   %s\n", strings.Join(md.Subjects, ", "))
	}
}

func printSpine(w io.Writer, pkg *epub.Package) {
	fmt.Fprintf(w, "Spine:      %d entries\n", len(pkg.Spine))
	for i, item := range pkg.Spine {
		target := "(not in manifest)"
		if mi, ok := pkg.Manifest[item.IDRef]; ok {
			target = epub.ResolveHref(pkg.BaseDir, mi.Href)
		}
		linear := ""
		if !item.Linear {
			linear = " [non-linear]"
		}
		fmt.Fprintf(w, "  %3d. %s -> %s%s\n", i+1, item.IDRef, target, linear)
	}
}

func printNavPoints(w io.Writer, points []epub.NavPoint, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, np := range points {
		if np.ContentPath != "" {
			fmt.Fprintf(w, "%s- %s (%s)\n", indent, np.Label, np.ContentPath)
		} else {
			fmt.Fprintf(w, "%s- %s\n", indent, np.Label)
		}
		printNavPoints(w, np.Children, depth+1)
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
