// Package pipeline wires the intake mapper, merge engine, and packaging
// into the end-to-end wash flow: one input file in, six merged JSON
// collections (optionally wrapped into encrypted archives) out.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/datacarwash/datacarwash/internal/domain/intake"
	"github.com/datacarwash/datacarwash/internal/domain/record"
	"github.com/datacarwash/datacarwash/internal/platform/archive"
	"github.com/datacarwash/datacarwash/internal/platform/tabular"
)

// Options configures one wash run.
type Options struct {
	// OutputDir is the base output location: the record base lives in
	// OutputDir/normalized, encrypted archives in OutputDir/encrypted.
	OutputDir string
	// Encrypt wraps each merged collection into a password-protected
	// archive after the merge.
	Encrypt  bool
	Password string
}

// Summary reports how a folder scan went. No operation partially succeeds
// silently: every file is counted either way.
type Summary struct {
	Processed int
	Failed    int
}

// Pipeline runs wash operations against one output location. Calls must be
// serialized by the caller; the record base has no locking.
type Pipeline struct {
	opts    Options
	mapper  *intake.Mapper
	service *record.Service
	log     zerolog.Logger
}

func New(opts Options, log zerolog.Logger) *Pipeline {
	store := record.NewJSONStore(filepath.Join(opts.OutputDir, "normalized"))
	return &Pipeline{
		opts:    opts,
		mapper:  intake.NewMapper(),
		service: record.NewService(store, record.NewLinearMatcher(), log),
		log:     log,
	}
}

// ProcessPath washes a single file or every supported file in a folder.
func (p *Pipeline) ProcessPath(ctx context.Context, input string) (Summary, error) {
	info, err := os.Stat(input)
	if err != nil {
		return Summary{}, fmt.Errorf("stat %s: %w", input, err)
	}
	if !info.IsDir() {
		if err := p.ProcessFile(ctx, input); err != nil {
			return Summary{Failed: 1}, err
		}
		return Summary{Processed: 1}, nil
	}

	files, err := tabular.ScanDir(input)
	if err != nil {
		return Summary{}, err
	}
	if len(files) == 0 {
		return Summary{}, fmt.Errorf("no supported files in %s", input)
	}

	var summary Summary
	for _, file := range files {
		if err := p.ProcessFile(ctx, file); err != nil {
			// A bad file fails alone; the folder scan continues.
			p.log.Error().Err(err).Str("file", file).Msg("wash failed")
			summary.Failed++
			continue
		}
		summary.Processed++
	}
	p.log.Info().
		Int("processed", summary.Processed).
		Int("failed", summary.Failed).
		Msg("folder wash complete")
	return summary, nil
}

// ProcessFile washes one survey export end to end: read, map, merge, and
// optionally package. It runs to completion or fails; there is no partial
// success for a single file.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) error {
	if !tabular.Supported(path) {
		return fmt.Errorf("%w: %s", tabular.ErrUnsupportedFile, path)
	}

	rows, err := tabular.ReadFile(path)
	if err != nil {
		return err
	}
	p.log.Info().Str("file", path).Int("rows", len(rows)).Msg("washing survey export")

	batch := p.mapper.MapRows(rows)
	if _, err := p.service.Merge(ctx, batch); err != nil {
		return fmt.Errorf("merge %s: %w", path, err)
	}

	if !p.opts.Encrypt {
		return nil
	}
	return p.encryptCollections()
}

// encryptCollections wraps each persisted collection into its own archive,
// one zip per entity-kind file.
func (p *Pipeline) encryptCollections() error {
	normalizedDir := filepath.Join(p.opts.OutputDir, "normalized")
	encryptedDir := filepath.Join(p.opts.OutputDir, "encrypted")
	for _, name := range record.CollectionFiles() {
		jsonPath := filepath.Join(normalizedDir, name)
		if _, err := os.Stat(jsonPath); os.IsNotExist(err) {
			continue
		}
		zipName := name[:len(name)-len(filepath.Ext(name))] + ".zip"
		zipPath := filepath.Join(encryptedDir, zipName)
		if err := archive.Encrypt(jsonPath, zipPath, p.opts.Password); err != nil {
			return fmt.Errorf("encrypt %s: %w", name, err)
		}
		p.log.Info().Str("collection", name).Str("archive", zipPath).Msg("collection encrypted")
	}
	return nil
}
