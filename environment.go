// Package bang is the recursive binary-analysis scanning engine:
// given one root artifact, it walks every byte of it and everything
// nested inside it, identifying formats via extension, signature, and
// suggestion-based dispatch, and records the result as a tree of meta
// directories under a meta root.
package bang

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"bangscan/internal/bangerr"
	"bangscan/internal/config"
	"bangscan/internal/contentindex"
	"bangscan/internal/metadir"
	"bangscan/internal/registry"
	"bangscan/internal/scanstage"
	"bangscan/internal/worker"
)

// Environment wires together the registry, worker pool, content
// index, and configuration one scan run needs.
type Environment struct {
	Config   config.Config
	Registry *registry.Registry
	Index    *contentindex.Index

	pool *worker.Pool
	log  *slog.Logger
}

// NewEnvironment builds an Environment from cfg and reg. It creates
// the meta root if absent and opens the content-duplicate index.
func NewEnvironment(cfg config.Config, reg *registry.Registry) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.MetaRoot, 0o755); err != nil {
		return nil, bangerr.Wrap(bangerr.ConfigurationError, fmt.Errorf("environment: mkdir meta root: %w", err))
	}

	idx, err := contentindex.Open(cfg.ContentIndexPath)
	if err != nil {
		return nil, bangerr.Wrap(bangerr.ConfigurationError, err)
	}

	return &Environment{
		Config:   cfg,
		Registry: reg,
		Index:    idx,
		pool:     worker.New(cfg.Workers, cfg.QueueIdleTimeout),
		log:      slog.Default(),
	}, nil
}

func (e *Environment) Close() error {
	if e.Index != nil {
		return e.Index.Close()
	}
	return nil
}

// Scan enqueues rootPath as the scan's single root meta directory and
// runs the worker pool to completion, recursively unpacking and
// classifying every byte it contains.
func (e *Environment) Scan(ctx context.Context, rootPath string) error {
	info, err := os.Stat(rootPath)
	if err != nil {
		return bangerr.Wrap(bangerr.ConfigurationError, fmt.Errorf("environment: stat %s: %w", rootPath, err))
	}

	root := metadir.New(e.Config.MetaRoot, "root", rootPath, info.Size())
	e.log.Info("scan starting", "root", rootPath, "size", info.Size(), "workers", e.Config.Workers)

	e.enqueueScan(root)
	err = e.pool.Run(ctx)
	e.log.Info("scan finished", "root", rootPath, "err", err)
	return err
}

// Resume walks an existing meta root and re-enqueues every meta
// directory that has an info.gob whose unpack_parser is unset. An
// MD's info.gob is written when its own scan job closes it, so this
// finds MDs that were scanned without a parser being installed on
// them, such as a root whose signature matches were all carved into
// children. A child that a parent recorded but whose own job never
// ran has no info.gob and is not re-enqueued. After a completed scan,
// Resume re-scans every such unclassified MD; with none, it just
// returns.
func (e *Environment) Resume(ctx context.Context) error {
	var pending []*metadir.MetaDirectory

	err := filepath.WalkDir(e.Config.MetaRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "info.gob" {
			return nil
		}
		mdPath, relErr := filepath.Rel(e.Config.MetaRoot, filepath.Dir(path))
		if relErr != nil {
			return relErr
		}
		md := metadir.New(e.Config.MetaRoot, filepath.ToSlash(mdPath), "", 0)
		if readErr := md.ReadInfo(); readErr != nil {
			return readErr
		}
		if md.Info().UnpackParser == "" {
			pending = append(pending, md)
		}
		return nil
	})
	if err != nil {
		return bangerr.Wrap(bangerr.ConfigurationError, fmt.Errorf("environment: resume walk: %w", err))
	}

	e.log.Info("resume: found unfinished meta directories", "count", len(pending))
	for _, md := range pending {
		e.enqueueScan(md)
	}
	return e.pool.Run(ctx)
}

// enqueueScan submits one meta directory for classification, running
// the default pipeline against it and enqueueing whatever children it
// discovers.
func (e *Environment) enqueueScan(md *metadir.MetaDirectory) {
	e.pool.Submit(func(ctx context.Context) error {
		reader, err := md.Open()
		if err != nil {
			return bangerr.Wrap(bangerr.ExtractionIOFailure, err).WithContext("", md.MDPath)
		}
		defer md.Close()

		if md.Size > 0 && e.Index != nil {
			section := io.NewSectionReader(reader, 0, md.Size)
			duplicate, canonical, hashErr := e.Index.CheckAndRecord(section, md.MDPath)
			if hashErr != nil {
				return bangerr.Wrap(bangerr.ExtractionIOFailure, hashErr).WithContext("", md.MDPath)
			}
			if duplicate {
				md.Info().AddLabel("duplicate")
				md.Info().Metadata["duplicate_of"] = canonical
				e.log.Debug("duplicate content, skipping classification", "md", md.MDPath, "of", canonical)
				return nil
			}
		}

		env := &scanstage.Env{
			Registry:  e.Registry,
			MD:        md,
			Reader:    reader,
			ChunkSize: e.Config.SignatureChunkSize,
			Enqueue:   e.enqueueScan,
		}

		_, err = DefaultPipeline()(ctx, env)
		return err
	})
}
