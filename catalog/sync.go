// Package catalog keeps the local shader store in step with the remote
// Shadertoy catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/richinsley/glowsaver/api"
	"github.com/richinsley/glowsaver/store"
)

// DefaultConcurrency is the number of detail fetches allowed in flight.
const DefaultConcurrency = 128

// Fetcher is the remote side of a sync.
type Fetcher interface {
	ListShaders(ctx context.Context) ([]string, error)
	ShaderByID(ctx context.Context, id string) (*api.Shader, error)
}

// Store is the local side of a sync.
type Store interface {
	KnownRemoteIDs(ctx context.Context) (map[string]struct{}, error)
	InsertEntries(ctx context.Context, entries []store.Entry) (int, error)
}

// Outcome classifies a finished fetch job.
type Outcome int

const (
	Fetched Outcome = iota
	NotFound
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Fetched:
		return "fetched"
	case NotFound:
		return "not found"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Progress is reported once per finished fetch job. Index counts finished
// jobs starting at 1; Total is the number of jobs in the pass.
type Progress struct {
	Index   int
	Total   int
	ID      string
	Name    string
	Outcome Outcome
}

// Syncer runs sync passes.
type Syncer struct {
	fetcher     Fetcher
	store       Store
	concurrency int

	// Now stamps LastUpdate on new records.
	Now func() time.Time
}

// NewSyncer returns a Syncer allowing at most concurrency fetches in flight.
// A non-positive concurrency uses DefaultConcurrency.
func NewSyncer(fetcher Fetcher, st Store, concurrency int) *Syncer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Syncer{
		fetcher:     fetcher,
		store:       st,
		concurrency: concurrency,
		Now:         time.Now,
	}
}

// Sync lists the remote catalog, fetches every id not yet stored and
// inserts the results in one transaction. It returns the number of records
// committed.
//
// Ids the catalog reports as missing, and ids whose fetch fails, are skipped.
// Cancelling ctx stops new fetches from being dispatched; fetches already in
// flight finish, and nothing is written. progress may be nil; a send that
// would block is dropped.
func (s *Syncer) Sync(ctx context.Context, progress chan<- Progress) (int, error) {
	ids, err := s.fetcher.ListShaders(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list remote shaders: %w", err)
	}

	known, err := s.store.KnownRemoteIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load known shaders: %w", err)
	}

	pending := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := known[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		pending = append(pending, id)
	}
	log.Printf("Catalog has %d shaders, %d new", len(ids), len(pending))

	var (
		mu       sync.Mutex
		entries  []store.Entry
		finished int
	)
	report := func(id, name string, outcome Outcome) {
		mu.Lock()
		finished++
		p := Progress{Index: finished, Total: len(pending), ID: id, Name: name, Outcome: outcome}
		mu.Unlock()
		if progress == nil {
			return
		}
		select {
		case progress <- p:
		default:
		}
	}

	// Jobs are never cancelled once dispatched.
	jobCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, id := range pending {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			entry, outcome := s.fetch(jobCtx, id)
			if outcome == Fetched {
				mu.Lock()
				entries = append(entries, entry)
				mu.Unlock()
			}
			report(id, entry.Shader.Name, outcome)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		log.Printf("Sync cancelled, discarding %d fetched shaders", len(entries))
		return 0, fmt.Errorf("sync cancelled: %w", err)
	}

	n, err := s.store.InsertEntries(ctx, entries)
	if err != nil {
		return 0, fmt.Errorf("failed to commit %d shaders: %w", len(entries), err)
	}
	log.Printf("Sync committed %d shaders", n)
	return n, nil
}

func (s *Syncer) fetch(ctx context.Context, id string) (store.Entry, Outcome) {
	sh, err := s.fetcher.ShaderByID(ctx, id)
	if errors.Is(err, api.ErrShaderNotFound) {
		return store.Entry{}, NotFound
	}
	if err != nil {
		log.Printf("Warning: failed to fetch shader %s: %v", id, err)
		return store.Entry{}, Failed
	}
	return store.Entry{
		Shader: store.Shader{
			ShadertoyID: id,
			Name:        sh.Info.Name,
			Description: sh.Info.Description,
			Author:      sh.Info.Username,
			Type:        store.TypeGLSL,
			ReadOnly:    true,
			Favorite:    false,
			LastUpdate:  s.Now(),
		},
		SourceCode: sh.ImageCode(),
	}, Fetched
}
