package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"mailrag/internal/chunk"
	"mailrag/internal/contextutil"
)

// ThreadRetriever finds the conversations most relevant to a query and returns them whole.
type ThreadRetriever struct {
	search SemanticSearch
	store  MetadataStore
	cfg    Config
	logger *slog.Logger
}

// NewThreadRetriever creates a thread retriever.
func NewThreadRetriever(search SemanticSearch, store MetadataStore, cfg Config, logger *slog.Logger) *ThreadRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThreadRetriever{search: search, store: store, cfg: cfg.withDefaults(), logger: logger}
}

type thread struct {
	key     string
	order   int
	seeds   []chunk.Chunk
	members []chunk.Chunk
	score   float64
}

// Retrieve returns every chunk of the topThreads best threads, oldest first.
// daysBack > 0 drops chunks older than that many days (and undated ones).
func (r *ThreadRetriever) Retrieve(ctx context.Context, query string, topThreads, daysBack int) ([]chunk.Chunk, error) {
	logger := contextutil.LoggerFromContextOr(ctx, r.logger)
	if topThreads <= 0 {
		topThreads = DefaultTopThreads
	}

	var seeds, all []chunk.Chunk
	storeOK := true

	// The seed search and the store scan are independent; run them together.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := r.search.Search(gctx, query, r.cfg.SeedK)
		if err != nil {
			return fmt.Errorf("failed to search thread seeds: %w", err)
		}
		seeds = chunk.FilterDocType(found, r.cfg.DocType)
		return nil
	})
	g.Go(func() error {
		scanned, err := r.store.ReadAll(gctx, r.cfg.DocType)
		if err != nil {
			if gctx.Err() == nil {
				logger.WarnContext(ctx, "metadata scan failed, expanding threads from seeds only", "error", err)
			}
			storeOK = false
			return nil
		}
		all = scanned
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(seeds) == 0 {
		logger.DebugContext(ctx, "no thread seeds found", "query", query)
		return []chunk.Chunk{}, nil
	}

	threads := groupSeeds(seeds)
	byKey := make(map[string][]chunk.Chunk)
	if storeOK {
		for _, c := range all {
			key := c.ThreadKey()
			if key == "" {
				continue
			}
			byKey[key] = append(byKey[key], c)
		}
	}

	now := r.cfg.Now()
	for _, t := range threads {
		t.members = unionByID(byKey[t.key], t.seeds)
		t.score = 2*float64(len(t.seeds)) + sizeScore(len(t.members)) + recencyScore(t.members, now)
	}

	sort.SliceStable(threads, func(i, j int) bool {
		if threads[i].score != threads[j].score {
			return threads[i].score > threads[j].score
		}
		return threads[i].order < threads[j].order
	})
	if len(threads) > topThreads {
		threads = threads[:topThreads]
	}

	var out []chunk.Chunk
	for _, t := range threads {
		logger.DebugContext(ctx, "selected thread",
			"subject", t.key,
			"seeds", len(t.seeds),
			"members", len(t.members),
			"score", t.score,
		)
		out = append(out, t.members...)
	}

	if daysBack > 0 {
		cutoff := chunk.Day(now).AddDate(0, 0, -daysBack)
		kept := out[:0]
		for _, c := range out {
			if d, ok := c.Date(); ok && !chunk.Day(d).Before(cutoff) {
				kept = append(kept, c)
			}
		}
		out = kept
	}

	out = tagAll(out, TagThread)
	chunk.SortByDate(out, false)

	logger.InfoContext(ctx, "thread retrieval complete",
		"seeds", len(seeds),
		"threads", len(threads),
		"chunks", len(out),
	)
	return out, nil
}

// groupSeeds groups seeds by normalized subject in order of first appearance.
func groupSeeds(seeds []chunk.Chunk) []*thread {
	index := make(map[string]*thread)
	var threads []*thread
	for _, s := range seeds {
		key := s.ThreadKey()
		t, ok := index[key]
		if !ok {
			t = &thread{key: key, order: len(threads)}
			index[key] = t
			threads = append(threads, t)
		}
		t.seeds = append(t.seeds, s)
	}
	return threads
}

// unionByID appends the seeds missing from members, preserving members' order.
func unionByID(members, seeds []chunk.Chunk) []chunk.Chunk {
	out := make([]chunk.Chunk, 0, len(members)+len(seeds))
	seen := make(map[string]struct{}, len(members)+len(seeds))
	for _, list := range [][]chunk.Chunk{members, seeds} {
		for _, c := range list {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// sizeScore favors threads of 3-15 messages: linear below 3, decaying 0.05 per
// message above 15 with a floor of 0.5.
func sizeScore(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n < 3:
		return float64(n) / 3
	case n <= 15:
		return 1.0
	default:
		return math.Max(0.5, 1.0-0.05*float64(n-15))
	}
}

// recencyScore is 1 for a thread active today, losing 0.1 per day since its newest message.
func recencyScore(members []chunk.Chunk, now time.Time) float64 {
	var newest time.Time
	found := false
	for _, c := range members {
		if d, ok := c.Date(); ok && (!found || d.After(newest)) {
			newest = d
			found = true
		}
	}
	if !found {
		return 0
	}
	days := chunk.Day(now).Sub(chunk.Day(newest)).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Max(0, 1-0.1*days)
}
