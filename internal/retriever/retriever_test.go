package retriever

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"mailrag/internal/chunk"
	"mailrag/internal/intent"
)

var testNow = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

type fakeSearch struct {
	mu      sync.Mutex
	results []chunk.Chunk
	err     error
	topKs   []int
}

func (f *fakeSearch) Search(ctx context.Context, query string, topK int) ([]chunk.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topKs = append(f.topKs, topK)
	if f.err != nil {
		return nil, f.err
	}
	if topK < len(f.results) {
		return append([]chunk.Chunk(nil), f.results[:topK]...), nil
	}
	return append([]chunk.Chunk(nil), f.results...), nil
}

type fakeStore struct {
	chunks []chunk.Chunk
	err    error
}

func (f *fakeStore) ReadAll(ctx context.Context, docType string) ([]chunk.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return chunk.FilterDocType(f.chunks, docType), nil
}

func email(id, subject, senderName, sender, date string) chunk.Chunk {
	return chunk.Chunk{
		ID:      id,
		DocID:   "doc-" + id,
		Content: chunk.Text("body of " + id),
		Metadata: chunk.Metadata{
			chunk.KeySubject:    subject,
			chunk.KeySenderName: senderName,
			chunk.KeySender:     sender,
			chunk.KeyDate:       date,
			chunk.KeyDocType:    "email",
		},
	}
}

func ids(chunks []chunk.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.ID
	}
	return out
}

func testConfig() Config {
	return Config{Now: func() time.Time { return testNow }}
}

// Budget thread: a1 is the seed, a2 and a3 only live in the store.
var (
	a1 = email("a1", "Re: Budget", "Alice Smith", "alice@example.com", "2024-05-14 09:00:00")
	a2 = email("a2", "Budget", "Bob Jones", "bob@example.com", "2024-05-12 10:00:00")
	a3 = email("a3", "RE: budget", "Alice Smith", "alice@example.com", "2024-05-13 11:00:00")
	b1 = email("b1", "Offsite", "Carol White", "carol@example.com", "2024-05-10 08:00:00")
	b2 = email("b2", "offsite", "Bob Jones", "bob@example.com", "2024-05-09 08:00:00")
	c1 = email("c1", "Hiring", "Dan Brown", "dan@example.com", "2024-05-01 08:00:00")
)

func threadStore() *fakeStore {
	note := email("n1", "Budget", "Alice Smith", "alice@example.com", "2024-05-14")
	note.Metadata[chunk.KeyDocType] = "note"
	return &fakeStore{chunks: []chunk.Chunk{a1, a2, a3, b1, b2, c1, note}}
}

func TestThreadRetriever_ExpandsTopThread(t *testing.T) {
	search := &fakeSearch{results: []chunk.Chunk{a1, b1}}
	r := NewThreadRetriever(search, threadStore(), testConfig(), nil)

	got, err := r.Retrieve(context.Background(), "budget", 1, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"a2", "a3", "a1"}, ids(got))
	for _, c := range got {
		assert.Equal(t, TagThread, c.Retriever())
	}
	assert.Equal(t, []int{DefaultSeedK}, search.topKs)
}

func TestThreadRetriever_MultipleThreadsAscending(t *testing.T) {
	search := &fakeSearch{results: []chunk.Chunk{a1, b1}}
	r := NewThreadRetriever(search, threadStore(), testConfig(), nil)

	got, err := r.Retrieve(context.Background(), "budget", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b2", "b1", "a2", "a3", "a1"}, ids(got))
}

func TestThreadRetriever_DaysBack(t *testing.T) {
	search := &fakeSearch{results: []chunk.Chunk{a1, b1}}
	r := NewThreadRetriever(search, threadStore(), testConfig(), nil)

	got, err := r.Retrieve(context.Background(), "budget", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a3", "a1"}, ids(got))
}

func TestThreadRetriever_StoreFailureFallsBackToSeeds(t *testing.T) {
	search := &fakeSearch{results: []chunk.Chunk{a1, b1}}
	r := NewThreadRetriever(search, &fakeStore{err: errors.New("database is locked")}, testConfig(), nil)

	got, err := r.Retrieve(context.Background(), "budget", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, ids(got))
}

func TestThreadRetriever_SearchUnavailable(t *testing.T) {
	search := &fakeSearch{err: fmt.Errorf("embed query: %w", ErrUnavailable)}
	r := NewThreadRetriever(search, threadStore(), testConfig(), nil)

	_, err := r.Retrieve(context.Background(), "budget", 1, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestThreadRetriever_NoSeeds(t *testing.T) {
	note := email("n1", "Budget", "Alice Smith", "alice@example.com", "2024-05-14")
	note.Metadata[chunk.KeyDocType] = "note"

	for name, results := range map[string][]chunk.Chunk{
		"empty search":        nil,
		"wrong doc type only": {note},
	} {
		t.Run(name, func(t *testing.T) {
			r := NewThreadRetriever(&fakeSearch{results: results}, threadStore(), testConfig(), nil)
			got, err := r.Retrieve(context.Background(), "budget", 3, 0)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestThreadRetriever_KeepsEveryTopThreadSeed(t *testing.T) {
	subjects := []string{"Budget", "Re: budget", "Offsite", "[ext] Hiring", "Fwd: Hiring", ""}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(t, "n")
		all := make([]chunk.Chunk, n)
		for i := range all {
			subject := rapid.SampledFrom(subjects).Draw(t, "subject")
			day := rapid.IntRange(0, 40).Draw(t, "day")
			date := testNow.AddDate(0, 0, -day).Format("2006-01-02 15:04:05")
			all[i] = email(fmt.Sprintf("c%d", i), subject, "Someone", "someone@example.com", date)
		}
		seedCount := rapid.IntRange(0, n).Draw(t, "seeds")
		topThreads := rapid.IntRange(1, 4).Draw(t, "topThreads")

		seeds := all[:seedCount]
		r := NewThreadRetriever(&fakeSearch{results: seeds}, &fakeStore{chunks: all}, Config{
			SeedK: n,
			Now:   func() time.Time { return testNow },
		}, nil)

		got, err := r.Retrieve(context.Background(), "q", topThreads, 0)
		if err != nil {
			t.Fatalf("Retrieve() error = %v", err)
		}

		seedKeys := map[string]struct{}{}
		for _, s := range seeds {
			seedKeys[s.ThreadKey()] = struct{}{}
		}
		gotIDs := map[string]struct{}{}
		gotKeys := map[string]struct{}{}
		for _, c := range got {
			gotIDs[c.ID] = struct{}{}
			gotKeys[c.ThreadKey()] = struct{}{}
		}

		if want := min(topThreads, len(seedKeys)); len(gotKeys) != want {
			t.Fatalf("got %d threads, want %d", len(gotKeys), want)
		}
		for _, s := range seeds {
			if _, selected := gotKeys[s.ThreadKey()]; !selected {
				continue
			}
			if _, ok := gotIDs[s.ID]; !ok {
				t.Fatalf("seed %s of a selected thread is missing", s.ID)
			}
		}
		for _, c := range all {
			key := c.ThreadKey()
			if _, selected := gotKeys[key]; !selected || key == "" {
				continue
			}
			if _, ok := gotIDs[c.ID]; !ok {
				t.Fatalf("thread member %s of %q is missing", c.ID, key)
			}
		}
	})
}

func TestSizeScore(t *testing.T) {
	tests := []struct {
		n    int
		want float64
	}{
		{0, 0},
		{1, 1.0 / 3},
		{2, 2.0 / 3},
		{3, 1.0},
		{15, 1.0},
		{16, 0.95},
		{20, 0.75},
		{40, 0.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, sizeScore(tt.n), 1e-9, "sizeScore(%d)", tt.n)
	}
}

func TestRecencyScore(t *testing.T) {
	assert.InDelta(t, 1.0, recencyScore([]chunk.Chunk{email("x", "s", "", "", "2024-05-15")}, testNow), 1e-9)
	assert.InDelta(t, 0.7, recencyScore([]chunk.Chunk{email("x", "s", "", "", "2024-05-12")}, testNow), 1e-9)
	assert.InDelta(t, 0.0, recencyScore([]chunk.Chunk{email("x", "s", "", "", "2024-04-01")}, testNow), 1e-9)
	assert.InDelta(t, 0.0, recencyScore([]chunk.Chunk{email("x", "s", "", "", "")}, testNow), 1e-9)
}

func TestTemporalRetriever(t *testing.T) {
	candidates := []chunk.Chunk{
		email("old", "Budget", "Alice", "alice@example.com", "2024-04-01"),
		email("mid", "Budget", "Alice", "alice@example.com", "2024-05-10 08:00:00"),
		email("undated", "Budget", "Alice", "alice@example.com", ""),
		email("new", "Budget", "Alice", "alice@example.com", "2024-05-15 07:00:00"),
		email("edge", "Budget", "Alice", "alice@example.com", "2024-05-08"),
	}

	t.Run("filters to range and sorts newest first", func(t *testing.T) {
		search := &fakeSearch{results: candidates}
		r := NewTemporalRetriever(search, testConfig(), nil)

		got, err := r.Retrieve(context.Background(), "budget", "last_week", 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"new", "mid", "edge"}, ids(got))
		for _, c := range got {
			assert.Equal(t, TagTemporal, c.Retriever())
		}
		assert.Equal(t, []int{50}, search.topKs)
	})

	t.Run("truncates before sorting", func(t *testing.T) {
		r := NewTemporalRetriever(&fakeSearch{results: candidates}, testConfig(), nil)
		got, err := r.Retrieve(context.Background(), "budget", "last_week", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"new", "mid"}, ids(got))
	})

	t.Run("over-fetch is capped", func(t *testing.T) {
		search := &fakeSearch{results: candidates}
		r := NewTemporalRetriever(search, testConfig(), nil)
		_, err := r.Retrieve(context.Background(), "budget", "today", 20)
		require.NoError(t, err)
		assert.Equal(t, []int{100}, search.topKs)
	})

	t.Run("unknown expression covers seven days", func(t *testing.T) {
		r := NewTemporalRetriever(&fakeSearch{results: candidates}, testConfig(), nil)
		got, err := r.Retrieve(context.Background(), "budget", "someday", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"new", "mid", "edge"}, ids(got))
	})

	t.Run("yesterday is a single day", func(t *testing.T) {
		r := NewTemporalRetriever(&fakeSearch{results: candidates}, testConfig(), nil)
		got, err := r.Retrieve(context.Background(), "budget", "yesterday", 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("search failure", func(t *testing.T) {
		r := NewTemporalRetriever(&fakeSearch{err: ErrUnavailable}, testConfig(), nil)
		_, err := r.Retrieve(context.Background(), "budget", "today", 10)
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestMatchSender(t *testing.T) {
	c := email("x", "s", "Alice Smith", "asmith@example.com", "2024-05-15")

	tests := []struct {
		name string
		want bool
	}{
		{"alice", true},
		{"  ALICE ", true},
		{"smith", true},
		{"asmith@example.com", true},
		{"example.com", true},
		{"bob", false},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchSender(c, tt.name))
		})
	}
}

func TestSenderRetriever(t *testing.T) {
	candidates := []chunk.Chunk{
		email("b1", "Budget", "Bob Jones", "bob@example.com", "2024-05-14"),
		email("a1", "Budget", "Alice Smith", "alice@example.com", "2024-05-10"),
		email("a2", "Launch", "", "alice@example.com", "2024-05-15"),
		email("a3", "Launch", "Alice Smith", "alice@example.com", "2024-05-01"),
	}

	t.Run("keeps relevance order", func(t *testing.T) {
		search := &fakeSearch{results: candidates}
		r := NewSenderRetriever(search, testConfig(), nil)

		got, err := r.Retrieve(context.Background(), "budget", "Alice", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "a2"}, ids(got))
		for _, c := range got {
			assert.Equal(t, TagSender, c.Retriever())
		}
		assert.Equal(t, []int{20}, search.topKs)
	})

	t.Run("unknown sender yields empty result", func(t *testing.T) {
		r := NewSenderRetriever(&fakeSearch{results: candidates}, testConfig(), nil)
		got, err := r.Retrieve(context.Background(), "budget", "Zed", 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("empty search yields empty result", func(t *testing.T) {
		r := NewSenderRetriever(&fakeSearch{}, testConfig(), nil)
		got, err := r.Retrieve(context.Background(), "budget", "Alice", 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMultiAspectRetriever_SenderAndTime(t *testing.T) {
	candidates := []chunk.Chunk{
		email("b1", "Budget", "Bob Jones", "bob@example.com", "2024-05-14"),
		email("a-old", "Budget", "Alice Smith", "alice@example.com", "2024-04-20"),
		email("a1", "Budget", "Alice Smith", "alice@example.com", "2024-05-10"),
		email("a2", "Budget v2", "Alice Smith", "alice@example.com", "2024-05-14"),
	}
	search := &fakeSearch{results: candidates}
	r := NewMultiAspectRetriever(search, nil, testConfig(), nil)

	in := intent.Intent{
		Primary:          intent.SenderQuery,
		Confidence:       0.8,
		Metadata:         intent.Metadata{Sender: "Alice", TimeRange: "last_week", DaysBack: 7},
		SecondarySignals: []intent.Kind{intent.TemporalQuery},
	}
	got, err := r.Retrieve(context.Background(), "What did Alice say about the budget last week?", in, 12)
	require.NoError(t, err)

	assert.Equal(t, []string{"a2", "a1"}, ids(got))
	for _, c := range got {
		assert.True(t, MatchSender(c, "Alice"))
		d, ok := c.Date()
		require.True(t, ok)
		assert.False(t, d.Before(testNow.AddDate(0, 0, -8)))
		assert.Equal(t, TagMultiAspect, c.Retriever())
	}
	assert.Len(t, search.topKs, 1)
}

func TestMultiAspectRetriever_PreservesSemanticOrderWithoutTime(t *testing.T) {
	tagged := email("x2", "Budget", "Alice", "alice@example.com", "2024-05-14").Tagged("sender")
	candidates := []chunk.Chunk{
		email("x1", "Budget", "Alice", "alice@example.com", "2024-05-01"),
		tagged,
		email("x3", "Budget", "Alice", "alice@example.com", "2024-05-10"),
	}
	r := NewMultiAspectRetriever(&fakeSearch{results: candidates}, nil, testConfig(), nil)

	got, err := r.Retrieve(context.Background(), "budget", intent.Intent{Primary: intent.DecisionTracking, Confidence: 0.8}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"x1", "x2", "x3"}, ids(got))
	assert.Equal(t, TagMultiAspect, got[0].Retriever())
	assert.Equal(t, "sender", got[1].Retriever())
}

func TestMultiAspectRetriever_DelegatesThreadSummary(t *testing.T) {
	search := &fakeSearch{results: []chunk.Chunk{a1, b1}}
	thread := NewThreadRetriever(search, threadStore(), testConfig(), nil)
	r := NewMultiAspectRetriever(search, thread, testConfig(), nil)

	got, err := r.Retrieve(context.Background(), "budget", intent.Intent{Primary: intent.ThreadSummary, Confidence: 0.4}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b2", "b1", "a2", "a3", "a1"}, ids(got))
	for _, c := range got {
		assert.Equal(t, TagThread, c.Retriever())
	}
}

func TestRetrieversDoNotMutateInput(t *testing.T) {
	original := email("m1", "Budget", "Alice", "alice@example.com", "2024-05-14")
	search := &fakeSearch{results: []chunk.Chunk{original}}
	r := NewSenderRetriever(search, testConfig(), nil)

	_, err := r.Retrieve(context.Background(), "budget", "Alice", 5)
	require.NoError(t, err)
	assert.Empty(t, original.Retriever())
}
