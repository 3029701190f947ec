package vectorstore

import (
	"context"
	"log/slog"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

func TestGRPCAddress(t *testing.T) {
	tests := []struct {
		name     string
		urlStr   string
		wantErr  bool
		wantHost string
		wantPort int
	}{
		{
			name:     "valid URL",
			urlStr:   "http://localhost:6333",
			wantHost: "localhost",
			wantPort: 6334, // gRPC port is HTTP port + 1
		},
		{
			name:     "URL with custom port",
			urlStr:   "http://qdrant.internal:9000",
			wantHost: "qdrant.internal",
			wantPort: 9001,
		},
		{
			name:    "invalid URL",
			urlStr:  "://invalid",
			wantErr: true,
		},
		{
			name:     "URL without port",
			urlStr:   "http://localhost",
			wantHost: "localhost",
			wantPort: 6334, // Default
		},
		{
			name:     "URL without hostname",
			urlStr:   "http://:6333",
			wantHost: "localhost", // Defaults to localhost
			wantPort: 6334,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := grpcAddress(tt.urlStr)
			if tt.wantErr {
				if err == nil {
					t.Error("grpcAddress() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("grpcAddress() error = %v", err)
			}

			if host != tt.wantHost {
				t.Errorf("Host = %v, want %v", host, tt.wantHost)
			}
			if port != tt.wantPort {
				t.Errorf("Port = %v, want %v", port, tt.wantPort)
			}
		})
	}
}

// TestNewQdrantStore_InvalidURL tests that invalid URLs return errors.
func TestNewQdrantStore_InvalidURL(t *testing.T) {
	_, err := NewQdrantStore("://invalid", nil)
	if err == nil {
		t.Error("NewQdrantStore() with invalid URL should return error")
	}
}

func TestQdrantStore_getLogger(t *testing.T) {
	store := &QdrantStore{logger: slog.Default()}

	logger := store.getLogger(context.Background())
	if logger == nil {
		t.Fatal("getLogger() should return logger when store has logger set")
	}

	// Verify it returns the store's logger when no context logger
	if logger != store.logger {
		t.Error("getLogger() should return store logger when context has no logger")
	}
}

func TestQdrantStore_Search_Validation(t *testing.T) {
	// These fail validation before the client is used
	store := &QdrantStore{
		logger: slog.Default(),
	}

	ctx := context.Background()
	_, err := store.Search(ctx, "test-collection", []float32{1.0, 2.0}, 0, nil)
	if err == nil {
		t.Error("Search() with k=0 should return error")
	}

	_, err = store.Search(ctx, "test-collection", []float32{1.0, 2.0}, -1, nil)
	if err == nil {
		t.Error("Search() with k=-1 should return error")
	}

	_, err = store.Search(ctx, "test-collection", nil, 5, nil)
	if err == nil {
		t.Error("Search() with empty vector should return error")
	}
}

func TestBuildFilter(t *testing.T) {
	logger := slog.Default()
	ctx := context.Background()

	tests := []struct {
		name    string
		filters map[string]any
		want    int // number of must conditions, -1 for nil filter
	}{
		{name: "nil filters", filters: nil, want: -1},
		{name: "doc type", filters: map[string]any{"doc_type": "email"}, want: 1},
		{name: "empty string skipped", filters: map[string]any{"doc_type": ""}, want: -1},
		{name: "mixed types", filters: map[string]any{"doc_type": "email", "year": 2024, "starred": true}, want: 3},
		{name: "unsupported type skipped", filters: map[string]any{"doc_type": "email", "score": 0.5}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildFilter(ctx, logger, tt.filters)
			if tt.want == -1 {
				if got != nil {
					t.Errorf("buildFilter() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("buildFilter() returned nil")
			}
			if len(got.Must) != tt.want {
				t.Errorf("buildFilter() must conditions = %d, want %d", len(got.Must), tt.want)
			}
		})
	}
}

func TestBuildFilter_SortedKeys(t *testing.T) {
	got := buildFilter(context.Background(), slog.Default(), map[string]any{"sender": "a@x.com", "doc_type": "email"})
	if got == nil || len(got.Must) != 2 {
		t.Fatalf("buildFilter() = %v", got)
	}
	if key := got.Must[0].GetField().GetKey(); key != "doc_type" {
		t.Errorf("first condition key = %q, want doc_type", key)
	}
}

func TestPointIDString(t *testing.T) {
	tests := []struct {
		name string
		id   *qdrant.PointId
		want string
	}{
		{name: "nil", id: nil, want: ""},
		{name: "uuid", id: qdrant.NewID("5c56c793-69f3-4fbf-87e6-c4bf54c28c26"), want: "5c56c793-69f3-4fbf-87e6-c4bf54c28c26"},
		{name: "numeric", id: qdrant.NewIDNum(42), want: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pointIDString(tt.id); got != tt.want {
				t.Errorf("pointIDString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConvertPayloadToMap(t *testing.T) {
	result := convertPayloadToMap(nil)
	if result == nil {
		t.Error("convertPayloadToMap() should return empty map, not nil")
	}
	if len(result) != 0 {
		t.Errorf("convertPayloadToMap() with nil should return empty map, got %d items", len(result))
	}

	payload := qdrant.NewValueMap(map[string]any{
		"doc_type": "email",
		"count":    3,
		"labels":   []any{"a", "b"},
	})
	result = convertPayloadToMap(payload)
	if result["doc_type"] != "email" {
		t.Errorf("doc_type = %v, want email", result["doc_type"])
	}
	if result["count"] != int64(3) {
		t.Errorf("count = %v (%T), want int64 3", result["count"], result["count"])
	}
	if labels, ok := result["labels"].([]any); !ok || len(labels) != 2 {
		t.Errorf("labels = %v, want two items", result["labels"])
	}
}
