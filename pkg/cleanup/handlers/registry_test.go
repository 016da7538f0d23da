package handlers

import (
	"context"
	"strings"
	"testing"
	"time"

	"mercator-hq/janitor/pkg/cleanup"
)

func noop() Binding {
	return Binding{Handler: HandlerFunc(func(context.Context, Request) (Result, error) {
		return Result{}, nil
	})}
}

func TestNewRegistry_AllBound(t *testing.T) {
	r, err := NewRegistry(Builtins{
		Messages:      noop(),
		Notifications: noop(),
		ProfileVisits: noop(),
		FeedCache:     noop(),
		MediaUploads:  noop(),
	})
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}
	for _, key := range cleanup.BuiltinKeys() {
		if _, ok := r.Handler(key); !ok {
			t.Errorf("Expected handler for %s", key)
		}
	}
}

func TestNewRegistry_MissingKeys(t *testing.T) {
	_, err := NewRegistry(Builtins{Messages: noop(), FeedCache: noop()})
	if err == nil {
		t.Fatal("Expected error for unbound keys")
	}
	for _, key := range []string{"notifications", "profile_visits", "media_uploads"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("Expected error to name %s, got %v", key, err)
		}
	}
}

func TestBuiltins_CoverEveryKey(t *testing.T) {
	bound := Builtins{}.bindings()
	for _, key := range cleanup.BuiltinKeys() {
		if _, ok := bound[key]; !ok {
			t.Errorf("Builtins has no field for %s", key)
		}
	}
	if len(bound) != len(cleanup.BuiltinKeys()) {
		t.Errorf("Builtins maps %d keys, expected %d", len(bound), len(cleanup.BuiltinKeys()))
	}
}

func TestRegistry_RuntimeBinding(t *testing.T) {
	r := Empty()
	key := cleanup.Key("search_history")

	if _, ok := r.Handler(key); ok {
		t.Fatal("Expected no handler before Register")
	}

	est := EstimatorFunc(func(context.Context, *time.Time) (int64, error) { return 7, nil })
	r.Register(key, noop().Handler, est)

	if _, ok := r.Handler(key); !ok {
		t.Error("Expected handler after Register")
	}
	e, ok := r.Estimator(key)
	if !ok {
		t.Fatal("Expected estimator after Register")
	}
	if n, _ := e.Estimate(context.Background(), nil); n != 7 {
		t.Errorf("Expected estimate 7, got %d", n)
	}

	r.Register(key, nil, nil)
	if _, ok := r.Handler(key); ok {
		t.Error("Expected Register(nil) to remove the handler")
	}
	if len(r.Keys()) != 0 {
		t.Errorf("Expected no keys, got %v", r.Keys())
	}
}

func TestHasMore(t *testing.T) {
	tests := []struct {
		deleted, batch int
		want           bool
	}{
		{20, 20, true},
		{15, 20, false},
		{0, 20, false},
		{0, 0, false},
	}
	for _, tt := range tests {
		if got := hasMore(tt.deleted, tt.batch); got != tt.want {
			t.Errorf("hasMore(%d, %d) = %v, want %v", tt.deleted, tt.batch, got, tt.want)
		}
	}
}
