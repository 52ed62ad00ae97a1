package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewPingsServer(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := New(context.Background(), srv.Addr())
	if err != nil {
		t.Fatalf("expected client, got %v", err)
	}
	defer client.Close()
	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	if _, err := New(context.Background(), "127.0.0.1:1"); err == nil {
		t.Fatal("expected ping failure")
	}
}
