package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewClient_AddrAndURL(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c1, err := NewClient(ctx, Options{Addr: mr.Addr()}, nil)
	if err != nil {
		t.Fatalf("NewClient(addr): %v", err)
	}
	t.Cleanup(func() { _ = c1.Close() })

	c2, err := NewClient(ctx, Options{URL: "redis://" + mr.Addr() + "/0"}, nil)
	if err != nil {
		t.Fatalf("NewClient(url): %v", err)
	}
	t.Cleanup(func() { _ = c2.Close() })
}

func TestNewClient_MissingAddress(t *testing.T) {
	t.Parallel()
	if _, err := NewClient(context.Background(), Options{}, nil); err == nil {
		t.Fatalf("NewClient() err=nil want error")
	}
}
