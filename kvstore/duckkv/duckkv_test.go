package duckkv

import (
	"context"
	"testing"
)

func TestStore_PutGet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, ":memory:", "kv")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer store.Close()

	if err := store.Put(ctx, []byte("k1"), []byte("hello")); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	value, ok, err := store.Get(ctx, []byte("k1"), false)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !ok {
		t.Fatalf("expected key to be found")
	}
	if string(value) != "hello" {
		t.Fatalf("unexpected value: %s", value)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, ":memory:", "kv")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer store.Close()

	_, ok, err := store.Get(ctx, []byte("missing"), false)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be absent")
	}
}

func TestStore_Range_OrdersByKey(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, ":memory:", "kv")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer store.Close()

	seed := []struct{ key, value string }{
		{"b", "2"}, {"a", "1"}, {"c", "3"}, {"d", "4"},
	}
	for _, s := range seed {
		if err := store.Put(ctx, []byte(s.key), []byte(s.value)); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}

	iter, err := store.Range(ctx, []byte("a"), []byte("c"), false)
	if err != nil {
		t.Fatalf("Range error: %v", err)
	}
	defer iter.Close()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, string(iter.KV().Key))
	}
	if err := iter.Err(); err != nil {
		t.Fatalf("iter error: %v", err)
	}
	want := []string{"a", "b"}
	if len(keys) != len(want) {
		t.Fatalf("unexpected keys: %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("unexpected keys: %v", keys)
		}
	}
}

func TestStore_Put_OverwritesExisting(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, ":memory:", "kv")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer store.Close()

	if err := store.Put(ctx, []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := store.Put(ctx, []byte("k1"), []byte("v2")); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	value, ok, err := store.Get(ctx, []byte("k1"), false)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !ok || string(value) != "v2" {
		t.Fatalf("expected overwritten value v2, got %q ok=%v", value, ok)
	}
}
