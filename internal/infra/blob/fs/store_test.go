package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"herdbook/internal/blob/core"
)

func TestPutWritesSidecarAndRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	info, err := store.Put(ctx, "litters/duck/BE-7.json", strings.NewReader("{}"), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"species": "duck"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.ETag == "" || info.URL != "http://local.blob/litters/duck/BE-7.json" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := os.Stat(filepath.Join(root, "litters", "duck", "BE-7.json.meta")); err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}
	head, err := store.Head(ctx, "litters/duck/BE-7.json")
	if err != nil || head.Metadata["species"] != "duck" {
		t.Fatalf("head: %+v %v", head, err)
	}
	for _, key := range []string{"", "/abs", "../escape", "x.meta"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected key %q rejected", key)
		}
	}
}

func TestMissingBlobs(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	if _, _, err := store.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	existed, err := store.Delete(ctx, "nope")
	if err != nil || existed {
		t.Fatalf("expected (false, nil), got (%v, %v)", existed, err)
	}
	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
	url, err := store.PresignURL(ctx, "k", core.SignedURLOptions{})
	if err != nil || url != "http://local.blob/k" {
		t.Fatalf("unexpected presign %q %v", url, err)
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"b/2.json", "a/1.json", "b/1.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader(key), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "b/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "b/1.json" || list[1].Key != "b/2.json" {
		t.Fatalf("unexpected listing %+v", list)
	}
	if err := os.WriteFile(filepath.Join(root, "a", "1.json.meta"), []byte("{"), 0o600); err != nil {
		t.Fatalf("corrupt sidecar: %v", err)
	}
	if _, err := store.List(ctx, ""); err == nil {
		t.Fatalf("expected decode error for corrupt sidecar")
	}
}
