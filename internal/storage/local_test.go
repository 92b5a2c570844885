package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"dubflow/internal/config"
	"dubflow/internal/storage"
	"dubflow/internal/testsupport"
)

func TestLocalUploadDownloadRoundTrip(t *testing.T) {
	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()
	key := "acme/launch/t1/raw/raw.mp4"

	if err := local.Upload(ctx, key, strings.NewReader("video-bytes")); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	exists, err := local.Exists(ctx, key)
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v", exists, err)
	}

	rc, err := local.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil || string(data) != "video-bytes" {
		t.Fatalf("content = %q err = %v", data, err)
	}
}

func TestLocalExistsMissing(t *testing.T) {
	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	exists, err := local.Exists(context.Background(), "a/b/c/d")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("missing key reported as existing")
	}
}

func TestLocalRejectsTraversalKeys(t *testing.T) {
	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"../escape", "a/../../escape", "/etc/passwd", ""} {
		if err := local.Upload(ctx, key, strings.NewReader("x")); err == nil {
			t.Fatalf("Upload(%q) succeeded, want error", key)
		}
	}
}

func TestLocalURLIsFilePath(t *testing.T) {
	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()
	key := "default/default/t1/pack/capcut_pack.zip"
	if err := local.Upload(ctx, key, strings.NewReader("zip")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	url, err := local.URL(ctx, key, time.Hour)
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if !strings.Contains(url, "capcut_pack.zip") {
		t.Fatalf("url = %q", url)
	}
}

func TestFromConfigSelectsProvider(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc, err := storage.FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if svc.Provider() != "local" {
		t.Fatalf("provider = %q", svc.Provider())
	}

	cfg.Storage = config.Storage{Provider: "s3", Bucket: "clips", Region: "auto", AccessKeyID: "k", SecretKey: "s", Endpoint: "http://127.0.0.1:9000"}
	svc, err = storage.FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig(s3): %v", err)
	}
	if svc.Provider() != "s3" {
		t.Fatalf("provider = %q", svc.Provider())
	}

	cfg.Storage.Provider = "ftp"
	if _, err := storage.FromConfig(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestS3RequiresBucket(t *testing.T) {
	if _, err := storage.NewS3(config.Storage{Provider: "s3"}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}
