package publishers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleRegistry = `
publishers:
  - id: team-webhook
    type: http
    http:
      url: https://hooks.example.com/news
      headers:
        Authorization: Bearer ${WEBHOOK_TOKEN}
  - id: ingest-queue
    type: queue
    enabled: false
    queue:
      provider: aws-sqs
      aws:
        uri: https://sqs.eu-west-1.amazonaws.com/123/news
        region: eu-west-1
        access_key_id: AKIATEST
        secret_access_key: secret
`

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "publishers.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing registry file: %v", err)
	}
	return path
}

func TestLoadRegistry(t *testing.T) {
	t.Setenv("WEBHOOK_TOKEN", "s3cret")

	reg, err := LoadRegistry(writeRegistry(t, sampleRegistry))
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}

	if len(reg.All()) != 2 {
		t.Fatalf("expected 2 publishers, got %d", len(reg.All()))
	}

	hook, ok := reg.ByID("team-webhook")
	if !ok {
		t.Fatal("team-webhook not found")
	}
	if hook.HTTP.Method != "POST" {
		t.Errorf("default method = %q, want POST", hook.HTTP.Method)
	}
	if hook.HTTP.TimeoutSeconds != 5 {
		t.Errorf("default timeout = %d, want 5", hook.HTTP.TimeoutSeconds)
	}
	if got := hook.HTTP.Headers["Authorization"]; got != "Bearer s3cret" {
		t.Errorf("env expansion failed: %q", got)
	}

	enabled := reg.Enabled()
	if len(enabled) != 1 || enabled[0].ID != "team-webhook" {
		t.Errorf("enabled = %+v, want only team-webhook", enabled)
	}
}

func TestLoadRegistryRejectsDuplicates(t *testing.T) {
	content := `
publishers:
  - id: same
    type: http
    http:
      url: https://a.example.com
  - id: same
    type: http
    http:
      url: https://b.example.com
`
	if _, err := LoadRegistry(writeRegistry(t, content)); err == nil {
		t.Fatal("duplicate ids accepted")
	}
}

func TestLoadRegistryValidatesQueueConfig(t *testing.T) {
	content := `
publishers:
  - id: broken
    type: queue
    queue:
      provider: aws-sqs
      aws:
        uri: ""
`
	if _, err := LoadRegistry(writeRegistry(t, content)); err == nil {
		t.Fatal("invalid sqs config accepted")
	}
}

func TestBuildAllResolvesTypes(t *testing.T) {
	t.Setenv("WEBHOOK_TOKEN", "x")

	reg, err := LoadRegistry(writeRegistry(t, sampleRegistry))
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}

	pubs, err := BuildAll(context.Background(), DefaultRegistry(), reg.Enabled(), nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(pubs) != 1 || pubs[0].Type() != TypeHTTP {
		t.Fatalf("expected one http publisher, got %+v", pubs)
	}
}
