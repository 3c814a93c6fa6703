package tests

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func loadOpenAPI(t *testing.T) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "openapi.yaml"))
	if err != nil {
		t.Fatalf("read openapi: %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return doc
}

func TestMailboxOperationsDocumented(t *testing.T) {
	doc := loadOpenAPI(t)
	paths := doc["paths"].(map[string]any)
	mailbox := paths["/topic/{id}"].(map[string]any)
	for _, method := range []string{"get", "post", "delete"} {
		if _, ok := mailbox[method]; !ok {
			t.Fatalf("/topic/{id} missing %s", method)
		}
	}
	if _, ok := paths["/topic/{id}/stream"]; !ok {
		t.Fatal("stream endpoint missing")
	}
}

func TestDeliverDocumentsConflictAndRetryAfter(t *testing.T) {
	doc := loadOpenAPI(t)
	post := doc["paths"].(map[string]any)["/topic/{id}"].(map[string]any)["post"].(map[string]any)
	responses := post["responses"].(map[string]any)
	for _, code := range []string{"201", "409", "429"} {
		if _, ok := responses[code]; !ok {
			t.Fatalf("deliver must document %s", code)
		}
	}
	retry := doc["components"].(map[string]any)["responses"].(map[string]any)["RetryLater"].(map[string]any)
	headers := retry["headers"].(map[string]any)
	if _, ok := headers["Retry-After"]; !ok {
		t.Fatal("RetryLater must document Retry-After header")
	}
}

func TestTopicIDPattern(t *testing.T) {
	doc := loadOpenAPI(t)
	param := doc["components"].(map[string]any)["parameters"].(map[string]any)["TopicId"].(map[string]any)
	schema := param["schema"].(map[string]any)
	if schema["pattern"] == nil {
		t.Fatal("TopicId must include pattern")
	}
}
