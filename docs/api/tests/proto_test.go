package tests

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	relayapi "github.com/aegis-sign/connect/internal/api"
)

func TestProtoMatchesRegisteredService(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "proto", "relay.proto"))
	if err != nil {
		t.Fatalf("read proto: %v", err)
	}
	content := string(data)
	checks := []string{
		"package " + strings.TrimSuffix(relayapi.RelayServiceName, ".Relay") + ";",
		"service Relay",
		"rpc Fetch(google.protobuf.StringValue) returns (google.protobuf.Struct)",
		"rpc Deliver(google.protobuf.Struct) returns (google.protobuf.Empty)",
		"rpc Clear(google.protobuf.StringValue) returns (google.protobuf.Empty)",
	}
	for _, token := range checks {
		if !strings.Contains(content, token) {
			t.Fatalf("proto missing %s", token)
		}
	}
}
