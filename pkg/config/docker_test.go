package config

import (
	"testing"
)

func TestResolveHost(t *testing.T) {
	tests := []struct {
		input    string
		inDocker bool
		expected string
	}{
		{"mydb.example.com", true, "mydb.example.com"},
		{"192.168.1.100", true, "192.168.1.100"},
		{"host.docker.internal", true, "host.docker.internal"},
		{"localhost", true, "host.docker.internal"},
		{"127.0.0.1", true, "host.docker.internal"},
		{"localhost", false, "localhost"},
		{"127.0.0.1", false, "127.0.0.1"},
	}

	for _, tt := range tests {
		result := resolveHost(tt.input, tt.inDocker)
		if result != tt.expected {
			t.Errorf("resolveHost(%q, %v) = %q, want %q", tt.input, tt.inDocker, result, tt.expected)
		}
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		input    string
		inDocker bool
		expected string
	}{
		{"http://localhost:8000/v1", true, "http://host.docker.internal:8000/v1"},
		{"http://127.0.0.1/v1", true, "http://host.docker.internal/v1"},
		{"http://vllm:8000/v1", true, "http://vllm:8000/v1"},
		{"http://localhost:8000/v1", false, "http://localhost:8000/v1"},
		{"", true, ""},
		{"not a url", true, "not a url"},
	}

	for _, tt := range tests {
		result := resolveURL(tt.input, tt.inDocker)
		if result != tt.expected {
			t.Errorf("resolveURL(%q, %v) = %q, want %q", tt.input, tt.inDocker, result, tt.expected)
		}
	}
}

func TestIsRunningInDocker_Cached(t *testing.T) {
	first := IsRunningInDocker()
	second := IsRunningInDocker()
	if first != second {
		t.Errorf("IsRunningInDocker() not stable: %v then %v", first, second)
	}
}
