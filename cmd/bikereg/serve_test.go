package main

import (
	"strings"
	"testing"
)

func TestServeCmd_Help(t *testing.T) {
	out, err := runCmd(t, "", "serve", "--help")
	if err != nil {
		t.Fatalf("serve --help failed: %v", err)
	}
	for _, want := range []string{"registration", "--port", "--config"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected help to mention %q, got: %s", want, out)
		}
	}
}

func TestServeCmd_MissingConfig(t *testing.T) {
	_, err := runCmd(t, "", "serve", "--config", "/nonexistent/bikereg.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestServeCmd_BadCameraConfig(t *testing.T) {
	path := writeTestConfig(t, "scanner:\n  formats: [AZTEC]\n")
	_, err := runCmd(t, "", "serve", "--config", path)
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("error = %v, want unsupported format", err)
	}
}
