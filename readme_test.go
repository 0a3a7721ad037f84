package main

import (
	"os"
	"strings"
	"testing"
)

func TestREADMEDocumentsTheCLISurface(t *testing.T) {
	content, err := os.ReadFile("README.md")
	if err != nil {
		t.Fatalf("Failed to read README.md: %v", err)
	}

	readmeText := string(content)

	for _, section := range []string{"## Layout", "## Commands", "## Message kinds", "## Token thresholds"} {
		if !strings.Contains(readmeText, section) {
			t.Errorf("README.md missing %s section", section)
		}
	}

	// Every documented kind must match what the queue actually accepts.
	for _, kind := range []string{"blocker", "progress", "review-request", "directive", "guidance", "stop"} {
		if !strings.Contains(readmeText, "`"+kind+"`") {
			t.Errorf("README.md missing message kind %s", kind)
		}
	}

	for _, cmd := range []string{"courier init", "courier send", "courier watch inbox", "courier watch tokens"} {
		if !strings.Contains(readmeText, cmd) {
			t.Errorf("README.md missing command %s", cmd)
		}
	}
}
