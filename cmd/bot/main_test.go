package main

import (
	"os"
	"testing"

	"github.com/guyghost/constantine/internal/config"
)

func TestRun_MissingCredentialsFails(t *testing.T) {
	os.Unsetenv("FUTURES_API_KEY")
	os.Unsetenv("FUTURES_API_SECRET")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected config.Load to fail without exchange credentials")
	}
}

func TestHeadlessFlagDefault(t *testing.T) {
	if *headless {
		t.Error("headless should default to false")
	}
}
