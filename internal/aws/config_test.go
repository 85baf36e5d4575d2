package aws

import (
	"context"
	"testing"
)

func TestLoadAWSConfig_DefaultRegion(t *testing.T) {
	cfg, err := LoadAWSConfig(context.Background(), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Region != "us-east-1" {
		t.Fatalf("expected default region 'us-east-1', got %s", cfg.Region)
	}
}

func TestLoadAWSConfig_WithEndpointOverride(t *testing.T) {
	cfg, err := LoadAWSConfig(context.Background(), "sa-east-1", "http://localhost:4566")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Region != "sa-east-1" {
		t.Fatalf("region mismatch, got %s", cfg.Region)
	}
	if cfg.BaseEndpoint == nil || *cfg.BaseEndpoint != "http://localhost:4566" {
		t.Fatalf("expected base endpoint override, got %v", cfg.BaseEndpoint)
	}
}

func TestManagementEndpoint(t *testing.T) {
	cases := map[string]string{
		"": "",
		"wss://abc.execute-api.us-east-1.amazonaws.com/prod": "https://abc.execute-api.us-east-1.amazonaws.com/prod",
		"ws://localhost:3001":                                "http://localhost:3001",
		"https://already.example.com/prod":                   "https://already.example.com/prod",
	}
	for in, want := range cases {
		if got := ManagementEndpoint(in); got != want {
			t.Fatalf("ManagementEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}
