package discovery

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		RefreshInterval: 30 * time.Second,
		GroupName:       "prod-*",
		Region:          "us-east-1",
		HostName:        "seed-?",
		AddressFamily:   AddressPrivate,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := valid
	bad.AddressFamily = ""
	if err := bad.Validate(); err == nil {
		t.Error("missing address family accepted")
	}

	bad = valid
	bad.AddressFamily = "both"
	if err := bad.Validate(); err == nil {
		t.Error("unknown address family accepted")
	}

	// Brackets are ordinary characters in the simple wildcard language,
	// so patterns carrying them still validate, with or without a '*'.
	literal := valid
	literal.GroupName = "prod-[east]"
	if err := literal.Validate(); err != nil {
		t.Errorf("literal group name rejected: %v", err)
	}
	literal.GroupName = "prod-[*"
	literal.HostName = "seed-[*"
	if err := literal.Validate(); err != nil {
		t.Errorf("bracketed pattern rejected: %v", err)
	}
}

func TestStaticConfig(t *testing.T) {
	cfg := Config{Region: "eu-west-1", AddressFamily: AddressPublic}
	provider := StaticConfig(cfg)
	if got := provider(); got != cfg {
		t.Errorf("StaticConfig returned %+v", got)
	}
}
