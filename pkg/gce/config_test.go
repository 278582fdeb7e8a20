package gce

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig(DefaultChannelCount)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if got := cfg.Channels[3].Offset; got != ThreadBase+3*ThreadStride {
		t.Fatalf("channel 3 offset = 0x%x, want 0x%x", got, ThreadBase+3*ThreadStride)
	}
	if got := cfg.IRQMask(); got != 0xffff {
		t.Fatalf("IRQMask = 0x%x, want 0xffff", got)
	}
	if got := DefaultConfig(MaxChannels).IRQMask(); got != 0xffff_ffff {
		t.Fatalf("IRQMask(32) = 0x%x, want 0xffffffff", got)
	}
}

func TestValidateFillsResetDefaults(t *testing.T) {
	cfg := DefaultConfig(1)
	cfg.Reset = ResetConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Reset.MaxPolls != DefaultResetPolls {
		t.Fatalf("MaxPolls = %d, want %d", cfg.Reset.MaxPolls, DefaultResetPolls)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"no channels", func(c *Config) { c.Channels = nil }, "no channels"},
		{"too many channels", func(c *Config) { c.Channels = make([]ChannelConfig, 33) }, "exceeds maximum"},
		{"negative tokens", func(c *Config) { c.EventTokens = -1 }, "negative event token"},
		{"negative interval", func(c *Config) { c.Reset.Interval = -time.Second }, "negative reset poll"},
		{"unaligned offset", func(c *Config) { c.Channels[1].Offset = 0x182 }, "not 32-bit aligned"},
		{"overlapping windows", func(c *Config) { c.Channels[1].Offset = c.Channels[0].Offset + 0x20 }, "overlapping"},
		{"negative timeout", func(c *Config) { c.Channels[0].Timeout = -time.Millisecond }, "negative timeout"},
		{"bad shift", func(c *Config) { c.Layout.AddrShift = 40 }, "address shift"},
		{"unaligned layout", func(c *Config) { c.Layout.ThreadPriority = 0x41 }, "not 32-bit aligned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(2)
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLayoutAddressEncoding(t *testing.T) {
	l := DefaultLayout()
	l.AddrShift = 3

	v, err := l.ToRegister(0x1_0000_0040)
	if err != nil {
		t.Fatalf("ToRegister: %v", err)
	}
	if v != 0x2000_0008 {
		t.Fatalf("ToRegister = 0x%x, want 0x20000008", v)
	}
	if got := l.FromRegister(v); got != 0x1_0000_0040 {
		t.Fatalf("FromRegister = 0x%x", got)
	}
	if _, err := l.ToRegister(0x1_0000_0044); err == nil {
		t.Fatalf("expected error for address not aligned to shift")
	}

	l.AddrShift = 0
	if _, err := l.ToRegister(0x1_0000_0000); err == nil {
		t.Fatalf("expected error for address above 32 bits")
	}
}

func TestLayoutNames(t *testing.T) {
	l := DefaultLayout()
	if got := l.ThreadSpan(); got != 0x44 {
		t.Fatalf("ThreadSpan = 0x%x, want 0x44", got)
	}
	if got := l.ThreadRegisterName(0x24); got != "END_ADDR" {
		t.Fatalf("ThreadRegisterName(0x24) = %q", got)
	}
	if got := l.ThreadRegisterName(0x3c); got != "" {
		t.Fatalf("ThreadRegisterName(0x3c) = %q, want empty", got)
	}
}

func TestResultErr(t *testing.T) {
	if err := (Result{Status: StatusSuccess}).Err(); err != nil {
		t.Fatalf("success Err = %v", err)
	}
	if err := (Result{Status: StatusShutdown}).Err(); !errors.Is(err, ErrShutdown) {
		t.Fatalf("shutdown Err = %v", err)
	}
	if err := (Result{Status: StatusError, IsTimeout: true}).Err(); !errors.Is(err, ErrExecTimeout) {
		t.Fatalf("timeout Err = %v", err)
	}
	if err := (Result{Status: StatusError}).Err(); !errors.Is(err, ErrExecFault) {
		t.Fatalf("fault Err = %v", err)
	}
	if s := (Result{Status: StatusError, IsTimeout: true}).String(); s != "error(timeout=true)" {
		t.Fatalf("String = %q", s)
	}
}

func TestResetErrorUnwrap(t *testing.T) {
	var err error = &ResetError{Channel: 4, Polls: 10}
	if !errors.Is(err, ErrResetTimeout) {
		t.Fatalf("ResetError does not unwrap to ErrResetTimeout")
	}
	if !strings.Contains(err.Error(), "channel 4") {
		t.Fatalf("message %q missing channel", err)
	}
}
