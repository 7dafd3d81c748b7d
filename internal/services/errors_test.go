package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"cadence/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrStorage, "scratch", "create", "input file", base)
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"scratch", "create", "input file"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindOf(t *testing.T) {
	timeout := services.Wrap(services.ErrEngine, "transcode", "wait", "", services.ErrTimeout)
	tests := []struct {
		name string
		err  error
		want services.Kind
	}{
		{name: "nil", err: nil, want: services.KindNone},
		{name: "validation", err: services.Wrap(services.ErrValidation, "upload", "", "too large", nil), want: services.KindValidation},
		{name: "timeout beats engine", err: timeout, want: services.KindTimeout},
		{name: "engine", err: services.Wrap(services.ErrEngine, "transcode", "", "exit 1", nil), want: services.KindEngine},
		{name: "canceled", err: fmt.Errorf("stop: %w", services.ErrCanceled), want: services.KindCanceled},
		{name: "unclassified is storage", err: errors.New("disk"), want: services.KindStorage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPublicMessageHidesInternalDetail(t *testing.T) {
	internal := services.Wrap(services.ErrEngine, "transcode", "run", "", errors.New("/var/scratch/in.mp4: Invalid data found"))
	err := services.Public("input file is not a readable video", internal)

	if got := services.PublicMessage(err); got != "input file is not a readable video" {
		t.Fatalf("unexpected public message: %q", got)
	}
	if !errors.Is(err, services.ErrEngine) {
		t.Fatal("expected engine marker through PublicError")
	}
	if got := services.PublicMessage(internal); strings.Contains(got, "/var/scratch") {
		t.Fatalf("fallback message leaked a path: %q", got)
	}
	if got := services.PublicMessage(internal); got != "conversion failed" {
		t.Fatalf("unexpected fallback: %q", got)
	}
}
