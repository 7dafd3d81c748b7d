package upload_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"cadence/internal/services"
	"cadence/internal/upload"
)

const mib = 1 << 20

func TestValidate(t *testing.T) {
	v := upload.New("video/mp4", 20*mib)
	tests := []struct {
		name     string
		mimeType string
		observed int64
		want     upload.Reason
	}{
		{name: "accepts mp4", mimeType: "video/mp4", observed: 5 * mib, want: upload.ReasonNone},
		{name: "ignores case and params", mimeType: "Video/MP4; codecs=avc1", observed: 1, want: upload.ReasonNone},
		{name: "exactly at limit", mimeType: "video/mp4", observed: 20 * mib, want: upload.ReasonNone},
		{name: "over limit", mimeType: "video/mp4", observed: 25 * mib, want: upload.ReasonSize},
		{name: "wrong type", mimeType: "audio/mpeg", observed: 1, want: upload.ReasonType},
		{name: "missing type", mimeType: "", observed: 1, want: upload.ReasonType},
		{name: "type checked before size", mimeType: "image/png", observed: 25 * mib, want: upload.ReasonType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := v.Validate(tc.mimeType, tc.observed)
			if decision.Accepted != (tc.want == upload.ReasonNone) {
				t.Fatalf("accepted = %v, want reason %q", decision.Accepted, tc.want)
			}
			if decision.Reason != tc.want {
				t.Fatalf("reason = %q, want %q", decision.Reason, tc.want)
			}
		})
	}
}

func TestCheckDeclared(t *testing.T) {
	v := upload.New("video/mp4", 20*mib)

	if err := v.CheckDeclared("video/mp4", -1); err != nil {
		t.Fatalf("unknown size should defer to streaming, got %v", err)
	}
	err := v.CheckDeclared("video/mp4", 25*mib)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if upload.ReasonOf(err) != upload.ReasonSize {
		t.Fatalf("expected size reason, got %q", upload.ReasonOf(err))
	}
	if !strings.Contains(err.Error(), "20 MiB") {
		t.Fatalf("expected humanized limit in message: %q", err.Error())
	}
	if upload.ReasonOf(v.CheckDeclared("video/mp4", 0)) != upload.ReasonEmpty {
		t.Fatal("expected empty reason for zero declared size")
	}
	if upload.ReasonOf(v.CheckObserved("video/mp4", 0)) != upload.ReasonEmpty {
		t.Fatal("expected empty reason for zero observed size")
	}
}

func TestReaderStopsAtLimit(t *testing.T) {
	v := upload.New("video/mp4", 1024)
	body := bytes.NewReader(make([]byte, 4096))
	reader := v.Reader(body)

	n, err := io.Copy(io.Discard, reader)
	if err == nil {
		t.Fatal("expected overflow error")
	}
	if !errors.Is(err, upload.ErrTooLarge) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected size rejection markers, got %v", err)
	}
	if upload.ReasonOf(err) != upload.ReasonSize {
		t.Fatalf("unexpected reason %q", upload.ReasonOf(err))
	}
	if n > 1025 {
		t.Fatalf("reader consumed %d bytes, expected to stop right after the limit", n)
	}
	if remaining := body.Len(); remaining < 4096-1025 {
		t.Fatalf("underlying reader drained too far: %d left", remaining)
	}
}

func TestReaderAllowsExactLimit(t *testing.T) {
	reader := upload.NewLimitedReader(bytes.NewReader(make([]byte, 1024)), 1024)
	n, err := io.Copy(io.Discard, reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1024 || reader.BytesRead() != 1024 {
		t.Fatalf("unexpected byte counts: copied=%d read=%d", n, reader.BytesRead())
	}
}

func TestReaderWithoutLimit(t *testing.T) {
	reader := upload.NewLimitedReader(strings.NewReader("hello"), 0)
	data, err := io.ReadAll(reader)
	if err != nil || string(data) != "hello" {
		t.Fatalf("unexpected result %q %v", data, err)
	}
}
