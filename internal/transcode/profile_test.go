package transcode

import (
	"reflect"
	"testing"
)

func TestProfileArgs(t *testing.T) {
	got := testProfile.Args("/scratch/in.mp4", "/scratch/out.mp3")
	want := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-i", "/scratch/in.mp4",
		"-vn",
		"-c:a", "libmp3lame", "-b:a", "192k",
		"-f", "mp3",
		"/scratch/out.mp3",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", got, want)
	}
}

func TestProfileArgsQualityWhenNoBitrate(t *testing.T) {
	profile := testProfile
	profile.Bitrate = ""
	profile.Quality = 2
	args := profile.Args("in", "out")
	if !containsPair(args, "-q:a", "2") {
		t.Fatalf("expected VBR quality flag, got %v", args)
	}
	if containsPair(args, "-b:a", "") {
		t.Fatalf("bitrate flag should be absent, got %v", args)
	}
}

func TestDownloadName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"holiday.mp4", "holiday.mp3"},
		{"clips/talk.final.mp4", "talk.final.mp3"},
		{`C:\Users\me\lecture.mp4`, "lecture.mp3"},
		{"", "converted.mp3"},
		{".mp4", "converted.mp3"},
	}
	for _, tc := range tests {
		if got := testProfile.DownloadName(tc.in); got != tc.want {
			t.Errorf("DownloadName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct{ stderr, want string }{
		{"in.mp4: Invalid data found when processing input", "input file is not a readable video"},
		{"Output file #0 does not contain any stream", "input file has no audio track"},
		{"Unknown encoder 'libmp3lame'", "audio encoder unavailable on this server"},
		{"av_interleaved_write_frame(): No space left on device", "server ran out of disk space"},
		{"/scratch/out.mp3: Permission denied", "server could not access the file"},
		{"something unexpected at /scratch/x", "conversion failed"},
		{"", "conversion failed"},
	}
	for _, tc := range tests {
		if got := Summarize(tc.stderr); got != tc.want {
			t.Errorf("Summarize(%q) = %q, want %q", tc.stderr, got, tc.want)
		}
	}
}

func TestTailBufferKeepsTail(t *testing.T) {
	buf := newTailBuffer(8)
	_, _ = buf.Write([]byte("0123456789"))
	_, _ = buf.Write([]byte("ab"))
	if got := buf.String(); got != "456789ab" {
		t.Fatalf("unexpected tail %q", got)
	}
	if got := lastLine("first\nsecond\n\n"); got != "second" {
		t.Fatalf("unexpected last line %q", got)
	}
}

func containsPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && (value == "" || args[i+1] == value) {
			return true
		}
	}
	return false
}
