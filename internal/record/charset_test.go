package record

import (
	"bytes"
	"io"
	"testing"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

func TestDecodeTextUTF8Passthrough(t *testing.T) {
	utf8Str := "Hello, 世界"
	if got := DecodeText([]byte(utf8Str), ""); got != utf8Str {
		t.Errorf("got %q, want %q", got, utf8Str)
	}
}

func TestDecodeTextEmptyAndASCII(t *testing.T) {
	if got := DecodeText([]byte(""), ""); got != "" {
		t.Errorf("empty decode failed, got %q", got)
	}
	if got := DecodeText([]byte("abc"), ""); got != "abc" {
		t.Errorf("ascii decode failed, got %q", got)
	}
}

func TestDecodeTextGBKWithoutHintFallsBackToSweep(t *testing.T) {
	want := "这是一个测试句子，用于验证GBK编码的自动识别功能。"
	raw := encodeGBK(t, want)
	if got := DecodeText(raw, ""); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecodeTextGBKHintSkipsSweep(t *testing.T) {
	want := "这是一个测试句子，用于验证GBK编码的自动识别功能。"
	raw := encodeGBK(t, want)
	if got := DecodeText(raw, "GBK"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecodeTextShiftJISHintPreferredOverCJKSweepOrder(t *testing.T) {
	// Without a hint, GBK is tried before Shift-JIS; a Japanese string
	// that also happens to decode cleanly under GBK would otherwise be
	// misread. The hint should short-circuit straight to Shift-JIS.
	want := "これはテストです"
	reader := transform.NewReader(bytes.NewReader([]byte(want)), japanese.ShiftJIS.NewEncoder())
	raw, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("encoding fixture failed: %v", err)
	}
	if got := DecodeText(raw, "shift_jis"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCandidateEncodingsUnknownHintReturnsSweepUnmodified(t *testing.T) {
	got := candidateEncodings("does-not-exist")
	if len(got) != len(cjkSweep) {
		t.Fatalf("expected unrecognized hint to fall back to the full sweep, got %d candidates", len(got))
	}
}

func TestCandidateEncodingsRecognizedHintLeadsAndIsNotDuplicated(t *testing.T) {
	got := candidateEncodings("big5")
	if len(got) != len(cjkSweep) {
		t.Fatalf("expected hinted candidate to replace, not add to, the sweep; got %d", len(got))
	}
	if got[0] != encodingsByHint["big5"] {
		t.Errorf("expected hinted encoding first")
	}
}

func encodeGBK(t *testing.T, s string) []byte {
	t.Helper()
	reader := transform.NewReader(bytes.NewReader([]byte(s)), simplifiedchinese.GBK.NewEncoder())
	out, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("encoding fixture failed: %v", err)
	}
	return out
}
