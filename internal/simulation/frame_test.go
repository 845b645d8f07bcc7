package simulation

import (
	"encoding/base64"
	"testing"
)

func TestDecodeFrame(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	enc := base64.StdEncoding.EncodeToString(png)

	for _, in := range []string{enc, " " + enc + "\n", FrameDataURL(enc)} {
		got, err := DecodeFrame(in)
		if err != nil {
			t.Fatalf("DecodeFrame(%q) error = %v", in, err)
		}
		if string(got) != string(png) {
			t.Fatalf("DecodeFrame(%q) = %v, want %v", in, got, png)
		}
	}

	if _, err := DecodeFrame(""); err == nil {
		t.Fatalf("expected error for empty frame")
	}
	if _, err := DecodeFrame("data:image/png;base64"); err == nil {
		t.Fatalf("expected error for data url without payload")
	}
	if _, err := DecodeFrame("%%%"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
}

func TestStatusNames(t *testing.T) {
	if StatusStreaming.String() != "streaming" {
		t.Fatalf("unexpected name %q", StatusStreaming.String())
	}
	if !StatusFailed.Terminal() || !StatusCompleted.Terminal() || StatusStreaming.Terminal() {
		t.Fatalf("terminal classification is wrong")
	}
	if Status(42).String() != "status(42)" {
		t.Fatalf("unexpected name for unknown status: %q", Status(42).String())
	}
}
