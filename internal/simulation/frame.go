package simulation

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const pngDataURLPrefix = "data:image/png;base64,"

// DecodeFrame turns a streamed frame into PNG bytes. Frames are raw base64;
// a data URL prefix is tolerated.
func DecodeFrame(frame string) ([]byte, error) {
	s := strings.TrimSpace(frame)
	if strings.HasPrefix(s, "data:") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return nil, fmt.Errorf("malformed frame data url")
		}
		s = s[i+1:]
	}
	if s == "" {
		return nil, fmt.Errorf("empty frame")
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
	}
	return raw, nil
}

// FrameDataURL renders a frame as an <img> source.
func FrameDataURL(frame string) string {
	if strings.HasPrefix(frame, "data:") {
		return frame
	}
	return pngDataURLPrefix + frame
}
