package ytdlp

import (
	"encoding/json"
	"fmt"
)

// Info is the projected subset of the metadata payload emitted by the tool's
// --dump-json mode.
type Info struct {
	Title      string   `json:"title"`
	Duration   float64  `json:"duration"`
	Thumbnail  string   `json:"thumbnail"`
	Uploader   string   `json:"uploader"`
	UploadDate string   `json:"upload_date"`
	ViewCount  int64    `json:"view_count"`
	Formats    []Format `json:"formats"`
}

// Format describes one available stream variant.
type Format struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	Resolution string  `json:"resolution"`
	Filesize   int64   `json:"filesize,omitempty"`
	FormatNote string  `json:"format_note,omitempty"`
	FPS        float64 `json:"fps,omitempty"`
}

// ParseInfo decodes a --dump-json payload and projects it onto Info. Formats
// without a format id are dropped. A decode failure is reported distinctly so
// callers can tell a malformed payload from a process failure.
func ParseInfo(payload []byte) (*Info, error) {
	var info Info
	if err := json.Unmarshal(payload, &info); err != nil {
		return nil, fmt.Errorf("parse metadata payload: %w", err)
	}
	filtered := make([]Format, 0, len(info.Formats))
	for _, f := range info.Formats {
		if f.FormatID == "" {
			continue
		}
		filtered = append(filtered, f)
	}
	info.Formats = filtered
	return &info, nil
}
