// Package ytdlp wraps invocation of the external yt-dlp binary. The binary is
// an opaque collaborator: this package only builds argument vectors for it and
// interprets its structured metadata output. Arguments are always passed as a
// literal vector, never through a shell.
package ytdlp

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionProbeTimeout = 10 * time.Second

// Tool locates the external extraction binary.
type Tool struct {
	binary string
}

// New returns a Tool for the given binary path. An empty path falls back to
// "yt-dlp" resolved via PATH.
func New(binary string) Tool {
	if binary == "" {
		binary = "yt-dlp"
	}
	return Tool{binary: binary}
}

// Binary returns the configured binary path.
func (t Tool) Binary() string { return t.binary }

// Version runs the binary with --version and returns the reported version
// string. A failure here means the tool is unavailable.
func (t Tool) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.binary, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp unavailable: %w", err)
	}
	return strings.TrimSpace(out.String()), nil
}

// InfoArgs builds the argument vector for a single-shot metadata query.
func InfoArgs(url string) []string {
	return []string{
		"--dump-json",
		"--no-playlist",
		"--no-warnings",
		url,
	}
}

// VideoArgs builds the argument vector for a video download. maxHeight caps
// the selected stream height; zero means best available. outTemplate is the
// yt-dlp output template (job-id based, with %(ext)s left to the tool).
// --no-playlist is always requested so a playlist-capable URL downloads only
// the single referenced item.
func VideoArgs(url string, maxHeight int, outTemplate string) []string {
	return append(videoFlags(maxHeight, outTemplate), url)
}

func videoFlags(maxHeight int, outTemplate string) []string {
	format := "bestvideo+bestaudio/best"
	if maxHeight > 0 {
		format = fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", maxHeight, maxHeight)
	}
	return []string{
		"-f", format,
		"--merge-output-format", "mp4",
		"--no-playlist",
		"-o", outTemplate,
	}
}

// AudioArgs builds the argument vector for an audio extraction download.
// audioFormat is the target container (mp3 when empty).
func AudioArgs(url, audioFormat, outTemplate string) []string {
	if audioFormat == "" {
		audioFormat = "mp3"
	}
	return []string{
		"-x",
		"--audio-format", audioFormat,
		"--audio-quality", "0",
		"--no-playlist",
		"-o", outTemplate,
		url,
	}
}

// StreamArgs extends VideoArgs with flags requesting line-buffered,
// newline-delimited progress output suitable for relaying to a caller.
func StreamArgs(url string, maxHeight int, outTemplate string) []string {
	args := append(videoFlags(maxHeight, outTemplate),
		"--newline",
		"--progress",
		"--no-colors",
	)
	return append(args, url)
}
