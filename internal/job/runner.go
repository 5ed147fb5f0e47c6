package job

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"mediafetch/internal/ytdlp"
)

// waitDelay bounds how long Wait lingers on unread pipes after the process is
// killed on context cancellation.
const waitDelay = 10 * time.Second

// Runner executes one external-tool invocation per submission. Jobs are fully
// isolated from each other; the semaphore is the only shared resource and
// caps the number of simultaneously running external processes.
type Runner struct {
	dataDir   string
	tool      ytdlp.Tool
	semaphore chan struct{}
	timeout   time.Duration
}

// NewRunner creates a Runner with the provided configuration.
func NewRunner(opts Options) *Runner {
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = defaultMaxConcurrent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Runner{
		dataDir:   opts.DataDir,
		tool:      ytdlp.New(opts.Binary),
		semaphore: make(chan struct{}, opts.MaxConcurrentJobs),
		timeout:   opts.Timeout,
	}
}

// Tool exposes the underlying binary handle for availability probes.
func (r *Runner) Tool() ytdlp.Tool { return r.tool }

// newJobID generates the caller-facing job handle, also used as the on-disk
// file-name prefix. Millisecond timestamp plus a random suffix keeps ids
// unique across concurrent submissions.
func newJobID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// outputTemplate builds the yt-dlp output template for a job. The extension
// is negotiated by the tool and resolved after exit.
func (r *Runner) outputTemplate(id string) string {
	return filepath.Join(r.dataDir, id+".%(ext)s")
}

// acquire takes a concurrency slot, giving up when the caller goes away.
func (r *Runner) acquire(ctx context.Context) error {
	select {
	case r.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck
	}
}

func (r *Runner) release() { <-r.semaphore }

// Download runs a synchronous download job to completion and classifies the
// outcome. Exactly one of (*Result, error) is non-nil.
func (r *Runner) Download(ctx context.Context, kind Kind, req Request) (*Result, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, ErrMissingURL
	}
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	id := newJobID()
	var args []string
	switch kind {
	case KindAudio:
		args = ytdlp.AudioArgs(req.URL, req.AudioFormat, r.outputTemplate(id))
	default:
		args = ytdlp.VideoArgs(req.URL, req.MaxHeight, r.outputTemplate(id))
	}

	log.Info().Str("job_id", id).Str("kind", string(kind)).Str("url", req.URL).Msg("job started")

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.tool.Binary(), args...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		log.Warn().Str("job_id", id).Err(err).Msg("spawn failed")
		return nil, fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}
	if err := cmd.Wait(); err != nil {
		diag := exitDiagnostic(ctx, stderr.String(), err)
		log.Warn().Str("job_id", id).Str("diagnostic", diag).Msg("job failed")
		return nil, fmt.Errorf("%w: %s", ErrToolFailed, diag)
	}

	filename, ok := r.resolveOutput(id)
	if !ok {
		log.Warn().Str("job_id", id).Msg("output file missing after successful exit")
		return nil, ErrOutputMissing
	}
	log.Info().Str("job_id", id).Str("filename", filename).Msg("job succeeded")
	return &Result{ID: id, Filename: filename}, nil
}

// Info runs the metadata-only variant: the tool's entire stdout is captured
// as one structured payload and projected onto a fixed field subset.
func (r *Runner) Info(ctx context.Context, url string) (*ytdlp.Info, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrMissingURL
	}
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.tool.Binary(), ytdlp.InfoArgs(url)...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolFailed, exitDiagnostic(ctx, stderr.String(), err))
	}
	return ytdlp.ParseInfo(stdout.Bytes()) //nolint:wrapcheck
}

// resolveOutput finds the file the tool actually produced for a job. The
// extension is only known after format negotiation, so the match is by id
// prefix; in-flight partials are ignored.
func (r *Runner) resolveOutput(id string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(r.dataDir, id+".*"))
	if err != nil {
		return "", false
	}
	for _, match := range matches {
		if strings.HasSuffix(match, ".part") || strings.HasSuffix(match, ".ytdl") {
			continue
		}
		return filepath.Base(match), true
	}
	return "", false
}

// exitDiagnostic turns a non-zero exit into caller-facing text: the captured
// stderr when present, otherwise a generic exit-code message. A deadline hit
// is called out explicitly.
func exitDiagnostic(ctx context.Context, stderr string, err error) string {
	if ctx.Err() == context.DeadlineExceeded {
		return "timed out"
	}
	if diag := strings.TrimSpace(stderr); diag != "" {
		return diag
	}
	return err.Error()
}
