package job

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"mediafetch/internal/ytdlp"
)

// EventType tags a relayed event.
type EventType string

const (
	// EventProgress carries a raw line from the tool's progress channel (stdout).
	EventProgress EventType = "progress"
	// EventLog carries a raw line from the tool's diagnostic channel (stderr).
	EventLog EventType = "log"
	// EventComplete is terminal and carries the resolved output filename.
	EventComplete EventType = "complete"
	// EventError is terminal and carries a diagnostic message.
	EventError EventType = "error"
)

// Event is one element of the relayed sequence.
type Event struct {
	Type EventType
	Data string
}

// stderrTailLines bounds the diagnostic kept for the terminal error event.
const stderrTailLines = 20

// Stream launches a streaming download job and relays its output as events.
// The returned channel yields progress and log lines in the order each pipe
// produced them, then exactly one terminal event (complete or error), and is
// closed. The HTTP layer ties ctx to the client connection: cancelling it
// kills the external process.
func (r *Runner) Stream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		r.stream(ctx, req, events)
	}()
	return events
}

func (r *Runner) stream(parent context.Context, req Request, events chan<- Event) {
	// emit drops events once the caller is gone; a job timeout does not stop
	// delivery of its terminal error event.
	emit := func(ev Event) {
		select {
		case events <- ev:
		case <-parent.Done():
		}
	}

	if strings.TrimSpace(req.URL) == "" {
		emit(Event{Type: EventError, Data: ErrMissingURL.Error()})
		return
	}
	if err := r.acquire(parent); err != nil {
		emit(Event{Type: EventError, Data: "canceled before start"})
		return
	}
	defer r.release()

	id := newJobID()
	args := ytdlp.StreamArgs(req.URL, req.MaxHeight, r.outputTemplate(id))

	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.tool.Binary(), args...)
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		emit(Event{Type: EventError, Data: fmt.Sprintf("%v: %v", ErrToolUnavailable, err)})
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		emit(Event{Type: EventError, Data: fmt.Sprintf("%v: %v", ErrToolUnavailable, err)})
		return
	}

	if err := cmd.Start(); err != nil {
		log.Warn().Str("job_id", id).Err(err).Msg("spawn failed")
		emit(Event{Type: EventError, Data: fmt.Sprintf("%v: %v", ErrToolUnavailable, err)})
		return
	}
	log.Info().Str("job_id", id).Str("url", req.URL).Msg("streaming job started")

	// Both pipes are drained concurrently so a full pipe can never stall the
	// process. Each drain goroutine owns its accumulator until wg.Wait.
	var wg sync.WaitGroup
	var stderrTail []string
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			emit(Event{Type: EventProgress, Data: scanner.Text()})
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			stderrTail = append(stderrTail, line)
			if len(stderrTail) > stderrTailLines {
				stderrTail = stderrTail[1:]
			}
			emit(Event{Type: EventLog, Data: line})
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		diag := exitDiagnostic(ctx, strings.Join(stderrTail, "\n"), err)
		log.Warn().Str("job_id", id).Str("diagnostic", diag).Msg("streaming job failed")
		emit(Event{Type: EventError, Data: diag})
		return
	}

	filename, ok := r.resolveOutput(id)
	if !ok {
		log.Warn().Str("job_id", id).Msg("output file missing after successful exit")
		emit(Event{Type: EventError, Data: ErrOutputMissing.Error()})
		return
	}
	log.Info().Str("job_id", id).Str("filename", filename).Msg("streaming job succeeded")
	emit(Event{Type: EventComplete, Data: filename})
}
