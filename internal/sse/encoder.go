package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/videorecap/api/internal/pipeline"
)

// ErrEncode marks an event that could not be serialized
var ErrEncode = errors.New("sse: encode event")

// Encoder frames events as server-sent events on a buffered writer.
// Every frame is flushed so the consumer sees it immediately.
type Encoder struct {
	w       *bufio.Writer
	marshal func(any) ([]byte, error)
}

// NewEncoder creates an encoder writing to w
func NewEncoder(w *bufio.Writer) *Encoder {
	return &Encoder{w: w, marshal: json.Marshal}
}

// Encode writes ev as "id: <seq>\ndata: <json>\n\n" and flushes.
// When ev cannot be serialized a best-effort error event is written in
// its place and an error wrapping ErrEncode is returned.
func (e *Encoder) Encode(ev pipeline.Event) error {
	data, err := e.marshal(NewPayload(ev))
	if err != nil {
		encErr := fmt.Errorf("%w: %v", ErrEncode, err)
		if fallback, ferr := json.Marshal(encodeFailure(ev)); ferr == nil {
			if werr := e.frame(ev.Seq, fallback); werr != nil {
				return errors.Join(encErr, werr)
			}
		}
		return encErr
	}
	return e.frame(ev.Seq, data)
}

// Heartbeat writes a comment line that clients ignore. A failure means the
// consumer is gone.
func (e *Encoder) Heartbeat() error {
	if _, err := e.w.WriteString(": keep-alive\n\n"); err != nil {
		return err
	}
	return e.w.Flush()
}

func (e *Encoder) frame(seq int64, data []byte) error {
	if seq > 0 {
		if _, err := fmt.Fprintf(e.w, "id: %d\n", seq); err != nil {
			return err
		}
	}
	if _, err := e.w.WriteString("data: "); err != nil {
		return err
	}
	if _, err := e.w.Write(data); err != nil {
		return err
	}
	if _, err := e.w.WriteString("\n\n"); err != nil {
		return err
	}
	return e.w.Flush()
}

func encodeFailure(ev pipeline.Event) Payload {
	stage := ev.Stage
	if stage == "" {
		stage = pipeline.StageRendering
	}
	return Payload{
		Status:      string(pipeline.StatusError),
		Message:     "failed to encode event",
		ErrorType:   string(pipeline.KindRender),
		ErrorModule: string(stage),
		ErrorReason: "encoding",
	}
}

// Stream relays events to the encoder until the run ends. While a stage is
// running a heartbeat is written every interval. On any write failure
// cancel is called so the run is abandoned, and the error is returned.
func Stream(events <-chan pipeline.Event, enc *Encoder, interval time.Duration, cancel context.CancelFunc, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := enc.Encode(ev); err != nil {
				cancel()
				if errors.Is(err, ErrEncode) {
					logger.Error("event encoding failed", "seq", ev.Seq, "error", err)
				} else {
					logger.Info("consumer disconnected", "seq", ev.Seq, "error", err)
				}
				return err
			}
			if ev.Terminal() {
				return nil
			}
		case <-tick:
			if err := enc.Heartbeat(); err != nil {
				cancel()
				logger.Info("consumer disconnected during stage", "error", err)
				return err
			}
		}
	}
}
