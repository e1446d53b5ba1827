package sse

import (
	"encoding/base64"

	"github.com/videorecap/api/internal/pipeline"
)

// Payload is the JSON shape of one event on the wire. The complete event
// keeps the artifact under "pdf" for existing clients, whatever the format.
type Payload struct {
	Status      string `json:"status"`
	Stage       string `json:"stage,omitempty"`
	Message     string `json:"message"`
	ErrorType   string `json:"error_type,omitempty"`
	ErrorModule string `json:"error_module,omitempty"`
	ErrorReason string `json:"error_reason,omitempty"`
	PDF         string `json:"pdf,omitempty"`
	Filename    string `json:"filename,omitempty"`
	MediaType   string `json:"media_type,omitempty"`
}

// NewPayload converts a pipeline event to its wire shape
func NewPayload(ev pipeline.Event) Payload {
	p := Payload{
		Status:  string(ev.Status),
		Message: ev.Message,
	}

	switch ev.Status {
	case pipeline.StatusProgress:
		p.Stage = string(ev.Stage)
	case pipeline.StatusError:
		if ev.Err != nil {
			p.ErrorType = string(ev.Err.Kind)
			p.ErrorModule = string(ev.Err.Stage)
			p.ErrorReason = ev.Err.Reason
			if p.Message == "" {
				p.Message = ev.Err.Message
			}
		}
	case pipeline.StatusComplete:
		if ev.Artifact != nil {
			p.PDF = base64.StdEncoding.EncodeToString(ev.Artifact.Bytes)
			p.Filename = ev.Artifact.Filename
			p.MediaType = ev.Artifact.MediaType
		}
	}
	return p
}

// WithoutArtifact returns a copy safe to store or log
func (p Payload) WithoutArtifact() Payload {
	p.PDF = ""
	return p
}
