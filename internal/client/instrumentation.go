package client

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/videorecap/api/internal/client")
