package pipeline

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/videorecap/api/internal/pipeline"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)

	stageOutcomes, _ = meter.Int64Counter("pipeline.stage.outcomes",
		metric.WithDescription("Stage runs by stage and outcome"))
	stageDuration, _ = meter.Float64Histogram("pipeline.stage.duration",
		metric.WithDescription("Stage run duration"),
		metric.WithUnit("s"))
)
