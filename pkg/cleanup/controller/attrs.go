package controller

import (
	"go.opentelemetry.io/otel/attribute"

	"mercator-hq/janitor/pkg/telemetry/tracing"
)

func attrRunID(id string) attribute.KeyValue {
	return attribute.String(tracing.AttrRunID, id)
}

func attrEstimate(n int64) attribute.KeyValue {
	return attribute.Int64(tracing.AttrEstimate, n)
}
