package telemetry

import (
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String("method", method)
}

func pathAttr(path string) attribute.KeyValue {
	return attribute.String("path", path)
}

func statusAttr(status int) attribute.KeyValue {
	return attribute.String("status", strconv.Itoa(status))
}

func resultAttr(result string) attribute.KeyValue {
	return attribute.String("result", result)
}

func layerAttr(layer string) attribute.KeyValue {
	return attribute.String("layer", layer)
}

func backendAttr(backend string) attribute.KeyValue {
	return attribute.String("backend", backend)
}

func resourceAttr(resource string) attribute.KeyValue {
	return attribute.String("resource", resource)
}

func actionAttr(action string) attribute.KeyValue {
	return attribute.String("action", action)
}

func kindAttr(kind string) attribute.KeyValue {
	return attribute.String("kind", kind)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String("outcome", outcome)
}
