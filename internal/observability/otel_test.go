package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHeaders(t *testing.T) {
	assert.Nil(t, parseHeaders(""))
	assert.Nil(t, parseHeaders("novalue,=x, y="))
	assert.Equal(t,
		map[string]string{"Authorization": "Bearer abc", "x-tenant": "aw"},
		parseHeaders(" Authorization = Bearer abc ,x-tenant=aw,broken"),
	)
}

func TestOtelConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_SAMPLER_RATIO", "3")
	cfg := OtelConfigFromEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector:4318", cfg.Endpoint)
	assert.Equal(t, 1.0, cfg.SampleRatio)

	t.Setenv("OTEL_SAMPLER_RATIO", "-1")
	assert.Equal(t, 0.0, OtelConfigFromEnv().SampleRatio)
}
