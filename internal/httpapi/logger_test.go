package httpapi

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		" DEBUG ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"verbose": zerolog.InfoLevel,
		"error":   zerolog.ErrorLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerTagsService(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	for _, tc := range []struct{ service, want string }{
		{"indicadores-santa-fe", "indicadores-santa-fe"},
		{"  ", defaultService},
	} {
		var buf bytes.Buffer
		log := newLogger(&buf, tc.service, "info")
		log.Info().Msg("refreshed")

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("decode log line %q: %v", buf.String(), err)
		}
		if line["service"] != tc.want {
			t.Fatalf("service = %v, want %q", line["service"], tc.want)
		}
	}
}
