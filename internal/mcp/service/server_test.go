// Package service tests the MCP server wiring.
package service

import (
	"context"
	"testing"
)

func TestParseTransportKind(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    TransportKind
		wantErr bool
	}{
		{name: "empty defaults to stdio", value: "", want: TransportStdio},
		{name: "stdio", value: "stdio", want: TransportStdio},
		{name: "http", value: "http", want: TransportHTTP},
		{name: "unknown", value: "carrier-pigeon", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTransportKind(tc.value)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tc.value, err)
			}
			if got != tc.want {
				t.Fatalf("parse %q = %q, want %q", tc.value, got, tc.want)
			}
		})
	}
}

func TestServeRequiresConfiguredServer(t *testing.T) {
	if err := serve(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil server")
	}
}

func TestRunRejectsUnknownTransport(t *testing.T) {
	err := Run(context.Background(), nil, Config{Transport: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected error for unknown transport")
	}
}
