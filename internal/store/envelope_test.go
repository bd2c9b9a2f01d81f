package store

import (
	"reflect"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	raw, err := Encode(map[string]string{"goal": "Muscle Gain"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	env := Decode(raw)
	if env.Version != CurrentVersion {
		t.Fatalf("expected version %d, got %d", CurrentVersion, env.Version)
	}
	var got map[string]string
	if err := env.Unmarshal(&got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(got, map[string]string{"goal": "Muscle Gain"}) {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestDecodeLegacyValues(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		into func() any
		want any
	}{
		{"legacy json map", `{"goal":"Weight Loss"}`, func() any { return &map[string]string{} }, &map[string]string{"goal": "Weight Loss"}},
		{"legacy integer", `5`, func() any { var n int; return &n }, ptr(5)},
		{"legacy bare string", `k3j2h1x9`, func() any { var s string; return &s }, ptr("k3j2h1x9")},
		{"legacy date string", `Sat Oct 18 2026`, func() any { var s string; return &s }, ptr("Sat Oct 18 2026")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := Decode(tt.raw)
			if env.Version != LegacyVersion {
				t.Fatalf("expected legacy version, got %d", env.Version)
			}
			dst := tt.into()
			if err := env.Unmarshal(dst); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if !reflect.DeepEqual(dst, tt.want) {
				t.Errorf("got %v, want %v", dst, tt.want)
			}
		})
	}
}

func TestDecodeCorruptValueFailsToUnmarshal(t *testing.T) {
	env := Decode(`{"goal":"Mus`)
	var m map[string]string
	if err := env.Unmarshal(&m); err == nil {
		t.Error("expected corrupt value to fail decoding into a map")
	}
}

func TestDecodeObjectWithVersionZeroIsLegacy(t *testing.T) {
	env := Decode(`{"version":0,"payload":1}`)
	if env.Version != LegacyVersion {
		t.Errorf("expected legacy version, got %d", env.Version)
	}
}

func ptr[T any](v T) *T { return &v }
