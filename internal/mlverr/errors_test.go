package mlverr

import (
	"errors"
	"testing"
)

func TestMalformedWrapsSentinel(t *testing.T) {
	err := Malformed("A.MLV", 3, "missing RAWI")
	if !errors.Is(err, ErrMalformed) {
		t.Fatal("Malformed result should satisfy errors.Is(ErrMalformed)")
	}
	want := "mlvfs: malformed recording: A.MLV: missing RAWI"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestTransientWrapsSentinelAndUnderlyingErr(t *testing.T) {
	underlying := errors.New("disk yanked")
	err := Transient("A.MLV", 1, underlying)
	if !errors.Is(err, ErrTransientIO) {
		t.Fatal("Transient result should satisfy errors.Is(ErrTransientIO)")
	}
	if errors.Is(err, ErrMalformed) {
		t.Fatal("Transient result should not satisfy errors.Is(ErrMalformed)")
	}
}

func TestMalformedWithoutReason(t *testing.T) {
	err := Malformed("A.MLV", 0, "")
	want := "mlvfs: malformed recording: A.MLV"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}
