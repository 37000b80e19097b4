package wire

import (
	"net/http"
	"testing"
)

func TestAcceptKeyRFC6455Vector(t *testing.T) {
	got := AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("AcceptKey() = %q, want %q", got, want)
	}
}

func TestValidateUpgradeRejectsMissingKey(t *testing.T) {
	hdr := make(http.Header)
	hdr.Set("Connection", "Upgrade")
	hdr.Set("Upgrade", "websocket")
	hdr.Set("Sec-WebSocket-Version", "13")
	if _, err := ValidateUpgrade(hdr); err != ErrMissingWSKey {
		t.Fatalf("expected ErrMissingWSKey, got %v", err)
	}
}
