package qr

import (
	"bytes"
	"testing"
)

const testURL = "https://portal.example/Registration/PrintRegistrationFormVehicleCheckValidOrNot.aspx?eId=1001"

func TestEncodeProducesPNG(t *testing.T) {
	payload, err := Encode(testURL)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if payload.URL != testURL {
		t.Errorf("payload URL = %q", payload.URL)
	}
	if !bytes.HasPrefix(payload.PNG, []byte("\x89PNG")) {
		t.Error("expected PNG magic bytes")
	}
}

func TestEncodeDeterministic(t *testing.T) {
	first, err := Encode(testURL)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	second, err := Encode(testURL)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(first.PNG, second.PNG) {
		t.Error("same URL should encode to identical bytes")
	}
}

func TestEncodeRejectsInvalidURL(t *testing.T) {
	for _, input := range []string{"", "   ", "not-a-url", "/relative/path"} {
		if _, err := Encode(input); err == nil {
			t.Errorf("Encode(%q) should fail", input)
		}
	}
}
