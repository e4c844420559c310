package http

import (
	"net/http/httptest"
	apperrors "roomly/pkg/errors"
	"testing"
)

func TestExtractPage(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantSize   int
		wantNumber int
		wantErr    bool
	}{
		{"defaults", "", 10, 0, false},
		{"explicit", "?page_size=5&page_number=3", 5, 3, false},
		{"zero size falls back to default", "?page_size=0", 10, 0, false},
		{"clamped to max", "?page_size=1000", 100, 0, false},
		{"non numeric size", "?page_size=abc", 0, 0, true},
		{"negative number", "?page_number=-1", 0, 0, true},
		{"offset overflows", "?page_size=3&page_number=4611686018427387904", 0, 0, true},
		{"largest representable offset", "?page_size=1&page_number=9223372036854775807", 1, 9223372036854775807, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/reservation"+tt.query, nil)
			size, number, err := ExtractPage(req, 10, 100)
			if tt.wantErr {
				if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
					t.Fatalf("expected INVALID_INPUT, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if size != tt.wantSize || number != tt.wantNumber {
				t.Errorf("got (%d, %d), want (%d, %d)", size, number, tt.wantSize, tt.wantNumber)
			}
		})
	}
}

func TestOptionalInt64(t *testing.T) {
	req := httptest.NewRequest("GET", "/reservation?room_id=12", nil)
	v, err := OptionalInt64(req, "room_id")
	if err != nil || v == nil || *v != 12 {
		t.Fatalf("expected 12, got %v (err %v)", v, err)
	}

	v, err = OptionalInt64(req, "user_id")
	if err != nil || v != nil {
		t.Fatalf("expected nil for missing parameter, got %v (err %v)", v, err)
	}

	bad := httptest.NewRequest("GET", "/reservation?room_id=x", nil)
	if _, err := OptionalInt64(bad, "room_id"); err == nil {
		t.Fatal("expected error for non numeric room_id")
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID("17"); err != nil || id != 17 {
		t.Fatalf("expected 17, got %d (err %v)", id, err)
	}
	for _, raw := range []string{"", "0", "-3", "abc"} {
		if _, err := ParseID(raw); err == nil {
			t.Errorf("ParseID(%q) should fail", raw)
		}
	}
}
