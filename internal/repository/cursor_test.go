package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	orig := Cursor{
		CreatedAt: time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC),
		ID:        uuid.New(),
	}
	decoded, err := DecodeCursor(orig.Encode())
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if !decoded.CreatedAt.Equal(orig.CreatedAt) {
		t.Fatalf("CreatedAt = %v, want %v", decoded.CreatedAt, orig.CreatedAt)
	}
	if decoded.ID != orig.ID {
		t.Fatalf("ID = %s, want %s", decoded.ID, orig.ID)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{
		"",
		"not base64 !!!",
		"bm9jb2xvbg",          // no separator
		"MTIzOm5vdC1hLXV1aWQ", // "123:not-a-uuid"
	} {
		if _, err := DecodeCursor(token); err == nil {
			t.Errorf("DecodeCursor(%q) accepted garbage", token)
		}
	}
}
