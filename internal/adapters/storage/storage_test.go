package storage

import (
	"errors"
	"testing"
)

func TestValidateContentType(t *testing.T) {
	s := &MinIOService{maxFileSize: 1024}

	for _, ct := range []string{"image/jpeg", "IMAGE/PNG", "image/webp; charset=binary"} {
		if err := s.ValidateContentType(ct); err != nil {
			t.Errorf("%q: unexpected error %v", ct, err)
		}
	}
	for _, ct := range []string{"application/pdf", "text/html", ""} {
		if err := s.ValidateContentType(ct); err == nil {
			t.Errorf("%q: expected error", ct)
		}
	}
}

func TestValidateFileSize(t *testing.T) {
	s := &MinIOService{maxFileSize: 1024}

	if err := s.ValidateFileSize(1024); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.ValidateFileSize(0); err == nil {
		t.Fatal("expected error for empty file")
	}
	err := s.ValidateFileSize(1025)
	if !errors.Is(err, ErrInvalidUpload) {
		t.Fatalf("expected ErrInvalidUpload for oversized file, got %v", err)
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"front.JPG", "leads/7/front_abcd1234.jpg"},
		{"../../etc/passwd.png", "leads/7/passwd_abcd1234.png"},
		{`C:\photos\garden.webp`, "leads/7/garden_abcd1234.webp"},
		{"", "leads/7/image_abcd1234"},
	}

	for _, tc := range tests {
		if got := ObjectKey(7, tc.name, "abcd1234"); got != tc.want {
			t.Errorf("ObjectKey(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestOwnsKey(t *testing.T) {
	if !OwnsKey(7, "leads/7/front_abcd1234.jpg") {
		t.Fatal("expected own key to be accepted")
	}
	for _, key := range []string{"leads/8/front.jpg", "leads/7/", "leads/7/../8/x.jpg", "other/7/x.jpg", "leads/70/x.jpg"} {
		if OwnsKey(7, key) {
			t.Errorf("%q: expected key to be refused", key)
		}
	}
}
