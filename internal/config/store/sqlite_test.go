package store

import (
	"testing"

	"github.com/indexbridge/z3950gateway/internal/config"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	dc := config.DatabaseConfig{Name: "books", ZURL: "http://sru.example.org/books"}
	if err := s.Put(dc); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := s.Get("books")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected database to be found")
	}
	if got.ZURL != dc.ZURL {
		t.Errorf("got zurl %q, want %q", got.ZURL, dc.ZURL)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(list))
	}

	if err := s.Delete("books"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, ok, err = s.Get("books")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if ok {
		t.Error("expected database to be gone after delete")
	}
}

func TestSQLiteStoreAuthenticateSeededAdmin(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	role, ok, err := s.Authenticate("admin", "admin")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !ok || role != "admin" {
		t.Fatalf("expected seeded admin login to succeed with role admin, got role=%q ok=%v", role, ok)
	}

	if _, ok, err := s.Authenticate("admin", "wrong"); err != nil || ok {
		t.Errorf("expected wrong password to be rejected, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := s.Authenticate("nobody", "admin"); err != nil || ok {
		t.Errorf("expected unknown user to be rejected, got ok=%v err=%v", ok, err)
	}
}
