package diag

import "testing"

func TestTranslatePassesBib1Through(t *testing.T) {
	err := New(UnsupportedUseAttribute, "no such index")
	got := Translate(err)
	if got.Code != UnsupportedUseAttribute {
		t.Errorf("expected code %d, got %d", UnsupportedUseAttribute, got.Code)
	}
}

func TestTranslateSRWKnownCode(t *testing.T) {
	err := FromSRW(64, "no such database")
	got := Translate(err)
	if got.Code != DatabaseDoesNotExist {
		t.Errorf("expected %d, got %d", DatabaseDoesNotExist, got.Code)
	}
	if got.Set != SetBib1 {
		t.Errorf("expected SetBib1 after translation, got %v", got.Set)
	}
}

func TestTranslateSRWUnknownCodeFallsBack(t *testing.T) {
	err := FromSRW(999, "mystery diagnostic")
	got := Translate(err)
	if got.Code != UnsupportedSearch {
		t.Errorf("expected fallback %d, got %d", UnsupportedSearch, got.Code)
	}
}

func TestTranslateZOOMConnectMapsTo109(t *testing.T) {
	err := FromZOOMConnect("dial tcp: connection refused")
	got := Translate(err)
	if got.Code != CannotConnect {
		t.Errorf("expected %d, got %d", CannotConnect, got.Code)
	}
}

func TestTranslateZOOMOtherMapsTo100(t *testing.T) {
	err := FromZOOM("provider exploded")
	got := Translate(err)
	if got.Code != UnsupportedSearch {
		t.Errorf("expected %d, got %d", UnsupportedSearch, got.Code)
	}
	if got.AddInfo != "provider exploded" {
		t.Errorf("expected message to survive translation, got %q", got.AddInfo)
	}
}
