package domain

import "testing"

func TestProfileChanges_Apply(t *testing.T) {
	email := "  New@Example.COM "
	last := " Doe "
	u := User{ID: "u1", Email: "old@example.com", FirstName: "Ann", LastName: "Smith", PhoneNo: "123"}

	changes := ProfileChanges{Email: &email, LastName: &last}
	if changes.Empty() {
		t.Fatal("changes should not be empty")
	}

	got := changes.Apply(u)
	if got.Email != "new@example.com" {
		t.Errorf("expected normalized email, got %q", got.Email)
	}
	if got.LastName != "Doe" || got.FirstName != "Ann" || got.PhoneNo != "123" {
		t.Errorf("unexpected profile %+v", got.Profile())
	}
	if u.Email != "old@example.com" {
		t.Error("Apply must not mutate its input")
	}
	if !(ProfileChanges{}).Empty() {
		t.Error("zero changes should be empty")
	}
}
