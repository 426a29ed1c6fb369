package account_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/p-n-ai/teachmate/internal/account"
	"github.com/p-n-ai/teachmate/internal/platform/database/dbtest"
)

func TestPostgresStore_AccountLifecycle(t *testing.T) {
	db := dbtest.New(t)
	store, err := account.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.GetAccount(ctx, "missing"); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("GetAccount(missing) error = %v, want ErrNotFound", err)
	}

	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	rec := account.Record{
		User: account.User{
			ID: "t1", Name: "Ms. Ada", Email: "ada@school.test", Role: account.RoleTeacher,
			Classes: []account.Class{{ID: "c9a", Name: "9A", Strength: 32}},
		},
		SealedToken: []byte{1, 2, 3},
		ExpiresAt:   exp,
	}
	if err := store.SaveAccount(ctx, rec); err != nil {
		t.Fatalf("SaveAccount() error = %v", err)
	}

	got, err := store.GetAccount(ctx, "t1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if got.User.Name != "Ms. Ada" || len(got.User.Classes) != 1 || got.User.Classes[0].Strength != 32 {
		t.Errorf("GetAccount() user = %+v", got.User)
	}
	if !got.ExpiresAt.Equal(exp) || len(got.SealedToken) != 3 {
		t.Errorf("GetAccount() token/expiry = %v/%v", got.SealedToken, got.ExpiresAt)
	}

	if err := store.ClearToken(ctx, "t1"); err != nil {
		t.Fatalf("ClearToken() error = %v", err)
	}
	got, _ = store.GetAccount(ctx, "t1")
	if len(got.SealedToken) != 0 || !got.ExpiresAt.IsZero() {
		t.Errorf("after ClearToken token=%v expiry=%v", got.SealedToken, got.ExpiresAt)
	}
}

func TestPostgresStore_Preferences(t *testing.T) {
	db := dbtest.New(t)
	store, _ := account.NewPostgresStore(db.Pool)
	ctx := context.Background()

	if _, ok, err := store.GetPreference(ctx, "t1", "theme"); err != nil || ok {
		t.Fatalf("GetPreference() = ok %v err %v, want missing", ok, err)
	}
	for _, v := range []string{"light", "dark"} {
		if err := store.SetPreference(ctx, "t1", "theme", v); err != nil {
			t.Fatalf("SetPreference(%s) error = %v", v, err)
		}
	}
	v, ok, err := store.GetPreference(ctx, "t1", "theme")
	if err != nil || !ok || v != "dark" {
		t.Errorf("GetPreference() = %q %v %v, want dark", v, ok, err)
	}
}
