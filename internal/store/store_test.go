package store

import (
	"errors"
	"testing"
	"time"

	"github.com/pybroo/pybroo/internal/models"
	"github.com/pybroo/pybroo/pkg/testutil"
)

func TestStore_LoadAbsentKey(t *testing.T) {
	db, cleanup := testutil.SetupTest(t)
	defer cleanup()

	st := New(db)
	var u models.User
	found, err := st.Load(KeyUser, &u)
	if err != nil {
		t.Fatalf("load absent key: %v", err)
	}
	if found {
		t.Fatal("expected absent key to report found=false")
	}
}

func TestStore_SaveAndLoadRoundTrip(t *testing.T) {
	db, cleanup := testutil.SetupTest(t)
	defer cleanup()

	st := New(db)
	joined := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	saved := models.User{
		Username:     "alice",
		Email:        "alice@example.com",
		Level:        2,
		Downloads:    5,
		MaxDownloads: 20,
		JoinDate:     &joined,
	}
	if err := st.Save(KeyUser, &saved); err != nil {
		t.Fatalf("save user: %v", err)
	}

	var loaded models.User
	found, err := st.Load(KeyUser, &loaded)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !found {
		t.Fatal("expected saved key to be found")
	}
	if loaded.Username != saved.Username || loaded.Level != saved.Level || loaded.Downloads != saved.Downloads {
		t.Fatalf("round trip mismatch: got %+v", loaded)
	}
	if loaded.JoinDate == nil || !loaded.JoinDate.Equal(joined) {
		t.Fatalf("expected join date %v, got %v", joined, loaded.JoinDate)
	}
}

func TestStore_SaveOverwritesExistingValue(t *testing.T) {
	db, cleanup := testutil.SetupTest(t)
	defer cleanup()

	st := New(db)
	if err := st.Save(KeyResources, []models.Resource{{ID: 1, Title: "First"}}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := st.Save(KeyResources, []models.Resource{{ID: 2, Title: "Second"}, {ID: 1, Title: "First"}}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var resources []models.Resource
	found, err := st.Load(KeyResources, &resources)
	if err != nil || !found {
		t.Fatalf("load resources: found=%v err=%v", found, err)
	}
	if len(resources) != 2 || resources[0].ID != 2 {
		t.Fatalf("expected overwritten collection, got %+v", resources)
	}
}

func TestStore_CorruptValueReturnsErrCorruptState(t *testing.T) {
	db, cleanup := testutil.SetupTest(t)
	defer cleanup()

	_, err := db.Exec(
		`INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		KeyUser, `{"username": not-json`,
	)
	if err != nil {
		t.Fatalf("seed corrupt value: %v", err)
	}

	st := New(db)
	var u models.User
	found, err := st.Load(KeyUser, &u)
	if found {
		t.Fatal("corrupt value must not report found=true")
	}
	if !errors.Is(err, ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
}

func TestStore_ClearRemovesKey(t *testing.T) {
	db, cleanup := testutil.SetupTest(t)
	defer cleanup()

	st := New(db)
	if err := st.Save(KeyRequests, []models.Request{{ID: 1, Title: "Need a plugin"}}); err != nil {
		t.Fatalf("save requests: %v", err)
	}
	if err := st.Clear(KeyRequests); err != nil {
		t.Fatalf("clear requests: %v", err)
	}

	var requests []models.Request
	found, err := st.Load(KeyRequests, &requests)
	if err != nil {
		t.Fatalf("load after clear: %v", err)
	}
	if found {
		t.Fatal("expected cleared key to be absent")
	}

	// Clearing again is a no-op.
	if err := st.Clear(KeyRequests); err != nil {
		t.Fatalf("clear absent key: %v", err)
	}
}
