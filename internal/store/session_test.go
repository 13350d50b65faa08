package store

import (
	"testing"
	"time"
)

func setupSessionTestDB(t *testing.T) (*SessionStore, int64) {
	t.Helper()
	db := openTestDB(t)
	u := createTestUser(t, db, "alice@example.com")
	return NewSessionStore(db), u.ID
}

func TestSessionCreate(t *testing.T) {
	ss, userID := setupSessionTestDB(t)

	sess, err := ss.Create(userID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 { // 32 bytes hex-encoded
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if sess.UserID != userID {
		t.Errorf("user_id = %d, want %d", sess.UserID, userID)
	}
	if !sess.ExpiresAt.After(time.Now()) {
		t.Errorf("expires_at = %v, want future", sess.ExpiresAt)
	}
}

func TestSessionGetByToken(t *testing.T) {
	ss, userID := setupSessionTestDB(t)
	created, _ := ss.Create(userID, time.Hour)

	sess, err := ss.GetByToken(created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess == nil || sess.ID != created.ID {
		t.Fatalf("got %+v, want session %d", sess, created.ID)
	}
}

func TestSessionGetByTokenNotFound(t *testing.T) {
	ss, _ := setupSessionTestDB(t)

	sess, err := ss.GetByToken("nonexistent")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for nonexistent token")
	}
}

func TestSessionExpired(t *testing.T) {
	ss, userID := setupSessionTestDB(t)
	expired, _ := ss.Create(userID, -time.Minute)
	live, _ := ss.Create(userID, time.Hour)

	sess, err := ss.GetByToken(expired.Token)
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for expired session")
	}

	n, err := ss.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	if sess, _ := ss.GetByToken(live.Token); sess == nil {
		t.Error("live session should survive cleanup")
	}
}

func TestSessionDelete(t *testing.T) {
	ss, userID := setupSessionTestDB(t)
	created, _ := ss.Create(userID, time.Hour)

	if err := ss.Delete(created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if sess, _ := ss.GetByToken(created.Token); sess != nil {
		t.Error("expected nil after delete")
	}
}

func TestSessionDeleteByUserID(t *testing.T) {
	ss, userID := setupSessionTestDB(t)
	ss.Create(userID, time.Hour)
	ss.Create(userID, time.Hour)

	if err := ss.DeleteByUserID(userID); err != nil {
		t.Fatalf("delete by user id: %v", err)
	}

	var count int
	ss.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE user_id = ?`, userID).Scan(&count)
	if count != 0 {
		t.Errorf("expected 0 sessions, got %d", count)
	}
}
