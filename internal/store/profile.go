package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/recipecost/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileCols = `user_id, username, avatar_url, created_at, updated_at`

func scanProfile(s scanner) (*model.Profile, error) {
	var p model.Profile
	var username, avatar sql.NullString
	if err := s.Scan(&p.UserID, &username, &avatar, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Username = stringPtr(username)
	p.AvatarURL = stringPtr(avatar)
	return &p, nil
}

func (s *ProfileStore) Get(userID int64) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Update sets the username and avatar. A nil avatarURL clears it.
func (s *ProfileStore) Update(userID int64, username string, avatarURL *string) (*model.Profile, error) {
	_, err := s.db.Exec(
		`UPDATE profiles SET username = ?, avatar_url = ?, updated_at = ? WHERE user_id = ?`,
		username, nullString(avatarURL), time.Now().UTC(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.Get(userID)
}
