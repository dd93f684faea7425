package models

import (
	"strings"
	"time"

	"stagebased/errors"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// User is an API account. Admins may issue tokens for other users.
type User struct {
	ID        int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Email     string     `gorm:"not null;unique" json:"email"`
	Admin     bool       `gorm:"not null;default:false" json:"admin"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// APIToken is the single long-lived token of a user, sent as
// "Authorization: Token <key>".
type APIToken struct {
	ID        int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	UserID    int64      `gorm:"not null;unique_index" json:"user_id"`
	Key       string     `gorm:"column:token_key;size:40;not null;unique_index" json:"-"`
	RevokedAt *time.Time `json:"revoked_at"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func (t APIToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

func newTokenKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// EnsureUserToken returns the user with email and its token, creating
// either when missing. Repeated calls return the same token.
func EnsureUserToken(db *gorm.DB, email string) (User, APIToken, error) {
	var user User
	if err := db.Where(User{Email: email}).FirstOrCreate(&user).Error; err != nil {
		return user, APIToken{}, errors.Wrapf(err, "user %s", email)
	}
	var token APIToken
	err := db.Where(APIToken{UserID: user.ID}).
		Attrs(APIToken{Key: newTokenKey()}).
		FirstOrCreate(&token).Error
	if err != nil {
		return user, token, errors.Wrapf(err, "token for user %d", user.ID)
	}
	return user, token, nil
}

// UserByToken resolves an unrevoked token key to its user.
func UserByToken(db *gorm.DB, key string) (User, bool) {
	var token APIToken
	if err := db.Where("token_key = ?", key).First(&token).Error; err != nil || token.IsRevoked() {
		return User{}, false
	}
	var user User
	if err := db.First(&user, token.UserID).Error; err != nil {
		return User{}, false
	}
	return user, true
}
