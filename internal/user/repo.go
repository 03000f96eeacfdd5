package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/VehicleVault/VehicleVault/internal/common/server"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

func (r *Repo) Create(ctx context.Context, u *User) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(u).Error
}

func (r *Repo) FindByUsername(ctx context.Context, username string) (*User, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var u User
	if err := db.Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) FindByID(ctx context.Context, id string) (*User, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var u User
	if err := db.Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// RotateToken 为用户签发新 token；旧 token 在同一事务内作废。
func (r *Repo) RotateToken(ctx context.Context, userID string) (*Token, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}

	key, err := GenerateTokenKey()
	if err != nil {
		return nil, err
	}
	t := &Token{Key: key, UserID: userID}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&Token{}).Error; err != nil {
			return err
		}
		return tx.Create(t).Error
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ResolveToken 实现 server.TokenResolver：逐请求把不透明 token 解析为调用方身份。
func (r *Repo) ResolveToken(ctx context.Context, key string) (server.AuthInfo, bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return server.AuthInfo{}, false, fmt.Errorf("repo db is nil")
	}

	var t Token
	if err := db.Where("`key` = ?", key).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return server.AuthInfo{}, false, nil
		}
		return server.AuthInfo{}, false, err
	}

	u, err := r.FindByID(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return server.AuthInfo{}, false, nil
		}
		return server.AuthInfo{}, false, err
	}
	return server.AuthInfo{UserID: u.ID, Username: u.Username}, true, nil
}
