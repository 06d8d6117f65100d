// Package model はドメインモデルを定義する。
package model

import "time"

// User はアプリケーションのアカウントレコードを表す。
// DiscordIDはリンク済みの場合のみ非nilで、同時に同じDiscordIDを持つ
// Userは高々1件とする。
type User struct {
	ID               string
	DiscordID        *string
	DiscordUsername  string
	DiscordAvatarURL string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Linked はDiscordアカウントが紐付け済みかどうかを返す。
func (u *User) Linked() bool {
	return u.DiscordID != nil && *u.DiscordID != ""
}
