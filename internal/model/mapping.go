package model

import "time"

// LinkMapping はdiscord_id→user_idの逆引き用レコードを表す。
// Botがメインデータベースに触れずにIDを解決できるよう、
// Redis上に非正規化して保持する。再リンク時はlast-write-wins。
type LinkMapping struct {
	DiscordID string
	UserID    string
	LinkedAt  time.Time
}
