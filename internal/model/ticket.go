package model

import "time"

// LinkTicket は1回のリンク試行を表すワンタイムチケット。
// Botなど外部のイニシエーターが発行し、本システムは読み取りと
// used=false→trueの遷移のみを行う。削除は行わない（保持期限は外部管理）。
type LinkTicket struct {
	ID           string
	IssuerUserID *string
	Used         bool
	CreatedAt    time.Time
}

// Expired はチケットが有効期限切れかどうかを判定する。
// nowを基準にttlを超過していればtrueを返す。
func (t *LinkTicket) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(t.CreatedAt) > ttl
}
