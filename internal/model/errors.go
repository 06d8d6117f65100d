package model

import "errors"

// リンクフローの失敗種別。各ステップは失敗をこれらのセンチネルで
// ラップして返し、ハンドラー境界で一度だけHTTPレスポンスに変換する。
// いずれもリクエスト内でのリトライは行わない（フロー再開はユーザー操作）。
var (
	// ErrMissingParameter は必須クエリパラメータの欠落を示す。
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrMalformedTicket はチケットIDの形式不正を示す。
	ErrMalformedTicket = errors.New("malformed ticket id")

	// ErrTicketNotFound はチケットがストアに存在しないことを示す。
	ErrTicketNotFound = errors.New("link ticket not found")

	// ErrTicketExpired はチケットの有効期限切れを示す。
	ErrTicketExpired = errors.New("link ticket expired")

	// ErrTicketAlreadyUsed はチケットが使用済みであることを示す。
	// 同一チケットへの並行コールバックの敗者もこのエラーを観測する。
	ErrTicketAlreadyUsed = errors.New("link ticket already used")

	// ErrTokenExchangeFailed は認可コードのトークン交換失敗を示す。
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrIdentityFetchFailed はDiscordプロフィール取得の失敗を示す。
	ErrIdentityFetchFailed = errors.New("identity fetch failed")

	// ErrPersistence はユーザー・マッピングの書き込み失敗を示す。
	ErrPersistence = errors.New("persistence failed")

	// ErrCredentialIssuance はクレデンシャル署名の失敗を示す。
	ErrCredentialIssuance = errors.New("credential issuance failed")
)
