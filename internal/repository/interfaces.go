// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/linkbridge/internal/model"
)

// TicketRepository はリンクチケットの永続化インターフェース。
// チケットの発行（Create）はBot側の経路だが、ストレージ層は共有のため
// ここに含める。本システムの経路で使うのはFindByIDとMarkUsedのみ。
type TicketRepository interface {
	// Create はチケットを作成する。
	Create(ctx context.Context, ticket *model.LinkTicket) error

	// FindByID は指定IDのチケットを取得する。
	// 見つからない場合はmodel.ErrTicketNotFoundを返す。
	FindByID(ctx context.Context, id string) (*model.LinkTicket, error)

	// MarkUsed はチケットをused=trueに遷移させる。
	// 遷移はfalse→trueのチェックアンドセットとしてアトミックに行われ、
	// 同一チケットへの並行呼び出しで成功を観測するのは高々1つ。
	// 既にused=trueの場合はmodel.ErrTicketAlreadyUsed、
	// 存在しない場合はmodel.ErrTicketNotFoundを返す。
	MarkUsed(ctx context.Context, id string) error
}

// UserRepository はアプリケーションユーザーの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByDiscordID はdiscord_idでユーザーを検索する。見つからない場合はnilを返す。
	FindByDiscordID(ctx context.Context, discordID string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateDiscordProfile はミラーしているDiscordプロフィール項目を上書きする。
	// リンク成功のたびに呼ばれ、updated_atを更新する。
	UpdateDiscordProfile(ctx context.Context, userID, discordID, username, avatarURL string) error
}

// MappingRepository はdiscord_id→user_id逆引きマッピングの永続化インターフェース。
// Botがメインデータベースを参照せずにIDを解決するための高速ストア。
type MappingRepository interface {
	// Upsert はマッピングを作成または上書きする（last-write-wins）。
	Upsert(ctx context.Context, mapping *model.LinkMapping) error

	// Lookup はdiscord_idに対応するマッピングを取得する。
	// 見つからない場合はnilを返す。
	Lookup(ctx context.Context, discordID string) (*model.LinkMapping, error)
}
