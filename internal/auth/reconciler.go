package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/linkbridge/internal/model"
	"github.com/hitoshi/linkbridge/internal/repository"
)

// Reconciler はDiscordのプロフィールをアプリケーションユーザーに突合する。
// find-or-createと逆引きマッピングの維持、チケットの消費までを担当する。
type Reconciler struct {
	userRepo    repository.UserRepository
	mappingRepo repository.MappingRepository
	ticketRepo  repository.TicketRepository
}

// NewReconciler はReconcilerを生成する。
func NewReconciler(
	userRepo repository.UserRepository,
	mappingRepo repository.MappingRepository,
	ticketRepo repository.TicketRepository,
) *Reconciler {
	return &Reconciler{
		userRepo:    userRepo,
		mappingRepo: mappingRepo,
		ticketRepo:  ticketRepo,
	}
}

// Reconcile はプロフィールに対応するユーザーを特定または作成し、
// マッピングを更新したうえでチケットを消費する。戻り値は内部ユーザーID。
//
// 検索と作成の間にトランザクション境界はない。同一Discord IDに対する
// 別チケットの並行コールバックが双方 not found を観測した場合、2件目の
// INSERTはusers.discord_idの一意インデックスで弾かれErrPersistenceになる。
//
// チケットの消費は最後に行う。敗者はErrTicketAlreadyUsedを観測し、
// 呼び出し側はクレデンシャルを発行しない。ただしプロフィールの上書きと
// マッピングのupsertは消費より前に実行されるため、リプレイされた
// コールバックでも繰り返される。同一IDに対しては冪等で結果は変わらない。
func (rc *Reconciler) Reconcile(ctx context.Context, profile *DiscordProfile, ticketID string) (string, error) {
	existing, err := rc.userRepo.FindByDiscordID(ctx, profile.ID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	var userID string

	if existing != nil {
		// 既存ユーザー: ミラー項目を上書きし、内部IDは維持する
		userID = existing.ID
		if err := rc.userRepo.UpdateDiscordProfile(ctx, userID, profile.ID, profile.Username, profile.AvatarURL); err != nil {
			return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
		}
		slog.Info("existing user relinked",
			slog.String("user_id", userID),
			slog.String("discord_id", profile.ID),
		)
	} else {
		// 新規ユーザー: プロフィールをミラーして作成
		now := time.Now()
		discordID := profile.ID
		newUser := &model.User{
			ID:               uuid.New().String(),
			DiscordID:        &discordID,
			DiscordUsername:  profile.Username,
			DiscordAvatarURL: profile.AvatarURL,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := rc.userRepo.Create(ctx, newUser); err != nil {
			return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
		}
		userID = newUser.ID
		slog.Info("new user created for link",
			slog.String("user_id", userID),
			slog.String("discord_id", profile.ID),
		)
	}

	// 逆引きマッピングは無条件に上書きする（last-write-wins）
	mapping := &model.LinkMapping{
		DiscordID: profile.ID,
		UserID:    userID,
		LinkedAt:  time.Now(),
	}
	if err := rc.mappingRepo.Upsert(ctx, mapping); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	// チケットの消費。AlreadyUsed/NotFoundはそのまま伝播させ、
	// 呼び出し側が「自分の完了」と「他者の再利用」を区別できるようにする。
	if err := rc.ticketRepo.MarkUsed(ctx, ticketID); err != nil {
		if errors.Is(err, model.ErrTicketAlreadyUsed) || errors.Is(err, model.ErrTicketNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	return userID, nil
}
