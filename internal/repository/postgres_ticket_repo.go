package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/linkbridge/internal/model"
)

// PostgresTicketRepo はPostgreSQLを使用したリンクチケットリポジトリ。
type PostgresTicketRepo struct {
	db *sql.DB
}

// NewPostgresTicketRepo はPostgresTicketRepoを生成する。
func NewPostgresTicketRepo(db *sql.DB) *PostgresTicketRepo {
	return &PostgresTicketRepo{db: db}
}

// Create はチケットを作成する。
func (r *PostgresTicketRepo) Create(ctx context.Context, ticket *model.LinkTicket) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO link_tickets (id, issuer_user_id, used, created_at)
		 VALUES ($1, $2, $3, $4)`,
		ticket.ID, ticket.IssuerUserID, ticket.Used, ticket.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create link ticket: %w", err)
	}
	return nil
}

// FindByID は指定IDのチケットを取得する。
// 見つからない場合はmodel.ErrTicketNotFoundを返す。
func (r *PostgresTicketRepo) FindByID(ctx context.Context, id string) (*model.LinkTicket, error) {
	ticket := &model.LinkTicket{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, issuer_user_id, used, created_at
		 FROM link_tickets
		 WHERE id = $1`,
		id,
	).Scan(&ticket.ID, &ticket.IssuerUserID, &ticket.Used, &ticket.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, model.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find link ticket: %w", err)
	}

	return ticket, nil
}

// MarkUsed はチケットをused=trueに遷移させる。
// WHERE used = false付きのUPDATEひとつで行うため、同一チケットに対する
// 並行コールバックのうち遷移を観測するのは高々1つ。敗者には
// model.ErrTicketAlreadyUsedを返し、存在しないIDには
// model.ErrTicketNotFoundを返す。
func (r *PostgresTicketRepo) MarkUsed(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE link_tickets SET used = true WHERE id = $1 AND used = false`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark ticket used: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	// 遷移できなかった場合、未存在か使用済みかを区別して返す
	var used bool
	err = r.db.QueryRowContext(ctx,
		`SELECT used FROM link_tickets WHERE id = $1`,
		id,
	).Scan(&used)
	if err == sql.ErrNoRows {
		return model.ErrTicketNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check ticket state: %w", err)
	}

	return model.ErrTicketAlreadyUsed
}

// compile-time interface check
var _ TicketRepository = (*PostgresTicketRepo)(nil)
