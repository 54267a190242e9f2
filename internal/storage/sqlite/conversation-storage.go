package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iamvkosarev/notechat/internal/model"
	_ "modernc.org/sqlite"
)

type ConversationStorage struct {
	db *sql.DB
}

// Open creates the database file and its directory when missing and applies
// the schema.
func Open(path string) (*ConversationStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err = db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	s := NewConversationStorage(db)
	if err = s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func NewConversationStorage(db *sql.DB) *ConversationStorage {
	return &ConversationStorage{db: db}
}

func (s *ConversationStorage) Init() error {
	if _, err := s.db.Exec(createTables); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (s *ConversationStorage) Close() error {
	return s.db.Close()
}

func (s *ConversationStorage) CreateConversation(ctx context.Context, title string) (model.Conversation, error) {
	conv := model.NewConversation(title, model.Now())
	_, err := s.db.ExecContext(
		ctx, upsertConversation, conv.ID, conv.Title, conv.CreatedAt.UnixMilli(), conv.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return conv, nil
}

func (s *ConversationStorage) PutConversation(ctx context.Context, conv model.Conversation) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx, upsertConversation, conv.ID, conv.Title, conv.CreatedAt.UnixMilli(), conv.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert conversation %s: %w", conv.ID, err)
		}
		if _, err = tx.ExecContext(ctx, deleteMessagesByConversation, conv.ID); err != nil {
			return fmt.Errorf("failed to delete messages of %s: %w", conv.ID, err)
		}
		for i, msg := range conv.Messages {
			if err = insertMessageTx(ctx, tx, conv.ID, i, msg); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *ConversationStorage) GetConversation(ctx context.Context, id string) (model.Conversation, error) {
	conv, err := s.getConversation(ctx, s.db, id)
	if err != nil {
		return model.Conversation{}, err
	}
	conv.Messages, err = s.getMessages(ctx, s.db, id)
	if err != nil {
		return model.Conversation{}, err
	}
	return conv, nil
}

func (s *ConversationStorage) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, selectConversations)
	if err != nil {
		return nil, fmt.Errorf("failed to select conversations: %w", err)
	}
	conversations := make([]model.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	if err = rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	_ = rows.Close()

	for i := range conversations {
		conversations[i].Messages, err = s.getMessages(ctx, s.db, conversations[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return conversations, nil
}

func (s *ConversationStorage) AddMessage(
	ctx context.Context,
	id string,
	message model.ChatMessage,
) (model.Conversation, error) {
	return s.update(ctx, id, func(tx *sql.Tx) error {
		var position int
		if err := tx.QueryRowContext(ctx, selectNextPosition, id).Scan(&position); err != nil {
			return fmt.Errorf("failed to select next position: %w", err)
		}
		return insertMessageTx(ctx, tx, id, position, message)
	})
}

func (s *ConversationStorage) DeleteMessage(ctx context.Context, id, messageID string) (model.Conversation, error) {
	return s.update(ctx, id, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, deleteMessageByID, id, messageID)
		if err != nil {
			return fmt.Errorf("failed to delete message %s: %w", messageID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return model.ErrMessageNotFound
		}
		return nil
	})
}

func (s *ConversationStorage) ClearConversation(ctx context.Context, id string) (model.Conversation, error) {
	return s.update(ctx, id, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteMessagesByConversation, id); err != nil {
			return fmt.Errorf("failed to delete messages of %s: %w", id, err)
		}
		return nil
	})
}

func (s *ConversationStorage) RenameConversation(ctx context.Context, id, title string) (model.Conversation, error) {
	var conv model.Conversation
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, updateConversationTitle, title, model.Now().UnixMilli(), id)
		if err != nil {
			return fmt.Errorf("failed to rename conversation %s: %w", id, err)
		}
		if affected, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		} else if affected == 0 {
			return model.ErrConversationNotFound
		}
		conv, err = s.loadTx(ctx, tx, id)
		return err
	})
	return conv, err
}

func (s *ConversationStorage) DeleteConversation(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteMessagesByConversation, id); err != nil {
			return fmt.Errorf("failed to delete messages of %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, deleteConversationByID, id)
		if err != nil {
			return fmt.Errorf("failed to delete conversation %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return model.ErrConversationNotFound
		}
		return nil
	})
}

// update checks the conversation exists, applies mutate and bumps updated_at,
// all in one transaction.
func (s *ConversationStorage) update(
	ctx context.Context,
	id string,
	mutate func(tx *sql.Tx) error,
) (model.Conversation, error) {
	var conv model.Conversation
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getConversation(ctx, tx, id); err != nil {
			return err
		}
		if err := mutate(tx); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, touchConversation, model.Now().UnixMilli(), id); err != nil {
			return fmt.Errorf("failed to touch conversation %s: %w", id, err)
		}
		var err error
		conv, err = s.loadTx(ctx, tx, id)
		return err
	})
	return conv, err
}

func (s *ConversationStorage) loadTx(ctx context.Context, tx *sql.Tx, id string) (model.Conversation, error) {
	conv, err := s.getConversation(ctx, tx, id)
	if err != nil {
		return model.Conversation{}, err
	}
	conv.Messages, err = s.getMessages(ctx, tx, id)
	if err != nil {
		return model.Conversation{}, err
	}
	return conv, nil
}

func (s *ConversationStorage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *ConversationStorage) getConversation(ctx context.Context, q querier, id string) (model.Conversation, error) {
	conv, err := scanConversation(q.QueryRowContext(ctx, selectConversationByID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Conversation{}, model.ErrConversationNotFound
		}
		return model.Conversation{}, err
	}
	return conv, nil
}

func (s *ConversationStorage) getMessages(ctx context.Context, q querier, id string) ([]model.ChatMessage, error) {
	rows, err := q.QueryContext(ctx, selectMessagesByConversation, id)
	if err != nil {
		return nil, fmt.Errorf("failed to select messages of %s: %w", id, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	messages := make([]model.ChatMessage, 0)
	for rows.Next() {
		var (
			msg        model.ChatMessage
			role       string
			timestamp  int64
			tokenCount sql.NullInt64
			sourceFile sql.NullString
		)
		if err = rows.Scan(&msg.ID, &role, &msg.Content, &timestamp, &tokenCount, &sourceFile); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.Role = model.ParseRole(role)
		msg.Timestamp = fromMillis(timestamp)
		if tokenCount.Valid || sourceFile.Valid {
			msg = msg.WithMetadata(model.MessageMetadata{
				TokenCount: int(tokenCount.Int64),
				SourceFile: sourceFile.String,
			})
		}
		messages = append(messages, msg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

func scanConversation(row rowScanner) (model.Conversation, error) {
	var (
		conv                 model.Conversation
		createdAt, updatedAt int64
	)
	if err := row.Scan(&conv.ID, &conv.Title, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Conversation{}, err
		}
		return model.Conversation{}, fmt.Errorf("failed to scan conversation row: %w", err)
	}
	conv.CreatedAt = fromMillis(createdAt)
	conv.UpdatedAt = fromMillis(updatedAt)
	conv.Messages = make([]model.ChatMessage, 0)
	return conv, nil
}

func insertMessageTx(ctx context.Context, tx *sql.Tx, conversationID string, position int, msg model.ChatMessage) error {
	var (
		tokenCount sql.NullInt64
		sourceFile sql.NullString
	)
	if msg.Metadata != nil {
		tokenCount = sql.NullInt64{Int64: int64(msg.Metadata.TokenCount), Valid: true}
		sourceFile = sql.NullString{String: msg.Metadata.SourceFile, Valid: true}
	}
	_, err := tx.ExecContext(
		ctx, insertMessage,
		msg.ID, conversationID, position, string(msg.Role), msg.Content, msg.Timestamp.UnixMilli(),
		tokenCount, sourceFile,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message %s: %w", msg.ID, err)
	}
	return nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
