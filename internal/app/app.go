package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/iamvkosarev/notechat/config"
	"github.com/iamvkosarev/notechat/internal/model"
	in_memory "github.com/iamvkosarev/notechat/internal/storage/in-memory"
	key_value "github.com/iamvkosarev/notechat/internal/storage/key-value"
	"github.com/iamvkosarev/notechat/internal/storage/sqlite"
	"github.com/iamvkosarev/notechat/internal/usecase"
	"github.com/iamvkosarev/notechat/internal/vault"
	openai_tools "github.com/iamvkosarev/notechat/pkg/openai-tools"
	"github.com/redis/go-redis/v9"
)

// App holds the wired use cases of one vault.
type App struct {
	Config        *config.Config
	Vault         *vault.Vault
	History       *vault.History
	Settings      *usecase.SettingsUsecase
	Conversations *usecase.ConversationUsecase
	Chat          *usecase.ChatUsecase
	Search        *usecase.SearchUsecase
	Summarizer    *usecase.SummarizationUsecase
	Files         *usecase.FileUsecase

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	v, err := vault.New(cfg.Vault.Path, cfg.Vault.HistoryDir, cfg.Vault.UploadsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}
	a := &App{
		Config:  cfg,
		Vault:   v,
		History: vault.NewHistory(v, cfg.Vault.HistoryDir),
	}

	a.Settings, err = usecase.NewSettingsUsecase(cfg.SettingsFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	conversationStorage, err := a.openStorage(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	openAIUsecase := usecase.NewOpenAIUsecase(cfg.OpenAI)

	a.Conversations = usecase.NewConversationUsecase(
		usecase.ConversationUsecaseDeps{
			Storage:  conversationStorage,
			History:  a.History,
			Settings: a.Settings,
		},
	)

	a.Summarizer = usecase.NewSummarizationUsecase(
		usecase.SummarizationUsecaseDeps{
			AI:       openAIUsecase,
			Settings: a.Settings,
		},
	)

	a.Files = usecase.NewFileUsecase(
		usecase.FileUsecaseDeps{
			Vault:    v,
			Settings: a.Settings,
		}, cfg.Vault.UploadsDir,
	)

	a.Search = usecase.NewSearchUsecase(
		usecase.SearchUsecaseDeps{
			Notes:         v,
			Conversations: a.Conversations,
			Settings:      a.Settings,
		},
	)

	a.Chat = usecase.NewChatUsecase(
		usecase.ChatUsecaseDeps{
			Conversations: a.Conversations,
			Notes:         v,
			Relevance:     usecase.NewRelevanceUsecase(),
			Summarizer:    a.Summarizer,
			AI:            openAIUsecase,
			Files:         a.Files,
			Transcript:    a.History,
			Tokens:        newTokenizer(cfg.OpenAI.TokenCounter),
			Settings:      a.Settings,
		},
	)

	n, err := a.Conversations.LoadHistory(ctx)
	if err != nil {
		log.Printf("failed to load chat history: %v\n", err)
	} else if n > 0 {
		log.Printf("loaded %d conversations from %s\n", n, cfg.Vault.HistoryDir)
	}
	return a, nil
}

func (a *App) openStorage(ctx context.Context) (usecase.ConversationStorage, error) {
	switch a.Config.Storage.Type {
	case config.StorageTypeMemory, "":
		return in_memory.NewConversationStorage(), nil
	case config.StorageTypeRedis:
		rdb := redis.NewClient(
			&redis.Options{
				Addr:     a.Config.Storage.Redis.Endpoint,
				Password: a.Config.Storage.Redis.Password,
				DB:       a.Config.Storage.Redis.DB,
			},
		)
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("%w: failed to connect to redis %s: %w", model.ErrIO, a.Config.Storage.Redis.Endpoint, err)
		}
		return key_value.NewConversationStorage(rdb), nil
	case config.StorageTypeSQLite:
		storage, err := sqlite.Open(a.Config.SQLiteFile())
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		a.closers = append(a.closers, storage.Close)
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", a.Config.Storage.Type)
	}
}

// Close releases the storage connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newTokenizer picks the BPE counter unless the length estimate is asked
// for. The BPE encodings are downloaded on first use.
func newTokenizer(counter string) *openai_tools.Tokenizer {
	if counter == config.TokenCounterEstimate {
		return openai_tools.NewEstimator()
	}
	return openai_tools.NewTokenizer()
}
