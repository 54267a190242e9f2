package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/iamvkosarev/notechat/config"
	"github.com/iamvkosarev/notechat/internal/model"
	openai_tools "github.com/iamvkosarev/notechat/pkg/openai-tools"
	"github.com/sashabaranov/go-openai"
)

const (
	notesContextSeparator = "\n\nUser's Notes:\n"
	MessageNoResponse     = "No response generated"
)

type CompletionRequest struct {
	APIKey       string
	Model        string
	SystemPrompt string
	Context      string
	Query        string
	Temperature  float32
	MaxTokens    int
	TopP         float32
}

type Completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type OpenAIUsecase struct {
	cfg        config.OpenAI
	httpClient *http.Client
	tokens     *openai_tools.Tokenizer
}

func NewOpenAIUsecase(cfg config.OpenAI) *OpenAIUsecase {
	tokens := openai_tools.NewTokenizer()
	if cfg.TokenCounter == config.TokenCounterEstimate {
		tokens = openai_tools.NewEstimator()
	}
	return &OpenAIUsecase{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
	}
}

// Complete sends one chat completion: the system prompt with the notes
// context appended, then the user query. The request key wins over the
// environment key.
func (o *OpenAIUsecase) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(o.cfg.OpenAIAPIKey)
	}
	if apiKey == "" {
		return Completion{}, model.ErrMissingCredential
	}

	chatReq := buildChatRequest(req)
	c := openai.NewClientWithConfig(o.clientConfig(apiKey))
	resp, err := c.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Completion{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("%w: response has no choices", model.ErrRemoteAPI)
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		content = MessageNoResponse
	}
	completion := Completion{
		Content:          content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if completion.TotalTokens == 0 {
		// Some compatible servers leave usage out.
		completion.PromptTokens = o.tokens.CountMessages(chatReq.Messages, req.Model)
		completion.CompletionTokens = o.tokens.Count(resp.Choices[0].Message.Content, req.Model)
		completion.TotalTokens = completion.PromptTokens + completion.CompletionTokens
	}
	return completion, nil
}

func (o *OpenAIUsecase) clientConfig(apiKey string) openai.ClientConfig {
	var clientConfig openai.ClientConfig
	if o.cfg.APIType == config.APITypeAzure {
		clientConfig = openai.DefaultAzureConfig(apiKey, o.cfg.OpenAIBaseURL)
		deployment := o.cfg.AzureDeployment
		clientConfig.AzureModelMapperFunc = func(string) string {
			return deployment
		}
	} else {
		clientConfig = openai.DefaultConfig(apiKey)
		if o.cfg.OpenAIBaseURL != "" {
			clientConfig.BaseURL = o.cfg.OpenAIBaseURL
		}
	}
	clientConfig.HTTPClient = o.httpClient
	return clientConfig
}

// buildChatRequest leaves the notes section out of the system message when
// there is no context at all; chat turns always carry one.
func buildChatRequest(req CompletionRequest) openai.ChatCompletionRequest {
	systemContent := req.SystemPrompt
	if req.Context != "" {
		systemContent += notesContextSeparator + req.Context
	}
	return openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemContent,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Query,
			},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
	}
}

// classifyOpenAIError maps client errors onto the error taxonomy: 429 is a
// rate limit, everything else is a remote failure carrying its message.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", model.ErrRateLimited, apiErr.Message)
		}
		return fmt.Errorf("%w: %s", model.ErrRemoteAPI, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", model.ErrRateLimited, reqErr.Err)
		}
		return fmt.Errorf("%w: status %d: %v", model.ErrRemoteAPI, reqErr.HTTPStatusCode, reqErr.Err)
	}
	return fmt.Errorf("%w: %v", model.ErrRemoteAPI, err)
}
