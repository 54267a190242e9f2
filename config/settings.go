package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/iamvkosarev/notechat/pkg/local"
	"gopkg.in/yaml.v3"
)

const (
	HistoryFormatJSON     = "json"
	HistoryFormatMarkdown = "markdown"

	ContextIntegrationFull    = "full"
	ContextIntegrationSummary = "summary"

	DefaultSystemPrompt = "You are an AI assistant designed to help users understand and analyze their notes. " +
		"Answer the user's questions based on the provided notes from their vault. Be concise and informative."
)

var ErrUnknownSetting = errors.New("unknown setting")

// Settings are the user-facing options persisted next to the vault.
type Settings struct {
	APIKey                   string         `yaml:"api_key"`
	ModelName                string         `yaml:"model_name"`
	Temperature              float32        `yaml:"temperature"`
	MaxTokens                int            `yaml:"max_tokens"`
	TopP                     float32        `yaml:"top_p"`
	SystemPrompt             string         `yaml:"system_prompt"`
	SaveChatHistory          bool           `yaml:"save_chat_history"`
	LoadChatHistory          bool           `yaml:"load_chat_history"`
	SearchChatHistory        bool           `yaml:"search_chat_history"`
	HistoryFormat            string         `yaml:"history_format"`
	FileUploadLimitMB        int            `yaml:"file_upload_limit_mb"`
	SupportedFileTypes       []string       `yaml:"supported_file_types"`
	ContextIntegrationMethod string         `yaml:"context_integration_method"`
	MaxContextSize           int            `yaml:"max_context_size"`
	MaxRelevantNotes         int            `yaml:"max_relevant_notes"`
	SummaryMaxLength         int            `yaml:"summary_max_length"`
	SendDebounce             time.Duration  `yaml:"send_debounce"`
	Language                 local.Language `yaml:"language"`
}

func DefaultSettings() Settings {
	return Settings{
		ModelName:                "gpt-4",
		Temperature:              0.7,
		MaxTokens:                2048,
		TopP:                     1,
		SystemPrompt:             DefaultSystemPrompt,
		SaveChatHistory:          true,
		LoadChatHistory:          true,
		SearchChatHistory:        true,
		HistoryFormat:            HistoryFormatJSON,
		FileUploadLimitMB:        10,
		SupportedFileTypes:       []string{".txt", ".md", ".pdf", ".csv", ".doc", ".docx"},
		ContextIntegrationMethod: ContextIntegrationFull,
		MaxContextSize:           4096,
		MaxRelevantNotes:         5,
		SummaryMaxLength:         200,
		Language:                 local.Eng,
	}
}

// LoadSettings reads path over the defaults. A missing file yields defaults.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return Settings{}, fmt.Errorf("failed to read settings %s: %w", path, err)
	}
	if err = yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal settings %s: %w", path, err)
	}
	settings.SupportedFileTypes = normalizeFileTypes(settings.SupportedFileTypes)
	return settings, nil
}

// SaveSettings writes the whole record, creating directories as needed.
func SaveSettings(path string, settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", path, err)
	}
	return nil
}

func (s Settings) Validate() error {
	if s.ModelName == "" {
		return errors.New("model_name must not be empty")
	}
	if !isFinite(s.Temperature) || s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature %v is out of range [0, 2]", s.Temperature)
	}
	if s.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens %d must be positive", s.MaxTokens)
	}
	if !isFinite(s.TopP) || s.TopP < 0 || s.TopP > 1 {
		return fmt.Errorf("top_p %v is out of range [0, 1]", s.TopP)
	}
	if s.HistoryFormat != HistoryFormatJSON && s.HistoryFormat != HistoryFormatMarkdown {
		return fmt.Errorf("history_format %q must be json or markdown", s.HistoryFormat)
	}
	if s.ContextIntegrationMethod != ContextIntegrationFull && s.ContextIntegrationMethod != ContextIntegrationSummary {
		return fmt.Errorf("context_integration_method %q must be full or summary", s.ContextIntegrationMethod)
	}
	if s.FileUploadLimitMB <= 0 {
		return fmt.Errorf("file_upload_limit_mb %d must be positive", s.FileUploadLimitMB)
	}
	if s.MaxContextSize <= 0 {
		return fmt.Errorf("max_context_size %d must be positive", s.MaxContextSize)
	}
	if s.MaxRelevantNotes < 0 {
		return fmt.Errorf("max_relevant_notes %d must not be negative", s.MaxRelevantNotes)
	}
	if s.SummaryMaxLength <= 0 {
		return fmt.Errorf("summary_max_length %d must be positive", s.SummaryMaxLength)
	}
	if s.SendDebounce < 0 {
		return fmt.Errorf("send_debounce %v must not be negative", s.SendDebounce)
	}
	if s.Language != local.Eng && s.Language != local.Rus {
		return fmt.Errorf("language %q must be en or ru", s.Language)
	}
	return nil
}

// FileUploadLimitBytes converts the megabyte limit to bytes.
func (s Settings) FileUploadLimitBytes() int64 {
	return int64(s.FileUploadLimitMB) * 1024 * 1024
}

// Set parses value into the field named by its yaml key. The result is not
// validated.
func (s *Settings) Set(key, value string) error {
	var err error
	switch key {
	case "api_key":
		s.APIKey = value
	case "model_name":
		s.ModelName = value
	case "temperature":
		s.Temperature, err = parseFloat32(value)
	case "max_tokens":
		s.MaxTokens, err = strconv.Atoi(value)
	case "top_p":
		s.TopP, err = parseFloat32(value)
	case "system_prompt":
		s.SystemPrompt = value
	case "save_chat_history":
		s.SaveChatHistory, err = strconv.ParseBool(value)
	case "load_chat_history":
		s.LoadChatHistory, err = strconv.ParseBool(value)
	case "search_chat_history":
		s.SearchChatHistory, err = strconv.ParseBool(value)
	case "history_format":
		s.HistoryFormat = strings.ToLower(value)
	case "file_upload_limit_mb":
		s.FileUploadLimitMB, err = strconv.Atoi(value)
	case "supported_file_types":
		s.SupportedFileTypes = parseFileTypes(value)
	case "context_integration_method":
		s.ContextIntegrationMethod = strings.ToLower(value)
	case "max_context_size":
		s.MaxContextSize, err = strconv.Atoi(value)
	case "max_relevant_notes":
		s.MaxRelevantNotes, err = strconv.Atoi(value)
	case "summary_max_length":
		s.SummaryMaxLength, err = strconv.Atoi(value)
	case "send_debounce":
		s.SendDebounce, err = time.ParseDuration(value)
	case "language":
		lang, ok := local.ParseLanguage(value)
		if !ok {
			err = fmt.Errorf("unknown language %q", value)
		}
		s.Language = lang
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

func parseFloat32(value string) (float32, error) {
	f, err := strconv.ParseFloat(value, 32)
	return float32(f), err
}

func isFinite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}

// parseFileTypes accepts a comma or space separated list.
func parseFileTypes(value string) []string {
	return normalizeFileTypes(strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' }))
}

// normalizeFileTypes turns each entry into a lower-case extension with a
// leading dot and drops blanks.
func normalizeFileTypes(fields []string) []string {
	if fields == nil {
		return nil
	}
	types := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		if !strings.HasPrefix(field, ".") {
			field = "." + field
		}
		types = append(types, field)
	}
	return types
}
