package usecase

import (
	"fmt"
	"slices"
	"sync"

	"github.com/iamvkosarev/notechat/config"
)

// SettingsUsecase owns the settings file. Every change is validated and
// saved wholesale before it becomes visible.
type SettingsUsecase struct {
	path     string
	mu       sync.RWMutex
	settings config.Settings
}

func NewSettingsUsecase(path string) (*SettingsUsecase, error) {
	settings, err := config.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	if err = settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return &SettingsUsecase{
		path:     path,
		settings: settings,
	}, nil
}

func (s *SettingsUsecase) Path() string {
	return s.path
}

func (s *SettingsUsecase) Settings() config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings := s.settings
	settings.SupportedFileTypes = slices.Clone(s.settings.SupportedFileTypes)
	return settings
}

// Update applies change to a copy of the settings. Invalid results are
// rejected and nothing is saved.
func (s *SettingsUsecase) Update(change func(settings *config.Settings) error) (config.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := s.settings
	updated.SupportedFileTypes = slices.Clone(s.settings.SupportedFileTypes)
	if err := change(&updated); err != nil {
		return config.Settings{}, err
	}
	if err := updated.Validate(); err != nil {
		return config.Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	if err := config.SaveSettings(s.path, updated); err != nil {
		return config.Settings{}, err
	}
	s.settings = updated
	return updated, nil
}

// Set changes one setting by its yaml key.
func (s *SettingsUsecase) Set(key, value string) (config.Settings, error) {
	return s.Update(func(settings *config.Settings) error {
		return settings.Set(key, value)
	})
}
