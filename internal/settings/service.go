package settings

import "context"

// Service wraps the settings store. GetSetting mirrors the collaborator
// contract consumed by the pricing policy: missing keys are not an error for
// callers that carry their own defaults.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetSetting returns the value and whether the key exists. Store failures
// are reported so callers can decide between defaulting and surfacing.
func (s *Service) GetSetting(ctx context.Context, key string) (string, bool, error) {
	v, err := s.repo.Get(ctx, key)
	if err == ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Service) PutSetting(ctx context.Context, key, value string) error {
	return s.repo.Put(ctx, key, value)
}

func (s *Service) List(ctx context.Context) ([]Setting, error) {
	return s.repo.List(ctx)
}
