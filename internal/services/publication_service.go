package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/events"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/repository"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/logger"
)

const teamNameSetting = "teamname"

// PublicationService backs the pseudo-collection views: hasUsers and
// teamName. Each is a single document under a stable key, derived from state
// rather than mirroring a raw record, so clients can decide between the
// setup flow and the login page (hasUsers) or render the team banner
// (teamName) without access to the underlying collections.
type PublicationService struct {
	users    repository.UserRepository
	settings repository.SettingRepository
	bus      events.Publisher
	log      *logger.Logger
}

func NewPublicationService(users repository.UserRepository, settings repository.SettingRepository, bus events.Publisher, log *logger.Logger) *PublicationService {
	return &PublicationService{users: users, settings: settings, bus: bus, log: log}
}

// HasUsersDoc returns the singleton hasUsers document.
func (s *PublicationService) HasUsersDoc(ctx context.Context) (map[string]interface{}, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("has users: %w", err)
	}
	return map[string]interface{}{"hasUsers": count > 0}, nil
}

// TeamNameDoc returns the singleton teamName document. A missing setting
// yields an empty name rather than an error.
func (s *PublicationService) TeamNameDoc(ctx context.Context) (map[string]interface{}, error) {
	setting, err := s.settings.Get(ctx, teamNameSetting)
	if err != nil {
		if errors.Is(err, jr_errors.ErrNotFound) {
			return map[string]interface{}{"name": ""}, nil
		}
		return nil, fmt.Errorf("team name: %w", err)
	}
	return map[string]interface{}{"name": setting.Value}, nil
}

// SetTeamName updates the team name and notifies live subscribers.
func (s *PublicationService) SetTeamName(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("set team name: %w", jr_errors.ErrInvalidInput)
	}
	if _, err := s.settings.Upsert(ctx, teamNameSetting, name); err != nil {
		return fmt.Errorf("set team name: %w", err)
	}
	if s.bus != nil {
		env := events.NewEnvelope(events.PseudoTeamName, events.PseudoTeamName, events.OpChanged, map[string]string{"name": name})
		if err := s.bus.Publish(ctx, env); err != nil && s.log != nil {
			s.log.Warnf("publish teamName: %v", err)
		}
	}
	return nil
}
