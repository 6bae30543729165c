package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/account"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/events"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

func TestHasUsersDocTracksUserCount(t *testing.T) {
	users := newMemUserRepo()
	svc := NewPublicationService(users, newMemSettingRepo(), nil, nil)
	ctx := context.Background()

	doc, err := svc.HasUsersDoc(ctx)
	require.NoError(t, err)
	require.Equal(t, false, doc["hasUsers"])

	require.NoError(t, users.Create(ctx, &account.User{ID: uuid.New()}))
	doc, err = svc.HasUsersDoc(ctx)
	require.NoError(t, err)
	require.Equal(t, true, doc["hasUsers"])
}

func TestTeamNameDocDefaultsToEmpty(t *testing.T) {
	svc := NewPublicationService(newMemUserRepo(), newMemSettingRepo(), nil, nil)
	doc, err := svc.TeamNameDoc(context.Background())
	require.NoError(t, err)
	require.Equal(t, "", doc["name"])
}

func TestSetTeamNamePublishesChange(t *testing.T) {
	bus := &capturingBus{}
	svc := NewPublicationService(newMemUserRepo(), newMemSettingRepo(), bus, nil)
	ctx := context.Background()

	require.NoError(t, svc.SetTeamName(ctx, "Death and Mayhem"))

	doc, err := svc.TeamNameDoc(ctx)
	require.NoError(t, err)
	require.Equal(t, "Death and Mayhem", doc["name"])

	changes := bus.byCollection(events.PseudoTeamName)
	require.Len(t, changes, 1)
	require.Equal(t, events.OpChanged, changes[0].Op)

	// renames overwrite, they do not accumulate rows
	require.NoError(t, svc.SetTeamName(ctx, "Plunderers"))
	doc, err = svc.TeamNameDoc(ctx)
	require.NoError(t, err)
	require.Equal(t, "Plunderers", doc["name"])
}

func TestSetTeamNameRejectsEmpty(t *testing.T) {
	svc := NewPublicationService(newMemUserRepo(), newMemSettingRepo(), nil, nil)
	err := svc.SetTeamName(context.Background(), "")
	require.ErrorIs(t, err, jr_errors.ErrInvalidInput)
}
