package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/peppolway/internal/environment"
	"github.com/smallbiznis/peppolway/internal/identifier"
	"github.com/smallbiznis/peppolway/internal/participant/domain"
	"github.com/smallbiznis/peppolway/internal/participant/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Participant{}, &domain.ParticipantIdentifier{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
}

func TestRegister_WithIdentifiers(t *testing.T) {
	svc := newTestService(t)

	participant, err := svc.Register(context.Background(), domain.RegisterParticipantRequest{
		Environment: environment.Sandbox,
		LegalName:   "Acme BV",
		CountryCode: "be",
		Role:        domain.RoleBoth,
		Identifiers: []identifier.Identifier{
			{Scheme: "0208", Value: "123456789"},
			{Scheme: "9925", Value: "987654321"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "BE", participant.CountryCode)
	assert.True(t, participant.Active)
	require.Len(t, participant.Identifiers, 2)
	assert.Equal(t, 1, participant.Identifiers[0].Position)
	assert.Equal(t, 2, participant.Identifiers[1].Position)

	// Default identifier follows registration order.
	ident, ok := participant.DefaultIdentifier()
	require.True(t, ok)
	assert.Equal(t, "0208", ident.Scheme)
}

func TestRegister_RoleConflictWithoutIdentifiers(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register(context.Background(), domain.RegisterParticipantRequest{
		Environment: environment.Sandbox,
		LegalName:   "Globex NV",
		CountryCode: "NL",
		Role:        domain.RoleReceiver,
	})
	assert.ErrorIs(t, err, domain.ErrRoleConflict)
}

func TestRegister_InvalidIdentifier(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register(context.Background(), domain.RegisterParticipantRequest{
		Environment: environment.Sandbox,
		LegalName:   "Globex NV",
		CountryCode: "NL",
		Role:        domain.RoleSender,
		Identifiers: []identifier.Identifier{{Scheme: "abcd", Value: "123"}},
	})
	assert.ErrorIs(t, err, identifier.ErrInvalidFormat)
}

func TestRegister_DuplicateIdentifierWithinEnvironment(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.RegisterParticipantRequest{
		Environment: environment.Sandbox,
		LegalName:   "Acme BV",
		CountryCode: "BE",
		Role:        domain.RoleSender,
		Identifiers: []identifier.Identifier{{Scheme: "0208", Value: "123456789"}},
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, domain.RegisterParticipantRequest{
		Environment: environment.Sandbox,
		LegalName:   "Impostor BV",
		CountryCode: "BE",
		Role:        domain.RoleSender,
		Identifiers: []identifier.Identifier{{Scheme: "0208", Value: "123456789"}},
	})
	assert.ErrorIs(t, err, domain.ErrIdentifierTaken)
}

func TestFindByIdentifier_EnvironmentIsolation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, domain.RegisterParticipantRequest{
		Environment: environment.Sandbox,
		LegalName:   "Acme BV",
		CountryCode: "BE",
		Role:        domain.RoleBoth,
		Identifiers: []identifier.Identifier{{Scheme: "0208", Value: "123456789"}},
	})
	require.NoError(t, err)

	found, err := svc.FindByIdentifier(ctx, environment.Sandbox, "0208", "123456789")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, registered.ID, found.ID)

	// Same identifier in the other environment never matches.
	missing, err := svc.FindByIdentifier(ctx, environment.Production, "0208", "123456789")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindByIdentifier_SkipsInactive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, domain.RegisterParticipantRequest{
		Environment: environment.Sandbox,
		LegalName:   "Acme BV",
		CountryCode: "BE",
		Role:        domain.RoleBoth,
		Identifiers: []identifier.Identifier{{Scheme: "0208", Value: "123456789"}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, environment.Sandbox, registered.ID.String()))
	// Deactivate twice stays a no-op.
	require.NoError(t, svc.Deactivate(ctx, environment.Sandbox, registered.ID.String()))

	found, err := svc.FindByIdentifier(ctx, environment.Sandbox, "0208", "123456789")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestAddIdentifier_AppendsAtEnd(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, domain.RegisterParticipantRequest{
		Environment: environment.Sandbox,
		LegalName:   "Acme BV",
		CountryCode: "BE",
		Role:        domain.RoleBoth,
		Identifiers: []identifier.Identifier{{Scheme: "0208", Value: "123456789"}},
	})
	require.NoError(t, err)

	err = svc.AddIdentifier(ctx, environment.Sandbox, registered.ID.String(), identifier.Identifier{Scheme: "9925", Value: "555"})
	require.NoError(t, err)

	reloaded, err := svc.GetByID(ctx, environment.Sandbox, registered.ID.String())
	require.NoError(t, err)
	require.Len(t, reloaded.Identifiers, 2)
	assert.Equal(t, 2, reloaded.Identifiers[1].Position)
	assert.Equal(t, "9925", reloaded.Identifiers[1].Scheme)

	// The default stays the first registered identifier.
	ident, ok := reloaded.DefaultIdentifier()
	require.True(t, ok)
	assert.Equal(t, "0208", ident.Scheme)
}
