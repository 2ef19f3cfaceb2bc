package seed_test

import (
	"context"
	"testing"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/seed"
	"github.com/bcnelson/workspace-tree/internal/service"
	"github.com/bcnelson/workspace-tree/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := service.NewTreeService(store, domain.DefaultTypeTable(), nil, zerolog.Nop())

	wrote, err := seed.Run(ctx, store, svc, seed.Demo, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, wrote)

	count, err := store.CountNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 21, count)

	libs, err := svc.Libraries(ctx, "requirement")
	require.NoError(t, err)
	require.Len(t, libs, 2)
	assert.Equal(t, "Mobile", libs[0].Name)
	assert.Equal(t, "jira,redmine", libs[1].EnabledWizards)

	wrote, err = seed.Run(ctx, store, svc, seed.Demo, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, wrote, "a second run leaves existing data alone")

	again, err := store.CountNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, count, again)
}

func TestRun_RejectsInvalidForest(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := service.NewTreeService(store, domain.DefaultTypeTable(), nil, zerolog.Nop())

	_, err := seed.Run(ctx, store, svc, []seed.Item{
		{DomType: domain.DomFolder, ResType: "requirement-folders", Name: "orphan"},
	}, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
