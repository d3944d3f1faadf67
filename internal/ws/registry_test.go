package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/handoff-service/internal/domain"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

func TestRegisterAndResolve(t *testing.T) {
	registry := NewRegistry()
	opID := "op-1"

	session, err := registry.Register("s1", domain.Identity{OperatorID: &opID, Name: "  Alice  "})
	require.NoError(t, err)
	assert.Equal(t, "Alice", session.Identity.Name)

	identity := registry.Resolve("s1")
	assert.Equal(t, "Alice", identity.Name)
	require.NotNil(t, identity.OperatorID)
	assert.Equal(t, "op-1", *identity.OperatorID)
}

func TestRegisterRejectsShortName(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Register("s1", domain.Identity{Name: " A "})
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_IDENTITY", domainErr.Code)

	// Failed registration leaves no binding behind.
	assert.Equal(t, 0, registry.Count())
}

func TestResolveUnregisteredReturnsPlaceholder(t *testing.T) {
	registry := NewRegistry()
	identity := registry.Resolve("nope")
	assert.Equal(t, domain.PlaceholderOperatorName, identity.Name)
	assert.True(t, identity.Legacy())
}

func TestReRegisterReplacesIdentity(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Register("s1", domain.Identity{Name: "Alice"})
	require.NoError(t, err)
	_, err = registry.Register("s1", domain.Identity{Name: "Alicia"})
	require.NoError(t, err)

	assert.Equal(t, "Alicia", registry.Resolve("s1").Name)
	assert.Equal(t, 1, registry.Count())
}

func TestUnregister(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Register("s1", domain.Identity{Name: "Alice"})
	require.NoError(t, err)

	registry.Unregister("s1")
	registry.Unregister("s1")

	_, ok := registry.Lookup("s1")
	assert.False(t, ok)
	assert.Equal(t, 0, registry.Count())
}

func TestFindByOperator(t *testing.T) {
	registry := NewRegistry()
	opID := "op-1"
	_, err := registry.Register("s1", domain.Identity{OperatorID: &opID, Name: "Alice"})
	require.NoError(t, err)
	_, err = registry.Register("s2", domain.Identity{OperatorID: &opID, Name: "Alice"})
	require.NoError(t, err)
	_, err = registry.Register("s3", domain.Identity{Name: "Bob"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"s1", "s2"}, registry.FindByOperator("op-1"))
	assert.Empty(t, registry.FindByOperator("op-9"))
}
