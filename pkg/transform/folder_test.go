package transform

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusworks/nimbus-migrate/pkg/models"
)

func resolverFor(keys map[string]uuid.UUID) Resolver {
	return func(key string) (uuid.UUID, bool) {
		id, ok := keys[key]
		return id, ok
	}
}

func TestFolderTypeFor(t *testing.T) {
	tests := []struct {
		legacy   string
		expected string
		known    bool
	}{
		{"", FolderTypeDefault, true},
		{"default", FolderTypeDefault, true},
		{"custom", FolderTypeDefault, true},
		{"docs", FolderTypeDocuments, true},
		{"documents", FolderTypeDocuments, true},
		{"bots", FolderTypeAgents, true},
		{"agents", FolderTypeAgents, true},
		{"chat", FolderTypeChats, true},
		{"chats", FolderTypeChats, true},
		{"workspace", FolderTypeDefault, false},
	}

	for _, tt := range tests {
		t.Run("tag "+tt.legacy, func(t *testing.T) {
			got, known := FolderTypeFor(tt.legacy)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestFolderSkips(t *testing.T) {
	ownerID := uuid.New()
	ctx := testContext()
	ctx.ResolveUser = resolverFor(map[string]uuid.UUID{"owner-1": ownerID})

	t.Run("missing id", func(t *testing.T) {
		_, skip, _ := Folder(&models.LegacyFolder{OwnerID: strPtr("owner-1")}, ctx)
		assert.Equal(t, SkipMissingRequired, skip)
	})

	t.Run("missing owner", func(t *testing.T) {
		_, skip, _ := Folder(&models.LegacyFolder{ID: strPtr("f1")}, ctx)
		assert.Equal(t, SkipNoOwner, skip)
	})

	t.Run("unresolved owner", func(t *testing.T) {
		row := &models.LegacyFolder{ID: strPtr("f1"), OwnerID: strPtr("ghost")}
		_, skip, _ := Folder(row, ctx)
		assert.Equal(t, SkipNoOwner, skip)
	})
}

func TestFolderDerivedIdentity(t *testing.T) {
	ownerID := uuid.New()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := testContext()
	ctx.ResolveUser = resolverFor(map[string]uuid.UUID{"owner-1": ownerID})

	row := &models.LegacyFolder{
		ID:         strPtr("f-100"),
		FolderName: strPtr("Reports"),
		OwnerID:    strPtr("owner-1"),
		ParentID:   strPtr("f-99"),
		FolderType: strPtr("docs"),
		CreatedAt:  &created,
	}

	folder, skip, flags := Folder(row, ctx)
	require.Equal(t, SkipNone, skip)
	assert.Empty(t, flags)

	assert.Equal(t, ctx.Mapper.FolderID("f-100"), folder.ID)
	require.NotNil(t, folder.ParentID)
	assert.Equal(t, ctx.Mapper.FolderID("f-99"), *folder.ParentID)
	assert.Equal(t, FolderTypeDocuments, folder.FolderType)
	assert.Equal(t, ownerID, folder.UserID)
	assert.Equal(t, created, folder.CreatedAt)
	assert.Equal(t, "f-100", folder.LegacyID)
	assert.Equal(t, "owner-1", folder.LegacyOwnerID)

	// Rerunning yields the same folder UUID.
	again, _, _ := Folder(row, ctx)
	assert.Equal(t, folder.ID, again.ID)
}

func TestFolderFlattenPolicy(t *testing.T) {
	ctx := testContext()
	ctx.ResolveUser = resolverFor(map[string]uuid.UUID{"o": uuid.New()})
	ctx.FlattenFolders = true

	row := &models.LegacyFolder{
		ID:       strPtr("f1"),
		OwnerID:  strPtr("o"),
		ParentID: strPtr("f0"),
	}
	folder, skip, _ := Folder(row, ctx)
	require.Equal(t, SkipNone, skip)
	assert.Nil(t, folder.ParentID, "flattening drops parent references")
}

func TestFolderUnknownTypeFlagged(t *testing.T) {
	ctx := testContext()
	ctx.ResolveUser = resolverFor(map[string]uuid.UUID{"o": uuid.New()})

	row := &models.LegacyFolder{
		ID:         strPtr("f1"),
		OwnerID:    strPtr("o"),
		FolderType: strPtr("workspace"),
	}
	folder, skip, flags := Folder(row, ctx)
	require.Equal(t, SkipNone, skip)
	assert.Equal(t, FolderTypeDefault, folder.FolderType)
	assert.Contains(t, flags, FlagUnknownFolderType)
	assert.Contains(t, flags, FlagMissingTimestamp)
}
