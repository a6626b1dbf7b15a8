package transform

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusworks/nimbus-migrate/pkg/identity"
	"github.com/nimbusworks/nimbus-migrate/pkg/models"
)

var testOrg = uuid.MustParse("356b50f7-bcbd-42aa-9392-e1605f42f7a1")

func testContext() *Context {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &Context{
		Mapper:         identity.NewMapper(identity.DefaultNamespace),
		Organization:   testOrg,
		TitleMaxLength: 120,
		Now:            func() time.Time { return fixed },
	}
}

func TestUserRequiresEmail(t *testing.T) {
	tests := []struct {
		name  string
		email *string
	}{
		{"nil email", nil},
		{"empty email", strPtr("")},
		{"whitespace email", strPtr("   ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := &models.LegacyUser{ID: strPtr("u1"), Email: tt.email}
			user, skip, _ := User(row, testContext())
			assert.Nil(t, user)
			assert.Equal(t, SkipMissingRequired, skip)
		})
	}
}

func TestUserBasicFields(t *testing.T) {
	created := time.Date(2023, 3, 14, 9, 0, 0, 0, time.UTC)
	tokens := 1234.7
	row := &models.LegacyUser{
		ID:        strPtr("legacy-7"),
		Email:     strPtr("  Ada.Lovelace@example.com "),
		Name:      strPtr("Ada"),
		LastName:  strPtr("Lovelace"),
		TokenUsed: &tokens,
		Model:     json.RawMessage(`{'name': 'gpt-4'}`),
		CreatedAt: &created,
	}

	ctx := testContext()
	user, skip, flags := User(row, ctx)
	require.Equal(t, SkipNone, skip)
	require.NotNil(t, user)
	assert.Empty(t, flags)

	assert.Equal(t, "Ada.Lovelace@example.com", user.Email)
	assert.Equal(t, "Ada", *user.FirstName)
	assert.Equal(t, "Lovelace", *user.LastName)
	assert.Equal(t, "legacy-7", user.LegacyID)
	assert.Equal(t, testOrg, user.OrganizationID)
	assert.False(t, user.IsOwner)
	assert.Equal(t, created, user.CreatedAt)
	assert.NotEqual(t, uuid.Nil, user.ID)

	require.NotNil(t, user.Username)
	assert.Equal(t, "adalovelace", *user.Username)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(user.Metadata, &meta))
	legacy, ok := meta[models.LegacyDataKey].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "legacy-7", legacy["id"])
	assert.Equal(t, "1234", legacy["token_used"], "numeric columns stringified whole")
	model, ok := legacy["model"].(map[string]any)
	require.True(t, ok, "single-quoted model blob recovered")
	assert.Equal(t, "gpt-4", model["name"])
}

func TestUserMissingTimestampFlagged(t *testing.T) {
	row := &models.LegacyUser{Email: strPtr("a@b.c")}
	ctx := testContext()

	user, skip, flags := User(row, ctx)
	require.Equal(t, SkipNone, skip)
	assert.Contains(t, flags, FlagMissingTimestamp)
	assert.Equal(t, ctx.Now(), user.CreatedAt)
}

func TestUsernameFromEmail(t *testing.T) {
	tests := []struct {
		email    string
		expected string
	}{
		{"John.Doe@corp.com", "johndoe"},
		{"UPPER@x.y", "upper"},
		{"no.at.sign", "noatsign"},
		{"a.b.c@d", "abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, usernameFromEmail(tt.email), tt.email)
	}
}
