package transform

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nimbusworks/nimbus-migrate/pkg/models"
)

// User converts a legacy user row into a target user. Email is the natural
// key and structurally required: rows without one are skipped. Every legacy
// field that has no target column is preserved under the legacyData
// metadata key for forensic recovery.
func User(row *models.LegacyUser, ctx *Context) (*models.User, SkipReason, []string) {
	var flags []string

	email := cleanString(row.Email)
	if email == nil {
		return nil, SkipMissingRequired, nil
	}

	legacyID := stringOrEmpty(row.ID)

	createdAt := ctx.now()
	if row.CreatedAt != nil {
		createdAt = *row.CreatedAt
	} else {
		flags = append(flags, FlagMissingTimestamp)
	}

	legacyData := map[string]any{
		"id":                     nullable(cleanString(row.ID)),
		"job":                    nullable(cleanString(row.Job)),
		"model":                  looseJSONValue(row.Model),
		"group_id":               nullable(cleanString(row.GroupID)),
		"azure_oid":              nullable(cleanString(row.AzureOID)),
		"department":             nullable(cleanString(row.Department)),
		"token_used":             strconv.FormatInt(intFromFloat(row.TokenUsed), 10),
		"words_used":             strconv.FormatInt(intFromFloat(row.WordsUsed), 10),
		"subfeatures":            looseJSONValue(row.Subfeatures),
		"token_limit":            nullable(cleanString(row.TokenLimit)),
		"company_name":           nullable(cleanString(row.CompanyName)),
		"phone_number":           nullable(cleanString(row.PhoneNumber)),
		"last_connected":         strconv.FormatInt(intFromFloat(row.LastConnected), 10),
		"letter_checkbox":        nullable(cleanString(row.LetterCheckbox)),
		"times_connected":        strconv.FormatInt(intFromFloat(row.TimesConnected), 10),
		"enabled_features":       looseJSONValue(row.EnabledFeatures),
		"history_categories":     looseJSONValue(row.HistoryCategories),
		"company_name_in_hebrew": nullable(cleanString(row.CompanyNameHebrew)),
	}

	username := usernameFromEmail(*email)

	user := &models.User{
		ID:             uuid.New(),
		Email:          *email,
		FirstName:      cleanString(row.Name),
		LastName:       cleanString(row.LastName),
		Username:       &username,
		Metadata:       mustJSON(map[string]any{models.LegacyDataKey: legacyData}),
		OrganizationID: ctx.Organization,
		IsOwner:        false,
		CreatedAt:      createdAt,
		UpdatedAt:      ctx.now(),
		LegacyID:       legacyID,
	}
	return user, SkipNone, flags
}

// usernameFromEmail derives a username from the email local part,
// lowercased with dots removed.
func usernameFromEmail(email string) string {
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	return strings.ReplaceAll(strings.ToLower(local), ".", "")
}

// nullable converts a *string into a JSON-friendly value (nil stays null).
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
