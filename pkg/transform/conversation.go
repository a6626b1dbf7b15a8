package transform

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusworks/nimbus-migrate/pkg/models"
)

// Turn is the pair of messages (plus content blocks) produced from one
// legacy log row: the user's question and the assistant's answer.
type Turn struct {
	UserMessage      models.Message
	UserBlock        models.ContentBlock
	AssistantMessage models.Message
	AssistantBlock   models.ContentBlock
}

// ConversationAggregate is the full output of folding one chat group.
type ConversationAggregate struct {
	Conversation models.Conversation
	Turns        []Turn
}

// Conversation folds the legacy log rows sharing one chat key into a
// conversation plus its ordered messages and content blocks.
//
// Rows are ordered by timestamp ascending, ties broken by legacy row id, so
// the fold is fully deterministic. Aggregates are computed, never copied:
// message_count is exactly twice the row count, total_tokens sums the
// per-row usage with nulls as zero, and the conversation timestamps come
// from the first and last rows. A failed question extraction still yields a
// user message with empty text; it must not change any count.
func Conversation(chatKey string, rows []*models.LegacyLogRow, ctx *Context) (*ConversationAggregate, SkipReason, []string) {
	var flags []string

	if len(rows) == 0 {
		return nil, SkipMalformed, nil
	}

	ownerKey := firstOwner(rows)
	if ownerKey == "" {
		return nil, SkipNoOwner, nil
	}
	userID, ok := ctx.resolveUser(ownerKey)
	if !ok {
		return nil, SkipNoOwner, nil
	}

	ordered := make([]*models.LegacyLogRow, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		ti, tj := ordered[i].CreatedAt, ordered[j].CreatedAt
		switch {
		case ti == nil && tj == nil:
			return stringOrEmpty(ordered[i].ID) < stringOrEmpty(ordered[j].ID)
		case ti == nil:
			return false // rows without timestamps sort last
		case tj == nil:
			return true
		case ti.Equal(*tj):
			return stringOrEmpty(ordered[i].ID) < stringOrEmpty(ordered[j].ID)
		default:
			return ti.Before(*tj)
		}
	})

	firstTS, lastTS := timestampBounds(ordered)
	if firstTS == nil {
		// No row in the group carries a usable timestamp; there is nothing
		// defensible to order or date, so the whole group is skipped.
		return nil, SkipMalformed, []string{FlagMissingTimestamp}
	}

	convID := ctx.Mapper.ConversationID(chatKey)

	var (
		turns       []Turn
		totalTokens int64
		prevAssist  *uuid.UUID
	)
	for _, row := range ordered {
		ts := *lastTS
		if row.CreatedAt != nil {
			ts = *row.CreatedAt
		} else {
			flags = append(flags, FlagMissingTimestamp)
		}

		if row.TokenAmount != nil {
			totalTokens += *row.TokenAmount
		} else {
			flags = append(flags, FlagMissingTokens)
		}

		question, extracted := extractQuestion(row)
		if !extracted {
			flags = append(flags, FlagQuestionExtraction)
		}

		turn := buildTurn(row, convID, userID, ts, question, prevAssist, ctx)
		id := turn.AssistantMessage.ID
		prevAssist = &id
		turns = append(turns, turn)
	}

	title := conversationTitle(ordered, ctx)

	agg := &ConversationAggregate{
		Conversation: models.Conversation{
			ID:               convID,
			Title:            title,
			MessageCount:     2 * len(ordered),
			TotalTokens:      totalTokens,
			IsActive:         true,
			UserID:           userID,
			CreatedAt:        *firstTS,
			UpdatedAt:        *lastTS,
			LastInteractedAt: *lastTS,
			LegacyChatID:     chatKey,
			LegacyOwnerID:    ownerKey,
		},
		Turns: turns,
	}
	return agg, SkipNone, flags
}

func firstOwner(rows []*models.LegacyLogRow) string {
	for _, row := range rows {
		if owner := cleanString(row.UserID); owner != nil {
			return *owner
		}
	}
	return ""
}

func timestampBounds(ordered []*models.LegacyLogRow) (first, last *time.Time) {
	for _, row := range ordered {
		if row.CreatedAt == nil {
			continue
		}
		ts := *row.CreatedAt
		if first == nil || ts.Before(*first) {
			t := ts
			first = &t
		}
		if last == nil || ts.After(*last) {
			t := ts
			last = &t
		}
	}
	return first, last
}

// extractQuestion pulls the user's utterance from the nested question
// history. The question column stores an array of turn objects; by legacy
// convention the current user utterance is the second element's value.
// Falls back to the pre-translated question text, then to empty.
func extractQuestion(row *models.LegacyLogRow) (string, bool) {
	var history []struct {
		Value string `json:"value"`
	}
	if looseJSON(row.Question, &history) && len(history) > 1 && history[1].Value != "" {
		return history[1].Value, true
	}
	if english := cleanString(row.QuestionInEnglish); english != nil {
		return *english, true
	}
	return "", false
}

// conversationTitle picks the display title: the latest explicit legacy
// title if one exists, otherwise the first row's extracted question,
// bounded to the configured display length. Untitled stays nil.
func conversationTitle(ordered []*models.LegacyLogRow, ctx *Context) *string {
	for i := len(ordered) - 1; i >= 0; i-- {
		if title := cleanString(ordered[i].Title); title != nil {
			return title
		}
	}
	if question, ok := extractQuestion(ordered[0]); ok && question != "" {
		t := truncate(question, ctx.TitleMaxLength)
		return &t
	}
	return nil
}

func buildTurn(row *models.LegacyLogRow, convID, userID uuid.UUID, ts time.Time, question string, prevAssist *uuid.UUID, ctx *Context) Turn {
	logID := stringOrEmpty(row.ID)
	userMsgID := ctx.Mapper.UserMessageID(logID)
	assistMsgID := ctx.Mapper.AssistantMessageID(logID)

	// The user turn precedes the assistant turn from the same row; the
	// legacy schema only stamped the row once, so the user side is backdated
	// by one second to keep strict chronological order.
	userTS := ts.Add(-time.Second)

	stop := "stop"

	userMsg := models.Message{
		ID:                userMsgID,
		ConversationID:    convID,
		ParentMessageID:   prevAssist,
		Role:              models.RoleUser,
		IterationCount:    1,
		ContentBlockCount: 1,
		UserID:            userID,
		Metadata:          json.RawMessage(`{}`),
		CreatedAt:         userTS,
		UpdatedAt:         userTS,
	}

	assistMsg := models.Message{
		ID:                assistMsgID,
		ConversationID:    convID,
		ParentMessageID:   &userMsgID,
		Role:              models.RoleAssistant,
		IterationCount:    1,
		ContentBlockCount: 1,
		FinishReason:      &stop,
		UserID:            userID,
		Metadata:          assistantMetadata(row),
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}

	return Turn{
		UserMessage:      userMsg,
		UserBlock:        contentBlock(ctx.Mapper.UserBlockID(logID), userMsgID, models.RoleUser, question, nil, userTS),
		AssistantMessage: assistMsg,
		AssistantBlock: contentBlock(
			ctx.Mapper.AssistantBlockID(logID), assistMsgID, models.RoleAssistant,
			stringOrEmpty(row.Answer), row.CalculatedTime, ts),
	}
}

func contentBlock(id, messageID uuid.UUID, role, text string, execMS *int64, ts time.Time) models.ContentBlock {
	return models.ContentBlock{
		ID:        id,
		MessageID: messageID,
		Sequence:  0,
		Type:      models.ContentBlockTypeMessage,
		Content: mustJSON(map[string]any{
			"role": role,
			"type": models.ContentBlockTypeMessage,
			"content": []map[string]any{
				{"text": text, "type": "text"},
			},
		}),
		ExecutionTimeMS: execMS,
		CreatedAt:       ts,
	}
}

// assistantMetadata packs the per-turn accounting and toolkit fields into
// the assistant message metadata, legacy leftovers under legacyData.
func assistantMetadata(row *models.LegacyLogRow) json.RawMessage {
	var toolkit map[string]any
	looseJSON(row.ToolkitSettings, &toolkit)

	var modelName any
	if toolkit != nil {
		if m, ok := toolkit["model"]; ok {
			modelName = m
		}
	}

	meta := map[string]any{
		"model":           modelName,
		"type":            nullable(cleanString(row.Type)),
		"bot_id":          nullable(cleanString(row.BotID)),
		"is_like":         looseJSONValue(row.IsLike),
		"token_amount":    nullableInt(row.TokenAmount),
		"words_amount":    nullableInt(row.WordsAmount),
		"calculated_time": nullableInt(row.CalculatedTime),
		"category":        nullable(cleanString(row.Category)),
		"sentiment":       nullable(cleanString(row.Sentiment)),
		models.LegacyDataKey: map[string]any{
			"legacy_log_id":      nullable(cleanString(row.ID)),
			"title":              nullable(cleanString(row.Title)),
			"toolkit_settings":   toolkit,
			"sourcetext":         nullable(cleanString(row.SourceText)),
			"sourcelink":         nullable(cleanString(row.SourceLink)),
			"webpagelink":        nullable(cleanString(row.WebpageLink)),
			"documents_selected": nullable(cleanString(row.DocumentsSelected)),
		},
	}
	return mustJSON(meta)
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
