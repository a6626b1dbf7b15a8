//go:build integration

package source

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusworks/nimbus-migrate/pkg/testhelpers"
)

const readerPrefix = "reader_test"

func setupReaderTest(t *testing.T) *Reader {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)
	testhelpers.CreateLegacyTables(t, testDB.DB, readerPrefix)
	testhelpers.TruncateAll(t, testDB.DB, readerPrefix)

	ctx := context.Background()
	exec := func(query string, args ...any) {
		t.Helper()
		_, err := testDB.DB.Exec(ctx, query, args...)
		require.NoError(t, err)
	}

	exec(fmt.Sprintf(`INSERT INTO public.%s_users (id, email, created_at)
		VALUES ('u1', 'a@x.y', now()), ('u2', 'b@x.y', now()), ('u3', NULL, now())`, readerPrefix))

	exec(fmt.Sprintf(`INSERT INTO public.%s_logs (id, user_id, chat_id, answer, created_at)
		VALUES ('l1', 'u1', 'chat-1', 'first', now() - interval '3 hours'),
		       ('l2', 'u1', 'chat-1', 'second', now() - interval '2 hours'),
		       ('l3', 'u2', 'chat-2', 'other', now() - interval '1 hour'),
		       ('l4', NULL, 'chat-3', 'no owner', now()),
		       ('l5', 'u1', NULL, 'no chat', now())`, readerPrefix))

	exec(fmt.Sprintf(`INSERT INTO public.%s (id, document, metadata)
		VALUES ('c2', 'z', '{"type": "chunk-data", "doc_id": "d2"}'),
		       ('c1', 'x', '{"type": "chunk-data", "doc_id": "d1"}'),
		       ('c3', 'y', '{"type": "chunk-data", "doc_id": "d1"}'),
		       ('b1', 'bookkeeping', '{"type": "index-info"}')`, readerPrefix))

	return NewReader(testDB.DB, readerPrefix)
}

func TestReaderCount(t *testing.T) {
	r := setupReaderTest(t)
	ctx := context.Background()

	n, err := r.Count(ctx, TableUsers)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// Count is physical rows; the bookkeeping row still counts here.
	n, err = r.Count(ctx, TableChunks)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	_, err = r.Count(ctx, "projects")
	assert.Error(t, err)
}

func TestReaderUsersPaging(t *testing.T) {
	r := setupReaderTest(t)
	ctx := context.Background()

	first, err := r.Users(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "u1", *first[0].ID)
	assert.Equal(t, "u2", *first[1].ID)

	second, err := r.Users(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "u3", *second[0].ID)
	assert.Nil(t, second[0].Email)
}

func TestReaderChatKeys(t *testing.T) {
	r := setupReaderTest(t)

	keys, err := r.ChatKeys(context.Background(), 0, 100)
	require.NoError(t, err)

	// Rows without a user or chat key are excluded at the source.
	assert.ElementsMatch(t, []string{"chat-1", "chat-2"}, keys)
}

func TestReaderLogRowsOrdered(t *testing.T) {
	r := setupReaderTest(t)

	rows, err := r.LogRows(context.Background(), "chat-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "l1", *rows[0].ID)
	assert.Equal(t, "l2", *rows[1].ID)
}

func TestReaderChunksGroupedByDocument(t *testing.T) {
	r := setupReaderTest(t)

	// The index bookkeeping row is not selected at all: only rows tagged
	// chunk-data are chunks.
	rows, err := r.Chunks(context.Background(), 0, 100)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Ordered by document reference then row id, so a run counter can
	// assign per-document indexes.
	assert.Equal(t, "c1", *rows[0].ID)
	assert.Equal(t, "c3", *rows[1].ID)
	assert.Equal(t, "c2", *rows[2].ID)
}
