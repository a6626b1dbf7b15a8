//go:build integration

package audit

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nimbusworks/nimbus-migrate/pkg/testhelpers"
)

const auditPrefix = "audit_test"

func TestAuditorRun(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.CreateLegacyTables(t, testDB.DB, auditPrefix)
	testhelpers.TruncateAll(t, testDB.DB, auditPrefix)

	ctx := context.Background()
	exec := func(query string) {
		t.Helper()
		_, err := testDB.DB.Exec(ctx, query)
		require.NoError(t, err)
	}

	exec(fmt.Sprintf(`INSERT INTO public.%s_users (id, email, created_at)
		VALUES ('u1', 'john.doe@example.com', now()),
		       ('u2', 'johndoe@other.com', now()),
		       ('u3', NULL, now())`, auditPrefix))
	exec(fmt.Sprintf(`INSERT INTO public.%s_folders (id, folder_name, owner_id, parent_id, folder_type, created_at)
		VALUES ('f1', 'Top', 'u1', NULL, 'docs', now()),
		       ('f2', 'Child', 'u1', 'f1', 'docs', now()),
		       ('f3', 'Dangling', 'u1', 'missing', 'docs', now())`, auditPrefix))
	exec(fmt.Sprintf(`INSERT INTO public.%s_custom_documents (doc_id, owner_id, doc_type, created_at)
		VALUES ('d1', 'u1', 'pdf', now()),
		       ('d1', 'u1', 'pdf', now()),
		       ('d2', 'ghost', 'txt', now())`, auditPrefix))
	exec(fmt.Sprintf(`INSERT INTO public.%s_logs (id, user_id, chat_id, question, answer, token_amount, created_at)
		VALUES ('l1', 'u1', 'chat-1', '[{"value": "s"}, {"value": "q"}]', 'a', 10, now()),
		       ('l2', NULL, 'chat-2', NULL, 'orphan', NULL, now())`, auditPrefix))
	exec(fmt.Sprintf(`INSERT INTO public.%s (id, document, metadata, embeddings)
		VALUES ('c1', 'text', '{"type": "chunk-data", "doc_id": "d1"}', '[0.1]'),
		       ('c2', 'text', '{"type": "chunk-data", "doc_id": "d1"}', NULL)`, auditPrefix))

	auditor := NewAuditor(testDB.DB, auditPrefix, zap.NewNop())
	report, err := auditor.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)

	// Every audit query must execute cleanly against the legacy schema.
	for _, s := range report.Sections {
		for _, c := range s.Checks {
			assert.NoError(t, c.Err, "%s / %s", s.Name, c.Name)
		}
	}
	assert.False(t, report.Failed())

	var buf strings.Builder
	require.NoError(t, report.Render(&buf))
	out := buf.String()

	assert.Contains(t, out, "ROW COUNTS")
	assert.Contains(t, out, "DATA LOSS RISK")
	assert.Contains(t, out, "Source prefix: "+auditPrefix)
	assert.Contains(t, out, "vector rows")
}
