package dedupe

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Postgres when DEDUPE_TEST_DATABASE_URL is set
func TestTrackerRecord(t *testing.T) {
	url := os.Getenv("DEDUPE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DEDUPE_TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	tracker, err := NewTracker(ctx, db, nil)
	require.NoError(t, err)

	contentID := uuid.NewString()
	n, err := tracker.GetSeenCount(ctx, contentID, "study")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for want := 1; want <= 3; want++ {
		n, err = tracker.Record(ctx, contentID, "study", 1)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	// other pipelines count separately
	n, err = tracker.Record(ctx, contentID, "ocr_only", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
