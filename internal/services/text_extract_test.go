package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	"github.com/yungbote/coursebuilder-backend/internal/data/repos/testutil"
	"github.com/yungbote/coursebuilder-backend/internal/domain/billing"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	"github.com/yungbote/coursebuilder-backend/internal/platform/pdftext"
)

// memBlobs serves fixed bytes for every key.
type memBlobs struct {
	data []byte
}

func (m memBlobs) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	return errors.New("read only")
}

func (m memBlobs) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

func (m memBlobs) Delete(ctx context.Context, key string) error { return nil }
func (m memBlobs) PublicURL(key string) string                  { return "mem://" + key }
func (m memBlobs) Close() error                                 { return nil }

func TestExtractCorruptPDFFailsUploadAndGeneration(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := testutil.DBC(tx)
	log := testutil.Logger(t)

	uploads := repos.NewPdfUploadRepo(tx, log)
	ext := NewExtractionService(log, uploads, memBlobs{data: []byte("%PDF-1.4\nnot really a pdf")},
		pdftext.NewExtractor(log, nil), 1<<20)

	u := testutil.SeedUser(t, ctx, tx, "user_extract_"+uuid.NewString()[:8], "biz_extract")
	sub := testutil.SeedSubscription(t, ctx, tx, u.ID, "biz_extract", 10, 1)
	up := testutil.SeedUpload(t, ctx, tx, u.ID, nil)

	_, err := ext.Extract(dbc, up.ID)
	require.Error(t, err)
	var xe *pdftext.ExtractionError
	require.ErrorAs(t, err, &xe)

	got, err := uploads.GetByID(dbc, up.ID)
	require.NoError(t, err)
	require.Equal(t, course.ExtractionFailed, got.ExtractionStatus)
	require.NotEmpty(t, got.ExtractionError)
	require.Nil(t, got.ExtractedText)

	gens := repos.NewCourseGenerationRepo(tx, log)
	events := repos.NewUsageEventRepo(tx, log)
	g := testutil.SeedGeneration(t, ctx, tx, u.ID, sub.ID, up.ID, course.StatusProcessing)
	generator := &fakeGenerator{}
	p := NewGenerationPipeline(tx, log, DefaultPipelineConfig(), gens, uploads, repos.NewCourseTreeRepo(tx, log), events,
		ext, generator, NewGenerationNotifier(nil, log))

	_, err = p.Run(context.Background(), g.ID, nil)
	require.Error(t, err)
	require.Zero(t, generator.calls)

	failed, err := gens.GetByID(dbc, g.ID)
	require.NoError(t, err)
	require.Equal(t, course.StatusFailed, failed.Status)
	require.NotEmpty(t, failed.ErrorMessage)

	evs, err := events.ListByGeneration(dbc, g.ID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, billing.EventGenerationFailed, evs[0].EventType)
}
