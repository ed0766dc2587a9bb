package chunks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	"github.com/yungbote/agentwriter-backend/internal/data/repos/testutil"
	types "github.com/yungbote/agentwriter-backend/internal/domain"
	domain "github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/openai"
	"github.com/yungbote/agentwriter-backend/internal/platform/qdrant"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

type fakeEmbedder struct {
	err      error
	failNext int
}

func (f *fakeEmbedder) GenerateText(context.Context, string, string) (string, openai.Usage, error) {
	return "", openai.Usage{}, nil
}

func (f *fakeEmbedder) GenerateJSON(context.Context, string, string, any) (openai.Usage, error) {
	return openai.Usage{}, nil
}

func (f *fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, openai.Usage, error) {
	if f.err != nil {
		return nil, openai.Usage{}, f.err
	}
	if f.failNext > 0 {
		f.failNext--
		return nil, openai.Usage{}, errors.New("embedding provider timeout")
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{float32(i), 1}
	}
	return out, openai.Usage{Model: "embed", InputTokens: int64(len(inputs) * 10)}, nil
}

type fakeVectors struct {
	mu     sync.Mutex
	points map[string]map[string]qdrant.Chunk
}

func (f *fakeVectors) Upsert(_ context.Context, ns string, chunks []qdrant.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.points == nil {
		f.points = map[string]map[string]qdrant.Chunk{}
	}
	if f.points[ns] == nil {
		f.points[ns] = map[string]qdrant.Chunk{}
	}
	for _, c := range chunks {
		f.points[ns][c.ID] = c
	}
	return nil
}

func (f *fakeVectors) Search(context.Context, string, []float32, int) ([]qdrant.Match, error) {
	return nil, nil
}

type countingBilling struct{ llm int }

func (b *countingBilling) RecordLLM(context.Context, uuid.UUID, openai.Usage)  { b.llm++ }
func (b *countingBilling) RecordWebSearch(context.Context, uuid.UUID, string) {}
func (b *countingBilling) Close(context.Context) error                        { return nil }

type harness struct {
	ctx      context.Context
	db       *gorm.DB
	repos    *repos.Repos
	registry *jobs.Registry
	vectors  *fakeVectors
	embedder *fakeEmbedder
	billing  *countingBilling
	handler  *Save
	deps     Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	h := &harness{
		ctx:      context.Background(),
		db:       db,
		repos:    r,
		registry: jobs.NewRegistry(r.JobRun, log),
		vectors:  &fakeVectors{},
		embedder: &fakeEmbedder{},
		billing:  &countingBilling{},
	}
	h.deps = Deps{
		Log:     log,
		Repos:   r,
		Tracker: services.NewStatusTracker(db, r, nil, log),
		Billing: h.billing,
		LLM:     h.embedder,
		Vectors: h.vectors,
	}
	require.NoError(t, Register(h.registry, h.deps))
	h.handler = NewSave(h.deps)
	return h
}

func (h *harness) dbc() dbctx.Context { return dbctx.Context{Ctx: h.ctx} }

func (h *harness) seedDocument(t *testing.T, hash string) *types.Agent {
	t.Helper()
	a := testutil.SeedAgent(t, h.ctx, h.db, uuid.New())
	require.NoError(t, h.repos.Agent.SetBrandDocument(h.dbc(), a.ID, "# Voice\n\nPlain words.", hash, domain.BrandProcessing))
	return h.agent(t, a.ID)
}

func (h *harness) enqueue(t *testing.T, a *types.Agent, hash string, batch, total int, texts ...string) {
	t.Helper()
	chunks := make([]contract.ChunkText, len(texts))
	for i, s := range texts {
		chunks[i] = contract.ChunkText{Index: batch*10 + i, Text: s}
	}
	_, err := h.registry.Enqueue(h.ctx, contract.QueueChunksSave, queue.AddRequest{
		OwnerUserID: a.UserID,
		EntityType:  contract.EntityAgent,
		EntityID:    a.ID,
		Key:         contract.ChunkJobKey(a.ID, hash, batch),
		Payload: contract.ChunkSavePayload{
			AgentID:      a.ID,
			UserID:       a.UserID,
			DocumentHash: hash,
			Batch:        batch,
			TotalBatches: total,
			Chunks:       chunks,
		},
	})
	require.NoError(t, err)
}

func (h *harness) runAll(t *testing.T) (errs []error) {
	t.Helper()
	for {
		job, err := h.repos.JobRun.ClaimNext(h.dbc(), contract.QueueChunksSave)
		require.NoError(t, err)
		if job == nil {
			return errs
		}
		runErr := h.handler.Run(runtime.NewContext(h.ctx, job, h.deps.Log, h.registry))
		if runErr != nil {
			errs = append(errs, runErr)
			_, err = h.repos.JobRun.Fail(h.dbc(), job.ID, job.Attempts, runErr.Error())
		} else {
			_, err = h.repos.JobRun.Complete(h.dbc(), job.ID, job.Attempts, nil)
		}
		require.NoError(t, err)
	}
}

func (h *harness) agent(t *testing.T, id uuid.UUID) *types.Agent {
	t.Helper()
	a, err := h.repos.Agent.GetByID(h.dbc(), id)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a
}

func TestLastBatchMarksBrandReady(t *testing.T) {
	h := newHarness(t)
	a := h.seedDocument(t, "h1")
	h.enqueue(t, a, "h1", 0, 2, "first", "second")
	h.enqueue(t, a, "h1", 1, 2, "third")

	assert.Empty(t, h.runAll(t))
	got := h.agent(t, a.ID)
	assert.Equal(t, domain.BrandReady, got.BrandStatus)

	ns := h.vectors.points[contract.BrandNamespace(a.ID)]
	require.Len(t, ns, 3)
	p := ns[ChunkID(10)]
	assert.Equal(t, "third", p.Text)
	assert.Equal(t, "h1", p.Metadata["document_hash"])
	assert.Equal(t, a.ID.String(), p.Metadata["agent_id"])
	assert.Equal(t, 2, h.billing.llm)
}

func TestSupersededDocumentIsSkipped(t *testing.T) {
	h := newHarness(t)
	a := h.seedDocument(t, "h1")
	h.enqueue(t, a, "h1", 0, 1, "old")
	require.NoError(t, h.repos.Agent.SetBrandDocument(h.dbc(), a.ID, "# New voice", "h2", domain.BrandProcessing))

	assert.Empty(t, h.runAll(t))
	assert.Empty(t, h.vectors.points)
	assert.Equal(t, domain.BrandProcessing, h.agent(t, a.ID).BrandStatus)
}

func TestPermanentEmbeddingFailureFailsBrand(t *testing.T) {
	h := newHarness(t)
	h.embedder.err = openai.ErrEmptyOutput
	a := h.seedDocument(t, "h1")
	h.enqueue(t, a, "h1", 0, 1, "only")

	errs := h.runAll(t)
	require.Len(t, errs, 1)
	assert.True(t, runtime.IsPermanent(errs[0]))
	got := h.agent(t, a.ID)
	assert.Equal(t, domain.BrandFailed, got.BrandStatus)
	assert.Equal(t, failureMessage, got.BrandMessage)
}

func TestChunkSavingIsRateLimited(t *testing.T) {
	opts := Options()
	assert.Equal(t, 2, opts.Concurrency)
	assert.Equal(t, 5, opts.RateLimit.Max)
	assert.True(t, opts.RateLimit.Enabled())
}

func (h *harness) runOne(t *testing.T, retryAt time.Time) error {
	t.Helper()
	job, err := h.repos.JobRun.ClaimNext(h.dbc(), contract.QueueChunksSave)
	require.NoError(t, err)
	require.NotNil(t, job)
	runErr := h.handler.Run(runtime.NewContext(h.ctx, job, h.deps.Log, h.registry))
	if runErr != nil {
		_, err = h.repos.JobRun.Retry(h.dbc(), job.ID, job.Attempts, runErr.Error(), retryAt)
	} else {
		_, err = h.repos.JobRun.Complete(h.dbc(), job.ID, job.Attempts, nil)
	}
	require.NoError(t, err)
	return runErr
}

func TestBrandReadyWaitsForEveryBatch(t *testing.T) {
	h := newHarness(t)
	a := h.seedDocument(t, "h1")
	h.enqueue(t, a, "h1", 0, 2, "first", "second")
	h.enqueue(t, a, "h1", 1, 2, "third")

	// Batch 0 fails transiently and is retried after the last batch finished.
	h.embedder.failNext = 1
	require.Error(t, h.runOne(t, time.Now().UTC().Add(time.Hour)))
	require.NoError(t, h.runOne(t, time.Now().UTC()))
	assert.Equal(t, domain.BrandProcessing, h.agent(t, a.ID).BrandStatus)

	require.NoError(t, h.db.Model(&types.JobRun{}).
		Where("job_key = ?", contract.ChunkJobKey(a.ID, "h1", 0)).
		Update("run_after", time.Now().UTC().Add(-time.Second)).Error)
	require.NoError(t, h.runOne(t, time.Now().UTC()))
	assert.Equal(t, domain.BrandReady, h.agent(t, a.ID).BrandStatus)
	assert.Len(t, h.vectors.points[contract.BrandNamespace(a.ID)], 3)
}

func TestRedeliveredBatchAfterReadyIsSkipped(t *testing.T) {
	h := newHarness(t)
	a := h.seedDocument(t, "h1")
	h.enqueue(t, a, "h1", 0, 1, "only")
	assert.Empty(t, h.runAll(t))
	require.Equal(t, domain.BrandReady, h.agent(t, a.ID).BrandStatus)
	calls := h.billing.llm

	job, err := h.repos.JobRun.GetByKey(h.dbc(), contract.QueueChunksSave, contract.ChunkJobKey(a.ID, "h1", 0))
	require.NoError(t, err)
	require.NoError(t, h.handler.Run(runtime.NewContext(h.ctx, job, h.deps.Log, h.registry)))
	assert.Equal(t, calls, h.billing.llm)
	assert.Equal(t, domain.BrandReady, h.agent(t, a.ID).BrandStatus)
}

func TestEmbedderPanicFailsBrandOnFinalAttempt(t *testing.T) {
	h := newHarness(t)
	a := h.seedDocument(t, "h1")
	h.enqueue(t, a, "h1", 0, 1, "only")
	job, err := h.repos.JobRun.ClaimNext(h.dbc(), contract.QueueChunksSave)
	require.NoError(t, err)
	job.Attempts = job.MaxAttempts

	h.deps.LLM = &panickingEmbedder{}
	jc := runtime.NewContext(h.ctx, job, h.deps.Log, h.registry)
	err = NewSave(h.deps).Run(jc)
	require.Error(t, err)
	assert.True(t, jc.EntityFailed())
	got := h.agent(t, a.ID)
	assert.Equal(t, domain.BrandFailed, got.BrandStatus)
	assert.Equal(t, failureMessage, got.BrandMessage)
}

type panickingEmbedder struct{ fakeEmbedder }

func (panickingEmbedder) Embed(context.Context, []string) ([][]float32, openai.Usage, error) {
	panic("embedder exploded")
}
