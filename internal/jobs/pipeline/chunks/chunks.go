package chunks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	domain "github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/provider"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/platform/openai"
	"github.com/yungbote/agentwriter-backend/internal/platform/qdrant"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

const (
	failureMessage   = "brand document processing failed"
	failWriteTimeout = 10 * time.Second
)

type Deps struct {
	Log     *logger.Logger
	Repos   *repos.Repos
	Tracker services.StatusTracker
	Billing services.BillingNotifier
	LLM     openai.Client
	Vectors qdrant.Store
}

// Save embeds one batch of brand-document chunks into the agent's vector
// namespace. Whichever batch completes the set marks the brand document ready.
type Save struct {
	deps Deps
	log  *logger.Logger
}

func NewSave(deps Deps) *Save {
	return &Save{deps: deps, log: deps.Log.With("component", "ChunkSaveWorker")}
}

func (h *Save) Queue() string { return contract.QueueChunksSave }

// Options is the queue tuning chunk saving runs with: a small pool under a
// start-rate cap to stay inside embedding provider limits.
func Options() queue.Options {
	return queue.Options{
		Name:        contract.QueueChunksSave,
		Concurrency: 2,
		RateLimit:   queue.RateLimit{Max: 5, Per: time.Second},
		Timeout:     2 * time.Minute,
	}
}

func Register(reg *jobs.Registry, deps Deps) error {
	if err := reg.Register(Options(), NewSave(deps)); err != nil {
		return fmt.Errorf("register %s: %w", contract.QueueChunksSave, err)
	}
	return nil
}

func ChunkID(index int) string { return fmt.Sprintf("brand:%d", index) }

func (h *Save) Run(jc *runtime.Context) error {
	var p contract.ChunkSavePayload
	if err := jc.Decode(&p); err != nil {
		return err
	}
	log := h.log.With("agent_id", p.AgentID, "document_hash", p.DocumentHash, "batch", p.Batch, "total_batches", p.TotalBatches, "attempt", jc.Attempt())
	dbc := dbctx.Context{Ctx: jc.Ctx}

	a, err := h.deps.Repos.Agent.GetByID(dbc, p.AgentID)
	if err != nil {
		err = fmt.Errorf("load agent: %w", err)
		h.fail(jc, p, log, err)
		return err
	}
	switch {
	case a == nil:
		log.Info("agent no longer exists, skipping")
		return nil
	case a.BrandDocumentHash != p.DocumentHash:
		log.Info("brand document superseded, skipping")
		return nil
	case a.BrandStatus != domain.BrandProcessing && a.BrandStatus != domain.BrandReady:
		log.Info("brand document no longer processing, skipping", "status", a.BrandStatus)
		return nil
	}
	if err := p.Validate(); err != nil {
		err = runtime.Permanent(err)
		h.fail(jc, p, log, err)
		return err
	}
	if a.BrandStatus == domain.BrandReady {
		saved, err := h.deps.Repos.Agent.BrandBatchSaved(dbc, p.AgentID, p.DocumentHash, p.Batch)
		if err != nil {
			err = fmt.Errorf("check batch: %w", err)
			h.fail(jc, p, log, err)
			return err
		}
		if saved {
			log.Info("batch already saved, skipping")
			return nil
		}
	}
	if h.deps.Vectors == nil {
		err := runtime.Permanent(errors.New("no vector store configured"))
		h.fail(jc, p, log, err)
		return err
	}

	if err := runtime.Recover(func() error { return h.save(jc, p) }); err != nil {
		h.fail(jc, p, log, err)
		return err
	}
	saved, err := h.deps.Repos.Agent.RecordBrandBatch(dbc, p.AgentID, p.DocumentHash, p.Batch)
	if err != nil {
		err = fmt.Errorf("record batch: %w", err)
		h.fail(jc, p, log, err)
		return err
	}
	jc.SetResult(map[string]any{"agent_id": p.AgentID, "batch": p.Batch, "chunks": len(p.Chunks), "saved_batches": saved})

	if saved < int64(p.TotalBatches) || a.BrandStatus == domain.BrandReady {
		log.Debug("batch saved", "saved_batches", saved)
		return nil
	}
	err = h.deps.Tracker.SetStatus(jc.Ctx, brandRef(p), domain.BrandReady, "")
	if errors.Is(err, domain.ErrInvalidTransition) {
		log.Info("brand document moved on before ready")
		return nil
	}
	if err != nil {
		h.fail(jc, p, log, err)
		return err
	}
	log.Info("brand document ready")
	return nil
}

func brandRef(p contract.ChunkSavePayload) services.EntityRef {
	return services.EntityRef{Kind: services.KindBrand, ID: p.AgentID, OwnerID: p.UserID, Hash: p.DocumentHash}
}

func (h *Save) save(jc *runtime.Context, p contract.ChunkSavePayload) error {
	texts := make([]string, len(p.Chunks))
	for i, c := range p.Chunks {
		texts[i] = c.Text
	}
	vecs, usage, err := h.deps.LLM.Embed(jc.Ctx, texts)
	if err != nil {
		return provider.Err("embed chunks", err)
	}
	if h.deps.Billing != nil && usage.InputTokens+usage.OutputTokens > 0 {
		h.deps.Billing.RecordLLM(jc.Ctx, p.UserID, usage)
	}
	if len(vecs) != len(texts) {
		return provider.Degenerate("embedding returned %d vectors for %d chunks", len(vecs), len(texts))
	}

	points := make([]qdrant.Chunk, len(p.Chunks))
	for i, c := range p.Chunks {
		points[i] = qdrant.Chunk{
			ID:     ChunkID(c.Index),
			Vector: vecs[i],
			Text:   c.Text,
			Metadata: map[string]any{
				"agent_id":      p.AgentID.String(),
				"document_hash": p.DocumentHash,
				"index":         c.Index,
			},
		}
	}
	if err := h.deps.Vectors.Upsert(jc.Ctx, contract.BrandNamespace(p.AgentID), points); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}

func (h *Save) fail(jc *runtime.Context, p contract.ChunkSavePayload, log *logger.Logger, err error) {
	permanent := runtime.IsPermanent(err)
	log.Error("chunk save failed", "permanent", permanent, "final_attempt", jc.FinalAttempt(), "error", err)
	if !permanent && !jc.FinalAttempt() {
		return
	}
	if p.DocumentHash == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(jc.Ctx), failWriteTimeout)
	defer cancel()
	ferr := h.deps.Tracker.SetStatus(ctx, brandRef(p), domain.BrandFailed, failureMessage)
	if ferr != nil && !errors.Is(ferr, domain.ErrInvalidTransition) {
		log.Error("mark brand document failed", "error", ferr)
		return
	}
	jc.MarkEntityFailed()
}
