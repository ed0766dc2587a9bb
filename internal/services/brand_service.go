package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

const (
	MaxBrandDocumentChars = 200_000
	brandChunkChars       = 1200
	brandChunksPerJob     = 8
)

type BrandService interface {
	// UpdateDocument stores the document, marks the brand processing and
	// queues its chunks for embedding. An unchanged ready document is a no-op.
	UpdateDocument(ctx context.Context, userID, agentID uuid.UUID, document string) (*types.Agent, error)
}

type brandService struct {
	db      *gorm.DB
	repos   *repos.Repos
	tracker StatusTracker
	jobs    JobEnqueuer
	log     *logger.Logger
}

func NewBrandService(db *gorm.DB, r *repos.Repos, tracker StatusTracker, jobs JobEnqueuer, baseLog *logger.Logger) BrandService {
	return &brandService{
		db:      db,
		repos:   r,
		tracker: tracker,
		jobs:    jobs,
		log:     baseLog.With("service", "BrandService"),
	}
}

func (s *brandService) UpdateDocument(ctx context.Context, userID, agentID uuid.UUID, document string) (*types.Agent, error) {
	document = strings.TrimSpace(document)
	if document == "" {
		return nil, invalidf("brand document is empty")
	}
	if len(document) > MaxBrandDocumentChars {
		return nil, invalidf("brand document exceeds %d characters", MaxBrandDocumentChars)
	}
	agent, err := ownedAgent(ctx, s.repos, userID, agentID)
	if err != nil {
		return nil, err
	}
	hash := DocumentHash(document)
	if agent.BrandDocumentHash == hash && agent.BrandStatus == content.BrandReady {
		return agent, nil
	}

	chunks := ChunkDocument(document, brandChunkChars)
	batches := batchChunks(chunks, brandChunksPerJob)
	reqs := make([]queue.AddRequest, 0, len(batches))
	for i, batch := range batches {
		reqs = append(reqs, queue.AddRequest{
			OwnerUserID: userID,
			EntityType:  contract.EntityAgent,
			EntityID:    agent.ID,
			Key:         contract.ChunkJobKey(agent.ID, hash, i),
			Payload: contract.ChunkSavePayload{
				AgentID:      agent.ID,
				UserID:       userID,
				DocumentHash: hash,
				Batch:        i,
				TotalBatches: len(batches),
				Chunks:       batch,
			},
		})
	}

	agent.BrandDocument = document
	agent.BrandDocumentHash = hash
	agent.BrandStatus = content.BrandProcessing
	agent.BrandMessage = ""
	err = s.tracker.Commit(ctx, BrandRef(agent), content.BrandProcessing, "", func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.repos.Agent.SetBrandDocument(dbc, agent.ID, document, hash, content.BrandProcessing); err != nil {
			return fmt.Errorf("store brand document: %w", err)
		}
		if _, err := s.jobs.EnqueueTx(dbc, contract.QueueChunksSave, reqs...); err != nil {
			return fmt.Errorf("enqueue chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("brand document queued", "agent_id", agent.ID, "chunks", len(chunks), "jobs", len(reqs))
	return agent, nil
}

func DocumentHash(document string) string {
	sum := sha256.Sum256([]byte(document))
	return hex.EncodeToString(sum[:])
}

// ChunkDocument packs paragraphs into chunks of at most maxChars; a single
// paragraph longer than that is split on word boundaries.
func ChunkDocument(document string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = brandChunkChars
	}
	var out []string
	var cur strings.Builder
	flush := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			out = append(out, t)
		}
		cur.Reset()
	}
	for _, para := range strings.Split(strings.ReplaceAll(document, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) > maxChars {
			flush()
			out = append(out, splitWords(para, maxChars)...)
			continue
		}
		if cur.Len() > 0 && cur.Len()+2+len(para) > maxChars {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return out
}

func splitWords(s string, maxChars int) []string {
	var out []string
	var cur strings.Builder
	for _, w := range strings.Fields(s) {
		if cur.Len() > 0 && cur.Len()+1+len(w) > maxChars {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func batchChunks(chunks []string, size int) [][]contract.ChunkText {
	var out [][]contract.ChunkText
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := make([]contract.ChunkText, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, contract.ChunkText{Index: i, Text: chunks[i]})
		}
		out = append(out, batch)
	}
	return out
}
