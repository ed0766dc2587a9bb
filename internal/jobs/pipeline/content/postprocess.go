package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	domain "github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/provider"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/markdown"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/objectstore"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

const (
	digestChars   = 280
	exportTimeout = 30 * time.Second
)

type metaOutput struct {
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	SEODescription string   `json:"seo_description"`
	Tags           []string `json:"tags"`
}

// storedMeta is the content row's meta column.
type storedMeta struct {
	metaOutput
	Digest   string                  `json:"digest,omitempty"`
	Editor   string                  `json:"editor"`
	Keywords []string                `json:"keywords,omitempty"`
	Sources  []contract.SearchSource `json:"sources,omitempty"`
}

// PostProcess analyzes the final body and persists it as the draft. The body,
// meta, stats, optional version row and the draft status commit together.
type PostProcess struct{ stage }

func NewPostProcess(deps Deps) *PostProcess {
	return &PostProcess{newStage(deps, contract.QueueContentPostProcess, domain.StatusAnalyzing)}
}

func (h *PostProcess) Queue() string { return h.queue }

func (h *PostProcess) Run(jc *runtime.Context) error {
	var p contract.PostProcessingPayload
	return h.run(jc, &p, func(c *types.Content) error {
		body := strings.TrimSpace(p.EditedDraft)
		doc := markdown.Parse(body)
		stats := doc.Stats()

		var meta metaOutput
		usage, err := h.deps.LLM.GenerateJSON(jc.Ctx, metaSystem(p.Persona), body, &meta)
		if err != nil {
			return provider.Err("analyze content", err)
		}
		h.meterLLM(jc.Ctx, p.UserID, usage)

		title := firstNonEmpty(meta.Title, doc.Title(), truncate(p.ContentRequest.Description, 120))
		meta.Title = title
		metaJSON, err := json.Marshal(storedMeta{
			metaOutput: meta,
			Digest:     doc.Digest(digestChars),
			Editor:     p.Editor,
			Keywords:   p.Keywords,
			Sources:    p.SearchSources,
		})
		if err != nil {
			return runtime.Permanent(fmt.Errorf("encode meta: %w", err))
		}
		statsJSON, err := json.Marshal(stats)
		if err != nil {
			return runtime.Permanent(fmt.Errorf("encode stats: %w", err))
		}

		version := 0
		ref := services.EntityRef{Kind: services.KindContent, ID: c.ID, OwnerID: c.UserID, Run: p.Run}
		err = h.deps.Tracker.Commit(jc.Ctx, ref, string(domain.StatusDraft), "", func(tx *gorm.DB) error {
			dbc := dbctx.Context{Ctx: jc.Ctx, Tx: tx}
			before, err := h.deps.Repos.Content.GetByID(dbc, c.ID)
			if err != nil {
				return fmt.Errorf("load content: %w", err)
			}
			if before == nil {
				return runtime.Permanent(fmt.Errorf("content %s no longer exists", c.ID))
			}
			version = before.CurrentVersion
			if p.EditorUserID != nil {
				v, err := services.RecordVersion(dbc, h.deps.Repos, before, services.VersionInput{
					Title:  title,
					Body:   body,
					Meta:   datatypes.JSON(metaJSON),
					UserID: *p.EditorUserID,
				})
				if err != nil {
					return err
				}
				version = v.Version
			}
			return h.deps.Repos.Content.UpdateFields(dbc, c.ID, map[string]interface{}{
				"title": title,
				"body":  body,
				"meta":  datatypes.JSON(metaJSON),
				"stats": datatypes.JSON(statsJSON),
			})
		})
		if errors.Is(err, domain.ErrInvalidTransition) {
			h.log.Info("content moved on before persist, dropping draft", "content_id", c.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("persist draft: %w", err)
		}
		jc.SetResult(map[string]any{"content_id": c.ID, "status": domain.StatusDraft, "version": version, "words": stats.Words})

		if h.deps.Exports != nil {
			h.export(jc.Ctx, c.ID.String(), version, doc, body)
		}
		return nil
	})
}

// export copies the persisted draft to object storage. Failures are logged
// only; the draft is already committed.
func (h *PostProcess) export(ctx context.Context, contentID string, version int, doc *markdown.Document, body string) {
	log := h.log.With("content_id", contentID, "version", version)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exportTimeout)
	defer cancel()

	key := objectstore.DraftKey(contentID, version)
	if err := h.deps.Exports.Put(ctx, key, "text/markdown; charset=utf-8", []byte(body)); err != nil {
		log.Warn("draft export failed", "key", key, "error", err)
		return
	}
	html, err := doc.HTML()
	if err != nil {
		log.Warn("render draft html", "error", err)
		return
	}
	htmlKey := strings.TrimSuffix(key, ".md") + ".html"
	if err := h.deps.Exports.Put(ctx, htmlKey, "text/html; charset=utf-8", []byte(html)); err != nil {
		log.Warn("draft export failed", "key", htmlKey, "error", err)
		return
	}
	log.Debug("draft exported", "key", key)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

