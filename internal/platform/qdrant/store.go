package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agentwriter-backend/internal/pkg/httpx"
	"github.com/yungbote/agentwriter-backend/internal/platform/ctxutil"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

const (
	payloadNamespaceKey = "_aw_namespace"
	payloadChunkIDKey   = "_aw_chunk_id"
	payloadTextKey      = "text"
)

var pointIDNamespaceUUID = uuid.MustParse("6b0d8f0e-3f47-4c8a-9a51-1f3f0c6f6d21")

// Chunk is one embedded slice of a brand document.
type Chunk struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]any
}

type Match struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]any
}

// Store is the retrieval capability used by the planning stages.
type Store interface {
	Upsert(ctx context.Context, namespace string, chunks []Chunk) error
	Search(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
}

type store struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type searchItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// NewStore builds a Qdrant REST store. A nil client gets a 10s timeout default.
func NewStore(log *logger.Logger, cfg Config, client *http.Client) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	s := &store{
		log:     log.With("service", "QdrantStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    client,
	}
	log.Info("Qdrant store selected",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"namespace_prefix", cfg.NamespacePrefix,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

func (s *store) Upsert(ctx context.Context, namespace string, chunks []Chunk) error {
	const op = "upsert"
	if len(chunks) == 0 {
		return nil
	}
	ns := s.qualify(namespace)
	points := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return validationErr(op, "chunk id is required")
		}
		if len(c.Vector) != s.cfg.VectorDim {
			return validationErr(op, fmt.Sprintf("chunk %q dimension mismatch: expected=%d got=%d", id, s.cfg.VectorDim, len(c.Vector)))
		}
		payload := make(map[string]any, len(c.Metadata)+3)
		for k, v := range c.Metadata {
			payload[k] = v
		}
		payload[payloadTextKey] = c.Text
		payload[payloadNamespaceKey] = ns
		payload[payloadChunkIDKey] = id
		points = append(points, map[string]any{
			"id":      s.pointID(ns, id),
			"vector":  c.Vector,
			"payload": payload,
		})
	}
	return s.do(ctx, op, http.MethodPut, "/points?wait=true", map[string]any{"points": points}, nil)
}

func (s *store) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	const op = "search"
	if len(vector) != s.cfg.VectorDim {
		return nil, validationErr(op, fmt.Sprintf("query dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(vector)))
	}
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"filter": map[string]any{
			"must": []any{
				map[string]any{"key": payloadNamespaceKey, "match": map[string]any{"value": s.qualify(namespace)}},
			},
		},
	}
	var items []searchItem
	if err := s.do(ctx, op, http.MethodPost, "/points/search", req, &items); err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(items))
	for _, it := range items {
		m := Match{Score: it.Score, Metadata: map[string]any{}}
		for k, v := range it.Payload {
			switch k {
			case payloadChunkIDKey:
				m.ID, _ = v.(string)
			case payloadTextKey:
				m.Text, _ = v.(string)
			case payloadNamespaceKey:
			default:
				m.Metadata[k] = v
			}
		}
		if m.ID == "" {
			m.ID = strings.Trim(string(it.ID), `"`)
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *store) do(ctx context.Context, op, method, path string, in any, out any) error {
	headers := map[string]string{"api-key": s.cfg.APIKey}
	var env envelope
	url := s.baseURL + "/collections/" + s.cfg.Collection + path
	if err := httpx.DoJSON(ctxutil.Default(ctx), s.http, "qdrant "+op, method, url, headers, in, &env); err != nil {
		return callErr(op, err)
	}
	if msg := envelopeStatusError(env.Status); msg != "" {
		return &OperationError{Code: OperationErrorStatus, Operation: op, Message: msg}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &OperationError{Code: OperationErrorStatus, Operation: op, Message: "decode result", Cause: err}
	}
	return nil
}

func envelopeStatusError(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if strings.EqualFold(str, "ok") {
			return ""
		}
		return "status=" + str
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Error != "" {
		return obj.Error
	}
	return "status=" + status
}

func (s *store) qualify(namespace string) string {
	ns := strings.TrimSpace(namespace)
	if s.cfg.NamespacePrefix == "" {
		return ns
	}
	if ns == "" {
		return s.cfg.NamespacePrefix
	}
	return s.cfg.NamespacePrefix + ":" + ns
}

func (s *store) pointID(ns, chunkID string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(ns+"|"+chunkID)).String()
}
