package services

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
	"gorm.io/datatypes"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	repocontent "github.com/yungbote/agentwriter-backend/internal/data/repos/content"
	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
)

// LineOp is one difflib opcode over body lines.
type LineOp struct {
	Op        string `json:"op"`
	FromStart int    `json:"from_start"`
	FromEnd   int    `json:"from_end"`
	ToStart   int    `json:"to_start"`
	ToEnd     int    `json:"to_end"`
}

type VersionInput struct {
	Title  string
	Body   string
	Meta   datatypes.JSON
	UserID uuid.UUID
}

var opNames = map[byte]string{'r': "replace", 'd': "delete", 'i': "insert", 'e': "equal"}

// RecordVersion appends the next gapless version for before.ID and advances
// current_version. It must run inside the transaction that writes the body.
// A concurrent writer surfaces as ErrConflict and rolls the caller back.
func RecordVersion(dbc dbctx.Context, r *repos.Repos, before *types.Content, after VersionInput) (*types.ContentVersion, error) {
	if before == nil || before.ID == uuid.Nil {
		return nil, fmt.Errorf("record version: %w", ErrNotFound)
	}
	latest, err := r.ContentVersion.MaxVersion(dbc, before.ID)
	if err != nil {
		return nil, fmt.Errorf("record version: %w", err)
	}
	unified, ops, err := BodyDiff(before.Body, after.Body, latest, latest+1)
	if err != nil {
		return nil, err
	}
	lineDiff, _ := json.Marshal(ops)
	changed, _ := json.Marshal(changedFields(before, after))

	v := &types.ContentVersion{
		ContentID:     before.ID,
		Version:       latest + 1,
		Diff:          unified,
		LineDiff:      datatypes.JSON(lineDiff),
		ChangedFields: datatypes.JSON(changed),
		UserID:        after.UserID,
	}
	if err := r.ContentVersion.Create(dbc, v); err != nil {
		if repocontent.IsUniqueViolation(err) {
			return nil, fmt.Errorf("version %d of %s: %w", v.Version, before.ID, ErrConflict)
		}
		return nil, fmt.Errorf("record version: %w", err)
	}
	ok, err := r.Content.AdvanceVersion(dbc, before.ID, latest)
	if err != nil {
		return nil, fmt.Errorf("advance version: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("advance version of %s from %d: %w", before.ID, latest, ErrConflict)
	}
	return v, nil
}

// BodyDiff returns a unified diff and the line opcodes turning prev into next.
func BodyDiff(prev, next string, fromVersion, toVersion int) (string, []LineOp, error) {
	a := difflib.SplitLines(prev)
	b := difflib.SplitLines(next)
	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: fmt.Sprintf("v%d", fromVersion),
		ToFile:   fmt.Sprintf("v%d", toVersion),
		Context:  3,
	})
	if err != nil {
		return "", nil, fmt.Errorf("unified diff: %w", err)
	}
	codes := difflib.NewMatcher(a, b).GetOpCodes()
	ops := make([]LineOp, 0, len(codes))
	for _, c := range codes {
		ops = append(ops, LineOp{Op: opNames[c.Tag], FromStart: c.I1, FromEnd: c.I2, ToStart: c.J1, ToEnd: c.J2})
	}
	return unified, ops, nil
}

func changedFields(before *types.Content, after VersionInput) []string {
	out := []string{}
	if before.Title != after.Title {
		out = append(out, "title")
	}
	if before.Body != after.Body {
		out = append(out, "body")
	}
	if len(after.Meta) > 0 && !bytes.Equal(before.Meta, after.Meta) {
		out = append(out, "meta")
	}
	return out
}
