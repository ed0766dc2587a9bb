package services

import (
	"github.com/yungbote/agentwriter-backend/internal/domain/content"
	apperrors "github.com/yungbote/agentwriter-backend/internal/pkg/errors"
)

var (
	ErrForbidden  = apperrors.ErrForbidden
	ErrValidation = apperrors.ErrInvalidArgument
	ErrNotFound   = content.ErrNotFound
	ErrConflict   = apperrors.ErrConflict
)

func invalidf(format string, args ...any) error { return apperrors.Invalidf(format, args...) }
