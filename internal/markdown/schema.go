package markdown

import (
	"errors"
	"fmt"
)

var ErrSchema = errors.New("markdown does not match layout")

// CheckLayout verifies the structural minimum each layout's editor must
// produce. Unknown layouts only need a non-empty body.
func CheckLayout(layout string, s Stats) error {
	if s.Words == 0 {
		return fmt.Errorf("%w: body has no text", ErrSchema)
	}
	switch layout {
	case "tutorial":
		if s.Headings < 2 && s.OrderedLists == 0 {
			return fmt.Errorf("%w: tutorial needs at least two sections or a numbered step list", ErrSchema)
		}
	case "interview":
		if s.Questions < 2 {
			return fmt.Errorf("%w: interview needs at least two questions", ErrSchema)
		}
	case "changelog":
		if s.BulletLists == 0 {
			return fmt.Errorf("%w: changelog needs a bullet list of changes", ErrSchema)
		}
	case "article":
		if s.Headings < 1 && s.Paragraphs < 3 {
			return fmt.Errorf("%w: article needs a heading or at least three paragraphs", ErrSchema)
		}
	}
	return nil
}
