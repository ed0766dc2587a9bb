package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatusWrite is a conditional status update: it applies only while the row's
// current status is one of From (and the guard columns match).
type StatusWrite struct {
	ID      uuid.UUID
	From    []string
	To      string
	Message string
	// Guard adds equality conditions, e.g. {"run": 3}.
	Guard map[string]interface{}
}

func applyStatusWrite(tx *gorm.DB, model interface{}, statusCol, messageCol string, w StatusWrite) (bool, error) {
	if w.ID == uuid.Nil || len(w.From) == 0 {
		return false, nil
	}
	q := tx.Model(model).
		Where("id = ?", w.ID).
		Where(statusCol+" IN ?", w.From)
	for col, v := range w.Guard {
		q = q.Where(col+" = ?", v)
	}
	updates := map[string]interface{}{
		statusCol:    w.To,
		"updated_at": time.Now().UTC(),
	}
	if messageCol != "" {
		updates[messageCol] = w.Message
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
