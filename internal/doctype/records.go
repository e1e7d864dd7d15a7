package doctype

import (
	"encoding/json"
	"fmt"
)

// Typed views over the version records the engine builds itself. The
// stack stays type-erased; these go through DecodeRecord and EncodeRecord
// where code creates or navigates one of these shapes.

type Frame struct {
	ID          string `json:"id"`
	Caption     string `json:"caption"`
	ShotType    string `json:"shotType"`
	CameraAngle string `json:"cameraAngle"`
	Movement    string `json:"movement"`
	Duration    string `json:"duration"`
	ImageURL    string `json:"imageUrl"`
}

type VisionPage struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type VisionRecord struct {
	ActivePageID string       `json:"activePageId"`
	Pages        []VisionPage `json:"pages"`
}

// DecodeRecord converts a type-erased version record into T.
func DecodeRecord[T any](record map[string]any) (T, error) {
	var out T
	payload, err := json.Marshal(record)
	if err != nil {
		return out, fmt.Errorf("marshal record: %w", err)
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}

// EncodeRecord converts a typed value back into a type-erased record.
func EncodeRecord(value any) (map[string]any, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return out, nil
}
