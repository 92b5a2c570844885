package llmjson

import (
	"context"
	"fmt"

	"dubflow/internal/services"
)

// Segment is one translated subtitle row in a model payload.
type Segment struct {
	Index      int     `json:"index"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Origin     string  `json:"origin"`
	Translated string  `json:"translated"`
	SceneID    string  `json:"scene_id,omitempty"`
}

// PayloadScene is one scene grouping in a scene-aware model payload.
type PayloadScene struct {
	SceneID string  `json:"scene_id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Title   string  `json:"title,omitempty"`
}

// Payload is the structured document expected from translation calls.
type Payload struct {
	Language string         `json:"language,omitempty"`
	Segments []Segment      `json:"segments"`
	Scenes   []PayloadScene `json:"scenes,omitempty"`
}

// Validate checks the decoded payload shape. requireScenes additionally
// demands a non-empty scenes list for scene-aware flows. Violations are
// schema errors, kept distinct from parse failures.
func (p *Payload) Validate(requireScenes bool) error {
	if len(p.Segments) == 0 {
		return services.Wrap(services.ErrSchemaViolation, "", "validate llm payload",
			"payload has no segments", nil)
	}
	for i, seg := range p.Segments {
		if seg.Origin == "" {
			return services.Wrap(services.ErrSchemaViolation, "", "validate llm payload",
				fmt.Sprintf("segment %d missing origin text", i), nil)
		}
		if seg.End < seg.Start {
			return services.Wrap(services.ErrSchemaViolation, "", "validate llm payload",
				fmt.Sprintf("segment %d has end %v before start %v", i, seg.End, seg.Start), nil)
		}
	}
	if requireScenes && len(p.Scenes) == 0 {
		return services.Wrap(services.ErrSchemaViolation, "", "validate llm payload",
			"payload has no scenes", nil)
	}
	return nil
}

// DecodePayload runs the recovery ladder and validates the result in one
// call.
func DecodePayload(ctx context.Context, raw string, repairer Repairer, requireScenes bool) (*Payload, error) {
	var payload Payload
	if err := Decode(ctx, raw, &payload, repairer); err != nil {
		return nil, err
	}
	if err := payload.Validate(requireScenes); err != nil {
		return nil, err
	}
	return &payload, nil
}
