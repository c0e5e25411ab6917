package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/scoring"
)

// ApplyPlayerPatch applies an RFC 7396 merge patch to p and returns the
// result. Only name, position, attributes, photoRef and isGuest are
// editable; every other field keeps its current value. When attributes
// change the OVR is recomputed from them.
func ApplyPlayerPatch(p model.Player, patch []byte) (model.Player, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return p, fmt.Errorf("encode player: %w", err)
	}
	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	var next model.Player
	if err := json.Unmarshal(merged, &next); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	out := p.Clone()
	out.Name = strings.TrimSpace(next.Name)
	out.PhotoRef = next.PhotoRef
	out.IsGuest = next.IsGuest
	if out.Name == "" {
		return p, fmt.Errorf("%w: name is required", ErrInvalidPatch)
	}
	pos, err := model.ParsePosition(string(next.Position))
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	out.Position = pos
	if next.Attributes != p.Attributes {
		if err := next.Attributes.Validate(); err != nil {
			return p, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
		}
		out.Attributes = next.Attributes
		out.OVR = scoring.CalculateOVR(next.Attributes)
	}
	return out, nil
}
