package adjust

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Fields that never affect pixels.
var (
	nonVisualTop   = []string{"rating"}
	nonVisualMask  = []string{"name"}
	nonVisualPatch = []string{"name", "isLoading"}
)

// Fingerprint returns a stable digest of everything in the set that affects
// the rendered image. Two sets whose visual fields are equal always share a
// fingerprint, regardless of map ordering or field order.
func (a AdjustmentSet) Fingerprint() (string, error) {
	raw, err := json.Marshal(a.Normalized())
	if err != nil {
		return "", fmt.Errorf("encode adjustments: %w", err)
	}

	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("decode adjustments: %w", err)
	}
	for _, k := range nonVisualTop {
		delete(doc, k)
	}
	stripEach(doc["masks"], nonVisualMask)
	stripEach(doc["aiPatches"], nonVisualPatch)

	visual, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode visual adjustments: %w", err)
	}
	canonical, err := jcs.Transform(visual)
	if err != nil {
		return "", fmt.Errorf("canonicalize adjustments: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func stripEach(list interface{}, keys []string) {
	items, ok := list.([]interface{})
	if !ok {
		return
	}
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		for _, k := range keys {
			delete(obj, k)
		}
	}
}
