// Package storage persists the edit state of images.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"gopkg.in/yaml.v3"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/client"
)

const (
	// SidecarExt is appended to the image path to name its sidecar file
	SidecarExt = ".edit.yaml"

	sidecarVersion = "1.0"

	// maxSourceBytes caps images sent inline to the AI service
	maxSourceBytes = 20 << 20
)

var (
	_ client.MetadataStore = (*Sidecar)(nil)
	_ client.MetadataStore = (*Badger)(nil)
	_ client.MetadataStore = (*Memory)(nil)
)

// sidecarDocument is the on-disk layout of a sidecar file
type sidecarDocument struct {
	Version     string               `yaml:"version"`
	Image       string               `yaml:"image"`
	Timestamp   time.Time            `yaml:"timestamp"`
	Adjustments adjust.AdjustmentSet `yaml:"adjustments"`
}

// Sidecar stores each image's edits in a YAML file next to the image
type Sidecar struct{}

// NewSidecar creates a sidecar store
func NewSidecar() *Sidecar {
	return &Sidecar{}
}

// Path returns the sidecar file path for an image
func (s *Sidecar) Path(imagePath string) string {
	return imagePath + SidecarExt
}

// LoadMetadata loads the edits stored for an image, or nil if there are none
func (s *Sidecar) LoadMetadata(ctx context.Context, imagePath string) (*adjust.AdjustmentSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(imagePath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var doc sidecarDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	set := doc.Adjustments.Normalized()
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("stored metadata for %s is invalid: %w", imagePath, err)
	}
	return &set, nil
}

// SaveMetadata writes the edits for an image. The file is replaced
// atomically so a crash never leaves a truncated sidecar.
func (s *Sidecar) SaveMetadata(ctx context.Context, imagePath string, set adjust.AdjustmentSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := sidecarDocument{
		Version:     sidecarVersion,
		Image:       filepath.Base(imagePath),
		Timestamp:   time.Now().UTC(),
		Adjustments: set,
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	path := s.Path(imagePath)
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

// ImageDataURL reads an image file into a base64 data URL
func ImageDataURL(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > maxSourceBytes {
		return "", fmt.Errorf("image file too large (max %dMB)", maxSourceBytes>>20)
	}

	mt := mimetype.Detect(data)
	if !mt.Is("image/jpeg") && !mt.Is("image/png") && !mt.Is("image/webp") &&
		!mt.Is("image/tiff") && !mt.Is("image/bmp") && !mt.Is("image/gif") {
		return "", fmt.Errorf("%s is not a supported image (%s)", filepath.Base(filePath), mt.String())
	}

	return fmt.Sprintf("data:%s;base64,%s", mt.String(), base64.StdEncoding.EncodeToString(data)), nil
}
