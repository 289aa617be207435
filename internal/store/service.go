package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

type Service struct {
	repo      Repository
	maxDrafts int
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, maxDrafts int, logger *slog.Logger) *Service {
	if maxDrafts <= 0 {
		maxDrafts = MaxDrafts
	}
	return &Service{repo: repo, maxDrafts: maxDrafts, logger: logger, now: time.Now}
}

// SaveDraft stores a copy of tracks as a new draft and drops the oldest
// drafts beyond the limit.
func (s *Service) SaveDraft(ctx context.Context, title string, tracks timeline.Tracks, currentTime float64) (*Draft, error) {
	if err := ValidateTracks(tracks); err != nil {
		return nil, err
	}

	createdAt := s.now()
	if strings.TrimSpace(title) == "" {
		title = "Draft " + createdAt.Format("2006-01-02 15:04")
	}

	d := &Draft{
		ID:              "draft-" + uuid.NewString(),
		Title:           title,
		Tracks:          tracks.Clone(),
		CurrentTime:     currentTime,
		ContentDuration: tracks.ContentDuration(),
		ClipCount:       tracks.ClipCount(),
		CreatedAt:       createdAt,
	}
	if err := s.repo.CreateDraft(ctx, d); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	pruned, err := s.repo.PruneDrafts(ctx, s.maxDrafts)
	if err != nil {
		return nil, fmt.Errorf("prune drafts: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("draft saved", "draft_id", d.ID, "clips", d.ClipCount, "pruned", pruned)
	}
	return d, nil
}

// LoadDraft returns a stored draft after checking it still describes a
// loadable timeline.
func (s *Service) LoadDraft(ctx context.Context, id string) (*Draft, error) {
	d, err := s.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	if err := ValidateTracks(d.Tracks); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListDrafts(ctx context.Context) ([]*DraftSummary, error) {
	return s.repo.ListDrafts(ctx)
}

func (s *Service) DeleteDraft(ctx context.Context, id string) error {
	if err := s.repo.DeleteDraft(ctx, id); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("draft deleted", "draft_id", id)
	}
	return nil
}

// AddMaterial collects a source. Adding a ref that is already collected
// updates it but keeps its original added time.
func (s *Service) AddMaterial(ctx context.Context, m Material) (*Material, error) {
	if strings.TrimSpace(m.Ref) == "" {
		return nil, fmt.Errorf("material ref is required")
	}
	if m.Title == "" {
		m.Title = m.Ref
	}
	m.Category = categoryOrDefault(m.Category)
	m.Tags = NormalizeTags(m.Tags)

	existing, err := s.repo.GetMaterial(ctx, m.Ref)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		m.AddedAt = existing.AddedAt
	} else {
		m.AddedAt = s.now()
	}

	if err := s.repo.UpsertMaterial(ctx, &m); err != nil {
		return nil, fmt.Errorf("save material: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("material saved", "source_ref", m.Ref, "category", m.Category)
	}
	return &m, nil
}

func (s *Service) GetMaterial(ctx context.Context, ref string) (*Material, error) {
	m, err := s.repo.GetMaterial(ctx, ref)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrMaterialNotFound, ref)
	}
	return m, nil
}

func (s *Service) ListMaterials(ctx context.Context, filter MaterialFilter) ([]*Material, error) {
	return s.repo.ListMaterials(ctx, filter)
}

func (s *Service) RemoveMaterial(ctx context.Context, ref string) error {
	return s.repo.DeleteMaterial(ctx, ref)
}

func (s *Service) SetMaterialTags(ctx context.Context, ref string, tags []string) error {
	return s.repo.UpdateMaterialTags(ctx, ref, tags)
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.repo.ListCategories(ctx)
}

// EnsureAuthToken returns the stored API token, generating one on first use.
func (s *Service) EnsureAuthToken(ctx context.Context) (string, error) {
	existing, err := s.repo.GetConfig(ctx, ConfigAuthToken)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := s.repo.SetConfig(ctx, ConfigAuthToken, token); err != nil {
		return "", err
	}
	return token, nil
}

// ValidateTracks rejects track sets that cannot be loaded into an editor:
// no primary track, clips without ids or with empty intervals, and
// duplicate clip ids.
func ValidateTracks(t timeline.Tracks) error {
	if len(t.Video) == 0 {
		return fmt.Errorf("%w: no primary track", ErrInvalidDraft)
	}
	seen := make(map[string]bool)
	for i, track := range t.Video {
		for _, c := range track {
			if c.ID == "" {
				return fmt.Errorf("%w: clip without id on track %d", ErrInvalidDraft, i)
			}
			if seen[c.ID] {
				return fmt.Errorf("%w: duplicate clip id %s", ErrInvalidDraft, c.ID)
			}
			seen[c.ID] = true
			if !(c.SourceEnd > c.SourceStart) || !(c.DisplayDuration > 0) {
				return fmt.Errorf("%w: clip %s has an empty interval", ErrInvalidDraft, c.ID)
			}
		}
	}
	return nil
}
