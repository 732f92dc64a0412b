package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"rehla/internal/cms"
	"rehla/internal/platform/metrics"
	"rehla/internal/serial"
	"rehla/internal/tree/models"
	dErrors "rehla/pkg/domainerrors"
	"rehla/pkg/platform/sentinel"
)

// uploadConcurrency bounds parallel photo uploads per submission.
const uploadConcurrency = 3

// CMS is the content service that stores tree records and photos.
type CMS interface {
	Upload(ctx context.Context, token string, files []cms.UploadFile) ([]cms.Media, error)
	CreateTree(ctx context.Context, token string, in cms.TreeInput) (*cms.Tree, error)
	FindTreeBySerial(ctx context.Context, serial string) (*cms.Tree, error)
	MediaURL(m cms.Media) string
}

// Cache holds tree profiles. Get returns sentinel.ErrNotFound on a miss.
type Cache interface {
	Get(ctx context.Context, serial string) (*models.Tree, error)
	Set(ctx context.Context, serial string, tree *models.Tree) error
	Delete(ctx context.Context, serial string) error
}

// Resolver turns a scanned payload into a serial.
type Resolver interface {
	Resolve(ctx context.Context, payload string) serial.Resolution
}

// Service creates tree records from submitted forms and serves public profiles.
type Service struct {
	cms      CMS
	cache    Cache
	resolver Resolver
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(client CMS, resolver Resolver, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		cms:      client,
		resolver: resolver,
		logger:   logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Resolve returns the serial a scanned payload refers to.
func (s *Service) Resolve(ctx context.Context, payload string) (*models.Resolution, error) {
	if payload == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "payload is required")
	}
	res := s.resolver.Resolve(ctx, payload)
	return &models.Resolution{Serial: res.Serial, IsURL: res.IsURL}, nil
}

// Profile looks up the tree a payload or bare serial refers to.
func (s *Service) Profile(ctx context.Context, payloadOrSerial string) (*models.Tree, error) {
	if payloadOrSerial == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "serial is required")
	}
	serialNumber := s.resolver.Resolve(ctx, payloadOrSerial).Serial

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, serialNumber)
		switch {
		case err == nil:
			s.metrics.RecordCacheHit()
			return cached, nil
		case !errors.Is(err, sentinel.ErrNotFound):
			s.logger.WarnContext(ctx, "profile cache read failed", "serial", serialNumber, "error", err)
		}
		s.metrics.RecordCacheMiss()
	}

	record, err := s.cms.FindTreeBySerial(ctx, serialNumber)
	if err != nil {
		return nil, cmsError(err, "tree not found", "failed to load tree")
	}
	tree := s.toModel(record)

	if s.cache != nil {
		if err := s.cache.Set(ctx, serialNumber, tree); err != nil {
			s.logger.WarnContext(ctx, "profile cache write failed", "serial", serialNumber, "error", err)
		}
	}
	return tree, nil
}

// Submit uploads the form's photos, then creates the tree record that
// references them. Nothing is created if any upload fails.
func (s *Service) Submit(ctx context.Context, token string, form models.Form) (*models.Tree, error) {
	if token == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "login required")
	}
	form.Normalize()
	if err := form.Validate(); err != nil {
		return nil, err
	}

	mediaIDs, err := s.uploadPhotos(ctx, token, form.Photos)
	if err != nil {
		return nil, cmsError(err, "upload rejected", "failed to upload photos")
	}
	s.metrics.AddPhotosUploaded(len(mediaIDs))

	record, err := s.cms.CreateTree(ctx, token, cms.TreeInput{
		TreeFields: cms.TreeFields{
			SerialNumber: form.SerialNumber,
			Species:      form.Species,
			PlantedAt:    form.PlantedAt,
			Latitude:     form.Latitude,
			Longitude:    form.Longitude,
			LocationName: form.LocationName,
			PlanterName:  form.PlanterName,
			Notes:        form.Notes,
		},
		Photos: mediaIDs,
	})
	if err != nil {
		return nil, cmsError(err, "tree endpoint not found", "failed to create tree")
	}
	s.metrics.IncTreesCreated()
	s.logger.InfoContext(ctx, "tree created",
		"serial", form.SerialNumber,
		"tree_id", record.ID,
		"photos", len(mediaIDs),
	)

	if s.cache != nil {
		if err := s.cache.Delete(ctx, form.SerialNumber); err != nil {
			s.logger.WarnContext(ctx, "profile cache evict failed", "serial", form.SerialNumber, "error", err)
		}
	}
	return s.toModel(record), nil
}

// uploadPhotos uploads each photo separately and returns media ids in form order.
func (s *Service) uploadPhotos(ctx context.Context, token string, photos []models.PhotoFile) ([]int, error) {
	if len(photos) == 0 {
		return nil, nil
	}
	ids := make([]int, len(photos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, p := range photos {
		g.Go(func() error {
			media, err := s.cms.Upload(gctx, token, []cms.UploadFile{{
				Name:        p.Name,
				ContentType: p.ContentType,
				Content:     bytes.NewReader(p.Data),
			}})
			if err != nil {
				return err
			}
			if len(media) == 0 {
				return errors.New("upload returned no media")
			}
			ids[i] = media[0].ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Service) toModel(record *cms.Tree) *models.Tree {
	tree := &models.Tree{
		ID:           record.ID,
		SerialNumber: record.SerialNumber,
		Species:      record.Species,
		PlantedAt:    record.PlantedAt,
		Latitude:     record.Latitude,
		Longitude:    record.Longitude,
		LocationName: record.LocationName,
		PlanterName:  record.PlanterName,
		Notes:        record.Notes,
		Photos:       make([]models.Photo, 0, len(record.Photos)),
	}
	for _, m := range record.Photos {
		tree.Photos = append(tree.Photos, models.Photo{
			ID:          m.ID,
			Name:        m.Name,
			URL:         s.cms.MediaURL(m),
			ContentType: m.Mime,
		})
	}
	return tree
}

// cmsError maps CMS failures onto domain errors.
func cmsError(err error, notFound, fallback string) error {
	var apiErr *cms.APIError
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, notFound)
	case errors.Is(err, cms.ErrUnauthorized):
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "login expired or not permitted")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "content service unavailable")
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest && apiErr.Message != "":
		return dErrors.New(dErrors.CodeValidation, apiErr.Message)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, fallback)
	}
}
