package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	taxdomain "github.com/responsiv/pay/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type managementParams struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Repository taxdomain.Repository
}

type management struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  taxdomain.Repository
}

func NewService(p managementParams) taxdomain.Service {
	return &management{
		log:   p.Log.Named("tax.service"),
		genID: p.GenID,
		repo:  p.Repository,
	}
}

func (s *management) Create(ctx context.Context, req taxdomain.CreateRequest) (*taxdomain.TaxClass, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, taxdomain.ErrInvalidName
	}

	now := time.Now().UTC()
	class := &taxdomain.TaxClass{
		ID:          s.genID.Generate(),
		Name:        name,
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		TaxMode:     req.TaxMode,
		Rate:        req.Rate,
		Description: req.Description,
		IsEnabled:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := class.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, class); err != nil {
		return nil, err
	}
	return class, nil
}

func (s *management) Update(ctx context.Context, req taxdomain.UpdateRequest) (*taxdomain.TaxClass, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return nil, taxdomain.ErrInvalidID
	}

	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, taxdomain.ErrNotFound
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		class.Name = name
	}
	if req.TaxMode != "" {
		class.TaxMode = req.TaxMode
	}
	if req.Rate != nil {
		class.Rate = req.Rate
	}
	if req.Description != nil {
		class.Description = req.Description
	}
	if req.IsEnabled != nil {
		class.IsEnabled = *req.IsEnabled
	}
	class.UpdatedAt = time.Now().UTC()

	if err := class.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, err
	}
	return class, nil
}

func (s *management) List(ctx context.Context, filter taxdomain.ListFilter) ([]taxdomain.TaxClass, error) {
	return s.repo.List(ctx, filter)
}
