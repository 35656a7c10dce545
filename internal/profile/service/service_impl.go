package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/responsiv/pay/internal/customer/domain"
	"github.com/responsiv/pay/internal/gateway"
	gatewaydomain "github.com/responsiv/pay/internal/gateway/domain"
	"github.com/responsiv/pay/internal/locks"
	"github.com/responsiv/pay/internal/metrics"
	"github.com/responsiv/pay/internal/profile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Gateways *gateway.Resolver
	Cust     customerdomain.Repository
	Locker   locks.Locker
	Metrics  *metrics.Metrics
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	gateways *gateway.Resolver
	cust     customerdomain.Repository
	locker   locks.Locker
	metrics  *metrics.Metrics
}

const profileLockTTL = 30 * time.Second

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("profile.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		gateways: p.Gateways,
		cust:     p.Cust,
		locker:   p.Locker,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, callerID snowflake.ID, req domain.CreateProfileRequest) (*domain.PaymentProfile, error) {
	if callerID == 0 {
		return nil, domain.ErrNotOwner
	}

	customer, err := s.cust.FindByID(ctx, s.db, callerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, customerdomain.ErrNotFound
	}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	profiles, err := s.profileGateway(ctx, provider)
	if err != nil {
		return nil, err
	}

	token, err := profiles.CreateProfile(ctx, gatewaydomain.CustomerRef{
		ID:    customer.ID,
		Name:  customer.Name,
		Email: customer.Email,
	}, req.Data)
	if err != nil {
		s.metrics.RecordProfileMutation(provider, "create", "error")
		return nil, err
	}

	now := time.Now().UTC()
	profile := &domain.PaymentProfile{
		ID:           s.genID.Generate(),
		CustomerID:   customer.ID,
		Provider:     provider,
		GatewayToken: token.Token,
		MaskedPAN:    token.MaskedPAN,
		Brand:        token.Brand,
		ExpMonth:     token.ExpMonth,
		ExpYear:      token.ExpYear,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, profile); err != nil {
		return nil, err
	}

	s.metrics.RecordProfileMutation(provider, "create", "ok")
	return profile, nil
}

func (s *Service) Update(ctx context.Context, callerID, profileID snowflake.ID, data gatewaydomain.PaymentData) (*domain.PaymentProfile, error) {
	release, err := s.locker.Acquire(ctx, profileLockKey(profileID), profileLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	profile, err := s.ownedProfile(ctx, callerID, profileID)
	if err != nil {
		return nil, err
	}

	profiles, err := s.profileGateway(ctx, profile.Provider)
	if err != nil {
		return nil, err
	}

	customer, err := s.cust.FindByID(ctx, s.db, profile.CustomerID)
	if err != nil {
		return nil, err
	}
	ref := gatewaydomain.CustomerRef{ID: profile.CustomerID}
	if customer != nil {
		ref.Name = customer.Name
		ref.Email = customer.Email
	}

	token, ok, err := profiles.UpdateProfile(ctx, ref, profile.Token(), data)
	if err != nil {
		// Stored token untouched; the caller may retry.
		s.metrics.RecordProfileMutation(profile.Provider, "update", "error")
		return nil, err
	}
	if !ok || token == nil {
		s.metrics.RecordProfileMutation(profile.Provider, "update", "rejected")
		return nil, gatewaydomain.ErrGatewayRejected
	}

	profile.GatewayToken = token.Token
	profile.MaskedPAN = token.MaskedPAN
	profile.Brand = token.Brand
	profile.ExpMonth = token.ExpMonth
	profile.ExpYear = token.ExpYear
	profile.UpdatedAt = time.Now().UTC()
	if err := s.repo.ReplaceToken(ctx, s.db, profile); err != nil {
		return nil, err
	}

	s.metrics.RecordProfileMutation(profile.Provider, "update", "ok")
	return profile, nil
}

func (s *Service) Delete(ctx context.Context, callerID, profileID snowflake.ID) error {
	release, err := s.locker.Acquire(ctx, profileLockKey(profileID), profileLockTTL)
	if err != nil {
		return err
	}
	defer release()

	profile, err := s.ownedProfile(ctx, callerID, profileID)
	if err != nil {
		return err
	}

	// Remote delete is best effort. The local record goes away no
	// matter what the gateway says.
	if profiles, gerr := s.profileGateway(ctx, profile.Provider); gerr == nil {
		if _, derr := profiles.DeleteProfile(ctx, gatewaydomain.CustomerRef{ID: profile.CustomerID}, profile.Token()); derr != nil {
			s.log.Warn("remote profile delete failed",
				zap.String("provider", profile.Provider),
				zap.String("profile_id", profile.ID.String()),
				zap.Error(derr),
			)
		}
	} else {
		s.log.Warn("remote profile delete skipped",
			zap.String("provider", profile.Provider),
			zap.String("profile_id", profile.ID.String()),
			zap.Error(gerr),
		)
	}

	if err := s.repo.SoftDelete(ctx, s.db, profile.ID, time.Now().UTC()); err != nil {
		return err
	}
	s.metrics.RecordProfileMutation(profile.Provider, "delete", "ok")
	return nil
}

func (s *Service) Get(ctx context.Context, profileID snowflake.ID) (*domain.PaymentProfile, error) {
	profile, err := s.repo.FindByID(ctx, s.db, profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrNotFound
	}
	return profile, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]domain.PaymentProfile, error) {
	return s.repo.ListByCustomer(ctx, s.db, customerID)
}

// FormFields describes the hosted popup form for the profile's
// provider. All current profile-capable providers take raw card data.
func (s *Service) FormFields(ctx context.Context, profileID snowflake.ID) ([]domain.FieldDescriptor, error) {
	if _, err := s.Get(ctx, profileID); err != nil {
		return nil, err
	}
	return cardFormFields(), nil
}

func cardFormFields() []domain.FieldDescriptor {
	return []domain.FieldDescriptor{
		{Name: "holder_name", Label: "Name on card", Type: "text", Required: true},
		{Name: "card_number", Label: "Card number", Type: "text", Required: true},
		{Name: "exp_month", Label: "Expiry month", Type: "number", Required: true},
		{Name: "exp_year", Label: "Expiry year", Type: "number", Required: true},
		{Name: "cvv", Label: "Security code", Type: "password", Required: true},
	}
}

func (s *Service) ownedProfile(ctx context.Context, callerID, profileID snowflake.ID) (*domain.PaymentProfile, error) {
	profile, err := s.repo.FindByID(ctx, s.db, profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrNotFound
	}
	if callerID == 0 || profile.CustomerID != callerID {
		return nil, domain.ErrNotOwner
	}
	return profile, nil
}

func profileLockKey(profileID snowflake.ID) string {
	return "profile:" + profileID.String()
}

func (s *Service) profileGateway(ctx context.Context, provider string) (gatewaydomain.ProfileGateway, error) {
	adapter, err := s.gateways.Resolve(ctx, provider)
	if err != nil {
		return nil, err
	}
	profiles, ok := adapter.(gatewaydomain.ProfileGateway)
	if !ok {
		return nil, gatewaydomain.ErrProfilesUnsupported
	}
	return profiles, nil
}
