package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/smartport-kiosk/smartport/internal/device"
	"github.com/smartport-kiosk/smartport/internal/smartport/store"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// TokenIssuer mints a session token for an authenticated administrator.
type TokenIssuer interface {
	Issue(a types.Admin) (string, error)
}

type LoginResult struct {
	Admin types.Admin
	Token string
}

// AdminService covers the administrator desk: tag login, administrator
// registration and passenger check-in.
type AdminService struct {
	store  store.IdentityStore
	reader device.TagReader
	tokens TokenIssuer
	logger *log.Logger
}

// NewAdminService builds the service. tokens may be nil, in which case
// Login returns no token.
func NewAdminService(s store.IdentityStore, reader device.TagReader, tokens TokenIssuer, logger *log.Logger) *AdminService {
	return &AdminService{store: s, reader: reader, tokens: tokens, logger: logger}
}

func (s *AdminService) Login(ctx context.Context, tag string) (LoginResult, error) {
	tag, err := resolveTag(ctx, s.reader, tag)
	if err != nil {
		return LoginResult{}, err
	}

	a, err := s.store.FindAdminByTag(ctx, tag)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Printf("admin login tag=%s rejected", tag)
		return LoginResult{}, ErrUnknownAdmin
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("admin login: %w", err)
	}

	res := LoginResult{Admin: a}
	if s.tokens != nil {
		if res.Token, err = s.tokens.Issue(a); err != nil {
			return LoginResult{}, fmt.Errorf("admin login token: %w", err)
		}
	}
	s.logger.Printf("admin login id=%d name=%q", a.ID, a.Name)
	return res, nil
}

func (s *AdminService) RegisterAdmin(ctx context.Context, name, tag string) (types.Admin, error) {
	if strings.TrimSpace(name) == "" {
		return types.Admin{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	tag, err := resolveTag(ctx, s.reader, tag)
	if err != nil {
		return types.Admin{}, err
	}

	a, err := s.store.CreateAdmin(ctx, name, tag)
	if err != nil {
		return types.Admin{}, fmt.Errorf("register admin %s: %w", tag, err)
	}
	s.logger.Printf("admin registered id=%d name=%q tag=%s", a.ID, a.Name, a.TagCode)
	return a, nil
}

func (s *AdminService) ListAdmins(ctx context.Context) ([]types.Admin, error) {
	return s.store.ListAdmins(ctx)
}

// CreatePassenger checks a passenger in on a flight, creating the flight
// on first reference.
func (s *AdminService) CreatePassenger(ctx context.Context, name, flightNumber string) (types.PassengerSummary, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(flightNumber) == "" {
		return types.PassengerSummary{}, fmt.Errorf("%w: name and flight number are required", ErrInvalidInput)
	}
	p, err := s.store.CreatePassenger(ctx, name, flightNumber)
	if err != nil {
		return types.PassengerSummary{}, fmt.Errorf("create passenger: %w", err)
	}
	s.logger.Printf("passenger created id=%d flight=%s", p.ID, p.FlightNumber)
	return p.Summary(), nil
}
