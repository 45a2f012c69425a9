package profiles

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/cleanwash/cleanwash/internal/auth"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const defaultWashQuota = 40

var validate = validator.New()

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required"`
	Gender   string `json:"gender" validate:"required,oneof=male female other"`
	Role     string `json:"role" validate:"required,oneof=student worker"`

	// student fields
	RegistrationNumber string `json:"registration_number" validate:"omitempty"`
	Hostel             string `json:"hostel" validate:"required_if=Role student"`
	Floor              string `json:"floor" validate:"required_if=Role student"`

	// worker fields
	AssignedHostel string `json:"assigned_hostel" validate:"omitempty"`
}

type repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	GetByID(ctx context.Context, id string) (*Profile, error)
}

type Service struct {
	repo   repository
	tokens *auth.Token
}

func NewService(repo repository, tokens *auth.Token) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Register creates a profile and returns it together with a session token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Profile, string, error) {
	if err := validate.Struct(in); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadProfile, err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, "", err
	}

	p := &Profile{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Gender:       in.Gender,
		Role:         in.Role,
	}
	switch in.Role {
	case auth.RoleStudent:
		p.RegistrationNumber = optional(in.RegistrationNumber)
		p.Hostel = optional(in.Hostel)
		p.Floor = optional(in.Floor)
		p.TotalWashes = defaultWashQuota
		p.WashesLeft = defaultWashQuota
	case auth.RoleWorker:
		code := newWorkerCode()
		p.WorkerCode = &code
		p.AssignedHostel = optional(in.AssignedHostel)
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, "", err
	}
	token, err := s.tokens.Create(p.ID, p.Role)
	if err != nil {
		return nil, "", err
	}
	return p, token, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Profile, string, error) {
	p, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, "", ErrBadCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if !auth.CheckPassword(p.PasswordHash, password) {
		return nil, "", ErrBadCredentials
	}
	token, err := s.tokens.Create(p.ID, p.Role)
	if err != nil {
		return nil, "", err
	}
	return p, token, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Profile, error) {
	return s.repo.GetByID(ctx, id)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func newWorkerCode() string {
	return fmt.Sprintf("W%d", 10000+rand.IntN(90000))
}
