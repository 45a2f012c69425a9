package profiles

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanwash/cleanwash/internal/auth"
)

type stubRepo struct {
	created   *Profile
	createErr error
	byEmail   map[string]*Profile
}

func (r *stubRepo) Create(ctx context.Context, p *Profile) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = p
	return nil
}

func (r *stubRepo) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	p, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (r *stubRepo) GetByID(ctx context.Context, id string) (*Profile, error) {
	return nil, ErrNotFound
}

func newTestService(repo *stubRepo) *Service {
	return NewService(repo, auth.NewToken([]byte("test-key"), time.Hour))
}

func studentInput() RegisterInput {
	return RegisterInput{
		Email:    "ada@campus.edu",
		Password: "hunter2233",
		FullName: "Ada Obi",
		Gender:   "female",
		Role:     "student",
		Hostel:   "Block A",
		Floor:    "2",
	}
}

func TestRegister_Student(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	p, token, err := svc.Register(context.Background(), studentInput())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 40, p.TotalWashes)
	assert.Equal(t, 40, p.WashesLeft)
	assert.Nil(t, p.WorkerCode)
	assert.NotEqual(t, "hunter2233", p.PasswordHash, "password must be hashed")
	assert.True(t, auth.CheckPassword(p.PasswordHash, "hunter2233"))

	require.NotNil(t, repo.created)
	assert.Equal(t, p.ID, repo.created.ID)
}

func TestRegister_WorkerGetsCode(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	in := studentInput()
	in.Role = "worker"
	in.Hostel, in.Floor = "", ""
	in.AssignedHostel = "Block A"

	p, _, err := svc.Register(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, p.WorkerCode)
	assert.True(t, strings.HasPrefix(*p.WorkerCode, "W"))
	assert.Len(t, *p.WorkerCode, 6)
	assert.Zero(t, p.TotalWashes)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"short password", func(in *RegisterInput) { in.Password = "short" }},
		{"unknown role", func(in *RegisterInput) { in.Role = "admin" }},
		{"unknown gender", func(in *RegisterInput) { in.Gender = "?" }},
		{"student without hostel", func(in *RegisterInput) { in.Hostel = "" }},
		{"student without floor", func(in *RegisterInput) { in.Floor = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubRepo{}
			svc := newTestService(repo)

			in := studentInput()
			tc.mutate(&in)

			_, _, err := svc.Register(context.Background(), in)
			assert.ErrorIs(t, err, ErrBadProfile)
			assert.Nil(t, repo.created)
		})
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	repo := &stubRepo{createErr: ErrEmailTaken}
	svc := newTestService(repo)

	_, _, err := svc.Register(context.Background(), studentInput())
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	hash, err := auth.HashPassword("hunter2233")
	require.NoError(t, err)
	repo := &stubRepo{byEmail: map[string]*Profile{
		"ada@campus.edu": {ID: "u1", Email: "ada@campus.edu", PasswordHash: hash, Role: "student"},
	}}
	svc := newTestService(repo)

	p, token, err := svc.Login(context.Background(), "ada@campus.edu", "hunter2233")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)
	assert.NotEmpty(t, token)

	_, _, err = svc.Login(context.Background(), "ada@campus.edu", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, _, err = svc.Login(context.Background(), "nobody@campus.edu", "hunter2233")
	assert.ErrorIs(t, err, ErrBadCredentials, "unknown email must look like bad credentials")
}
