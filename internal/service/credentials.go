// Package service holds the credential workflow: registration, login and profile updates.
// Handlers call it; it talks to a Store, a PasswordHasher and a TokenIssuer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/geocoder89/secondchance/internal/domain/user"
	"github.com/geocoder89/secondchance/internal/observability"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/geocoder89/secondchance/internal/service Store

// Store is the persistent collection of user records keyed by email.
// It is the only writer of records and must enforce email uniqueness itself.
type Store interface {
	// FindByEmail returns user.ErrNotFound when no record matches.
	FindByEmail(ctx context.Context, email string) (user.User, error)
	// Insert assigns ID and CreatedAt; a uniqueness conflict is user.ErrDuplicateEmail.
	Insert(ctx context.Context, u user.User) (user.User, error)
	// UpdateByEmail merges non-nil changes, stamps UpdatedAt and returns the merged record.
	UpdateByEmail(ctx context.Context, email string, changes user.Changes) (user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) (bool, error)
}

type TokenIssuer interface {
	Issue(subjectID string) (string, error)
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type RegisterResult struct {
	Token string
	Email string
}

type LoginResult struct {
	Token     string
	FirstName string
	Email     string
}

// ProfileUpdate carries the optional fields of an update; nil means "not supplied".
type ProfileUpdate struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Password  *string `json:"password" validate:"omitnil,min=6"`
}

type UpdateResult struct {
	Token string
}

type CredentialService struct {
	store        Store
	hasher       PasswordHasher
	tokens       TokenIssuer
	log          *slog.Logger
	prom         *observability.Prom
	storeTimeout time.Duration
	validate     *validator.Validate
	tracer       trace.Tracer
}

func NewCredentialService(store Store, hasher PasswordHasher, tokens TokenIssuer, log *slog.Logger, prom *observability.Prom, storeTimeout time.Duration) *CredentialService {
	if log == nil {
		log = slog.Default()
	}

	if storeTimeout <= 0 {
		storeTimeout = 3 * time.Second
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return &CredentialService{
		store:        store,
		hasher:       hasher,
		tokens:       tokens,
		log:          log,
		prom:         prom,
		storeTimeout: storeTimeout,
		validate:     v,
		tracer:       otel.Tracer("github.com/geocoder89/secondchance/internal/service"),
	}
}

// Register creates a user and returns a token for it.
// The lookup is a fast path only; the store's own uniqueness check is authoritative.
// The password is not validated here.
func (s *CredentialService) Register(ctx context.Context, in RegisterInput) (_ RegisterResult, err error) {
	ctx, span := s.tracer.Start(ctx, "credentials.Register")
	var uid string
	defer func() { s.finish(ctx, span, "register", err, uid) }()

	_, err = s.findByEmail(ctx, in.Email)
	if err == nil {
		return RegisterResult{}, ErrDuplicateEmail
	}
	if !errors.Is(err, user.ErrNotFound) {
		return RegisterResult{}, storeErr(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("%w: %w", ErrHashing, err)
	}

	created, err := s.insert(ctx, user.User{
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return RegisterResult{}, ErrDuplicateEmail
		}
		return RegisterResult{}, storeErr(err)
	}

	token, err := s.tokens.Issue(created.ID)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("%w: %w", ErrToken, err)
	}

	uid = created.ID
	return RegisterResult{Token: token, Email: created.Email}, nil
}

// Login checks a password against the stored hash. Unknown email and wrong password
// stay distinct here; the HTTP layer decides whether to tell them apart.
func (s *CredentialService) Login(ctx context.Context, email, password string) (_ LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "credentials.Login")
	var uid string
	defer func() { s.finish(ctx, span, "login", err, uid) }()

	found, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return LoginResult{}, ErrUserNotFound
		}
		return LoginResult{}, storeErr(err)
	}

	ok, err := s.hasher.Verify(password, found.PasswordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: %w", ErrHashing, err)
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(found.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: %w", ErrToken, err)
	}

	uid = found.ID
	return LoginResult{Token: token, FirstName: found.FirstName, Email: found.Email}, nil
}

// UpdateProfile applies a partial update to the user identified by email.
// email is trusted: the caller has already established who is asking.
// Empty first/last names count as not supplied; a supplied password must have at least 6 characters.
func (s *CredentialService) UpdateProfile(ctx context.Context, email string, in ProfileUpdate) (_ UpdateResult, err error) {
	ctx, span := s.tracer.Start(ctx, "credentials.UpdateProfile")
	var uid string
	defer func() { s.finish(ctx, span, "update_profile", err, uid) }()

	if strings.TrimSpace(email) == "" {
		return UpdateResult{}, ErrMissingIdentifier
	}

	if _, err = s.findByEmail(ctx, email); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return UpdateResult{}, ErrUserNotFound
		}
		return UpdateResult{}, storeErr(err)
	}

	if err = s.validateUpdate(in); err != nil {
		return UpdateResult{}, err
	}

	var changes user.Changes
	if in.FirstName != nil && *in.FirstName != "" {
		changes.FirstName = in.FirstName
	}
	if in.LastName != nil && *in.LastName != "" {
		changes.LastName = in.LastName
	}
	if in.Password != nil {
		hash, hashErr := s.hasher.Hash(*in.Password)
		if hashErr != nil {
			return UpdateResult{}, fmt.Errorf("%w: %w", ErrHashing, hashErr)
		}
		changes.PasswordHash = &hash
	}

	updated, err := s.updateByEmail(ctx, email, changes)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return UpdateResult{}, ErrUserNotFound
		}
		return UpdateResult{}, storeErr(err)
	}

	token, err := s.tokens.Issue(updated.ID)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("%w: %w", ErrToken, err)
	}

	uid = updated.ID
	return UpdateResult{Token: token}, nil
}

func (s *CredentialService) validateUpdate(in ProfileUpdate) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return &ValidationError{Violations: []FieldViolation{{Field: "body", Rule: "invalid"}}}
	}

	out := &ValidationError{Violations: make([]FieldViolation, 0, len(vErrs))}
	for _, fe := range vErrs {
		out.Violations = append(out.Violations, FieldViolation{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// store calls get a bounded deadline on top of whatever the caller set

func (s *CredentialService) findByEmail(ctx context.Context, email string) (user.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.FindByEmail(ctx, email)
}

func (s *CredentialService) insert(ctx context.Context, u user.User) (user.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.Insert(ctx, u)
}

func (s *CredentialService) updateByEmail(ctx context.Context, email string, changes user.Changes) (user.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.UpdateByEmail(ctx, email, changes)
}

// finish is the single place an operation's outcome is logged, counted and traced.
func (s *CredentialService) finish(ctx context.Context, span trace.Span, op string, err error, userID string) {
	defer span.End()

	kind := Kind(err)

	if s.prom != nil {
		s.prom.ObserveAuth(op, kind)
	}

	span.SetAttributes(attribute.String("auth.outcome", kind))

	switch {
	case err == nil:
		s.log.InfoContext(ctx, "credential operation succeeded", "op", op, "user_id", userID)
	case IsInputError(err):
		s.log.WarnContext(ctx, "credential operation rejected", "op", op, "kind", kind, "err", err)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		s.log.ErrorContext(ctx, "credential operation failed", "op", op, "kind", kind, "err", err)
	}
}
