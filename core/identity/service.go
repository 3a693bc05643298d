package identity

import (
	"context"
	"net/mail"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
)

var (
	// errors
	ErrNotFound             = errors.New("account not found")
	ErrEmailExists          = errors.New("an account with this email already exists")
	ErrAuthenticationFailed = errors.New("invalid email or password")
	ErrAccountDeactivated   = errors.New("account deactivated")
)

type (
	Repository interface {
		// CreateAccount saves a new Account; ErrEmailExists when the email is taken.
		CreateAccount(ctx context.Context, acc Account) (Account, error)
		GetAccount(ctx context.Context, filter GetFilter) (Account, error)
		UpdateAccount(ctx context.Context, acc Account) (Account, error)
	}

	// Service is the identity provider: it owns credentials, never profiles.
	Service struct {
		repo    Repository
		mailSvc core.EmailService
		tokens  tokenGenerator
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		tokens:  newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
	}
}

// CreateAccount creates an active Account from validated sign-up data.
func (svc *Service) CreateAccount(ctx context.Context, na NewAccount) (Account, error) {
	now := nowFunc().UTC()
	acc := Account{
		ID:          uuid.New().String(),
		Email:       core.CleanString(na.Email, true /* lower */),
		DisplayName: core.CleanString(na.FullName),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := acc.SetPassword(na.Password); err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}
	acc, err := svc.repo.CreateAccount(ctx, acc)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return Account{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return Account{}, errors.Wrap(err, "creating account")
	}
	return acc, nil
}

// Authenticate checks the credentials and records the login time.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (Account, error) {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Account{}, ErrAuthenticationFailed
		}
		return Account{}, errors.Wrap(err, "finding account by email")
	}
	if err = acc.CheckPassword(pwd); err != nil {
		return Account{}, ErrAuthenticationFailed
	}
	if !acc.IsActive {
		return Account{}, ErrAccountDeactivated
	}

	acc.LastLogin = nowFunc().UTC()
	acc, err = svc.repo.UpdateAccount(ctx, acc)
	return acc, errors.Wrap(err, "setting last login")
}

func (svc *Service) GetByID(ctx context.Context, id string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// SaveAccount sets the password of the Account with the given email and activates it,
// creating the Account when it does not exist. Used by the admin CLI.
func (svc *Service) SaveAccount(ctx context.Context, email, pwd string) (Account, error) {
	acc, err := svc.GetByEmail(ctx, email)
	isNew := false
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return Account{}, err
		}
		isNew = true
		acc = Account{
			ID:        uuid.New().String(),
			Email:     core.CleanString(email, true /* lower */),
			CreatedAt: nowFunc().UTC(),
		}
	}
	acc.IsActive = true
	acc.UpdatedAt = nowFunc().UTC()
	if err = acc.SetPassword(pwd); err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}
	if isNew {
		return svc.repo.CreateAccount(ctx, acc)
	}
	return svc.repo.UpdateAccount(ctx, acc)
}

// SetPassword replaces the password of the Account with the given email.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) (Account, error) {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return Account{}, err
	}
	if err = acc.SetPassword(pwd); err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}
	acc.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateAccount(ctx, acc)
}

func (svc *Service) SetActive(ctx context.Context, id string, active bool) error {
	acc, err := svc.GetByID(ctx, id)
	if err != nil {
		return err
	}
	acc.IsActive = active
	acc.UpdatedAt = nowFunc().UTC()
	_, err = svc.repo.UpdateAccount(ctx, acc)
	return err
}

type passwordResetData struct {
	Name  string
	UID   string
	Token string
}

// RequestPasswordReset emails a password reset link to the Account's owner.
// Returns ErrNotFound for unknown emails, callers should not tell clients about it.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !acc.IsActive {
		return ErrNotFound
	}
	token, err := svc.tokens.makeToken(acc)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: acc.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: passwordResetData{
			Name:  acc.Email,
			UID:   EncodeUID(acc),
			Token: token,
		},
	})
	return nil
}

// ResetPassword sets a new password when the token matches the Account identified by the UID.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetPassword) (Account, error) {
	invalid := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})

	id, err := decodeUID(rp.UID)
	if err != nil {
		return Account{}, invalid
	}
	acc, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Account{}, invalid
		}
		return Account{}, errors.Wrap(err, "finding account by ID")
	}
	if err = svc.tokens.verifyToken(acc, rp.Token); err != nil {
		return Account{}, core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}

	if err = acc.SetPassword(rp.Password); err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}
	acc.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateAccount(ctx, acc)
}
