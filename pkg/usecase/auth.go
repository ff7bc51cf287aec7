package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/model/auth"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/utils/logging"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultTokenTTL is the lifetime of an issued session token
	DefaultTokenTTL = 7 * 24 * time.Hour

	// MinPasswordLength is the shortest password accepted at registration and user creation
	MinPasswordLength = 8

	tokenIssuer    = "compliflow"
	claimOrgID     = "org"
	claimRole      = "role"
	claimUserEmail = "email"
)

// AuthUseCase registers tenants, issues session tokens and manages users
type AuthUseCase struct {
	repo       interfaces.Repository
	workflow   *WorkflowUseCase
	audit      *AuditUseCase
	signingKey []byte
	tokenTTL   time.Duration
	template   *model.Workflow
	bcryptCost int
	clock      func() time.Time
}

// AuthOption configures AuthUseCase
type AuthOption func(*AuthUseCase)

// WithBcryptCost overrides the password hashing cost
func WithBcryptCost(cost int) AuthOption {
	return func(uc *AuthUseCase) {
		uc.bcryptCost = cost
	}
}

// WithAuthClock overrides the clock used for token issue and validation
func WithAuthClock(clock func() time.Time) AuthOption {
	return func(uc *AuthUseCase) {
		uc.clock = clock
	}
}

// NewAuthUseCase creates an AuthUseCase. A zero tokenTTL means DefaultTokenTTL and a
// nil template means model.DefaultWorkflowTemplate.
func NewAuthUseCase(repo interfaces.Repository, workflow *WorkflowUseCase, audit *AuditUseCase, signingKey []byte, tokenTTL time.Duration, template *model.Workflow, opts ...AuthOption) *AuthUseCase {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	if template == nil {
		template = model.DefaultWorkflowTemplate()
	}

	uc := &AuthUseCase{
		repo:       repo,
		workflow:   workflow,
		audit:      audit,
		signingKey: signingKey,
		tokenTTL:   tokenTTL,
		template:   template,
		bcryptCost: bcrypt.DefaultCost,
		clock:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Session is returned by Register and Login
type Session struct {
	Token        string              `json:"token"`
	ExpiresAt    time.Time           `json:"expiresAt"`
	User         *model.User         `json:"user"`
	Organization *model.Organization `json:"organization"`
}

// RegisterInput creates a new tenant together with its first Admin
type RegisterInput struct {
	Name             string
	Email            string
	Password         string
	OrganizationName string
	Industry         types.Industry
}

func (in *RegisterInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return goerr.Wrap(ErrInvalidInput, "name is required", goerr.V(FieldKey, "name"))
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}
	if model.Slugify(in.OrganizationName) == "" {
		return goerr.Wrap(ErrInvalidInput, "organization name is required", goerr.V(FieldKey, "organizationName"))
	}
	if !in.Industry.Normalize().IsValid() {
		return goerr.Wrap(ErrInvalidInput, "invalid industry", goerr.V(FieldKey, "industry"), goerr.V("industry", in.Industry))
	}
	return nil
}

func validateEmail(email string) error {
	normalized := model.NormalizeEmail(email)
	at := strings.Index(normalized, "@")
	if at <= 0 || at == len(normalized)-1 || strings.ContainsAny(normalized, " \t") {
		return goerr.Wrap(ErrInvalidInput, "invalid email", goerr.V(FieldKey, "email"))
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return goerr.Wrap(ErrInvalidInput, "password is too short",
			goerr.V(FieldKey, "password"), goerr.V("min_length", MinPasswordLength))
	}
	return nil
}

func userSnapshot(u *model.User) model.Snapshot {
	return model.Snapshot{
		"name":     u.Name,
		"email":    u.Email,
		"role":     string(u.Role),
		"isActive": u.IsActive,
	}
}

// Register creates an organization, its Admin user and the default workflow, then
// signs the user in.
func (uc *AuthUseCase) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	email := model.NormalizeEmail(input.Email)
	if _, err := uc.repo.User().GetByEmail(ctx, email); err == nil {
		return nil, goerr.Wrap(ErrDuplicateEmail, "email already registered", goerr.V("email", email))
	} else if !errors.Is(err, interfaces.ErrNotFound) {
		return nil, goerr.Wrap(err, "failed to look up user by email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), uc.bcryptCost)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to hash password")
	}

	name := strings.TrimSpace(input.OrganizationName)
	org, err := uc.repo.Organization().Create(ctx, &model.Organization{
		Name:           name,
		Slug:           model.Slugify(name),
		Industry:       input.Industry.Normalize(),
		IsActive:       true,
		SLADefaultDays: model.DefaultSLADays,
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrDuplicate) {
			return nil, goerr.Wrap(ErrDuplicateOrganizationName, "organization name already exists", goerr.V("name", name))
		}
		return nil, goerr.Wrap(err, "failed to create organization")
	}

	user, err := uc.repo.User().Create(ctx, &model.User{
		OrganizationID: org.ID,
		Name:           strings.TrimSpace(input.Name),
		Email:          email,
		PasswordHash:   string(hash),
		Role:           types.RoleAdmin,
		IsActive:       true,
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrDuplicate) {
			return nil, goerr.Wrap(ErrDuplicateEmail, "email already registered", goerr.V("email", email))
		}
		return nil, goerr.Wrap(err, "failed to create user", goerr.V(OrganizationIDKey, org.ID))
	}

	actor := auth.NewActor(user)
	wf, err := uc.workflow.CreateWorkflow(ctx, actor, uc.templateInput())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to install default workflow", goerr.V(OrganizationIDKey, org.ID))
	}
	org.DefaultWorkflowID = wf.ID

	uc.audit.record(ctx, actor, types.AuditActionRegister, types.EntityUser, string(user.ID), nil, model.Snapshot{
		"name":  user.Name,
		"email": user.Email,
		"role":  string(user.Role),
	})

	logging.From(ctx).Info("organization registered",
		"organization_id", org.ID,
		"slug", org.Slug,
		"user_id", user.ID)

	return uc.newSession(user, org)
}

func (uc *AuthUseCase) templateInput() WorkflowInput {
	tpl := uc.template.Copy()
	active, isDefault := true, true
	return WorkflowInput{
		Name:         tpl.Name,
		States:       tpl.States,
		InitialState: tpl.InitialState,
		FinalStates:  tpl.FinalStates,
		Transitions:  tpl.Transitions,
		IsDefault:    &isDefault,
		IsActive:     &active,
	}
}

// Login checks credentials. Unknown email, wrong password and inactive users all
// fail with the same ErrInvalidCredentials.
func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := uc.repo.User().GetByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrInvalidCredentials, "unknown email")
		}
		return nil, goerr.Wrap(err, "failed to look up user by email")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, goerr.Wrap(ErrInvalidCredentials, "password mismatch", goerr.V(UserIDKey, user.ID))
	}
	if !user.IsActive {
		return nil, goerr.Wrap(ErrInvalidCredentials, "user is deactivated", goerr.V(UserIDKey, user.ID))
	}

	org, err := uc.repo.Organization().Get(ctx, user.OrganizationID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load organization", goerr.V(OrganizationIDKey, user.OrganizationID))
	}

	uc.audit.record(ctx, auth.NewActor(user), types.AuditActionLogin, types.EntityUser, string(user.ID), nil, nil)

	return uc.newSession(user, org)
}

func (uc *AuthUseCase) newSession(user *model.User, org *model.Organization) (*Session, error) {
	now := uc.clock()
	expiresAt := now.Add(uc.tokenTTL)

	token, err := jwt.NewBuilder().
		Issuer(tokenIssuer).
		Subject(string(user.ID)).
		IssuedAt(now).
		Expiration(expiresAt).
		Claim(claimOrgID, string(user.OrganizationID)).
		Claim(claimRole, string(user.Role)).
		Claim(claimUserEmail, user.Email).
		Build()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build token")
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, uc.signingKey))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to sign token")
	}

	return &Session{
		Token:        string(signed),
		ExpiresAt:    expiresAt,
		User:         user,
		Organization: org,
	}, nil
}

// Authenticate verifies a session token and returns the current actor. The role is
// read from storage so role changes and deactivation apply immediately.
func (uc *AuthUseCase) Authenticate(ctx context.Context, token string) (*auth.Actor, error) {
	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, uc.signingKey),
		jwt.WithValidate(true),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithClock(jwt.ClockFunc(uc.clock)),
	)
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidCredentials, "invalid token", goerr.V("reason", err.Error()))
	}

	raw, ok := parsed.Get(claimOrgID)
	orgID, isString := raw.(string)
	if !ok || !isString || orgID == "" || parsed.Subject() == "" {
		return nil, goerr.Wrap(ErrInvalidCredentials, "token lacks required claims")
	}

	user, err := uc.repo.User().Get(ctx, model.OrganizationID(orgID), model.UserID(parsed.Subject()))
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrInvalidCredentials, "token subject no longer exists")
		}
		return nil, goerr.Wrap(err, "failed to load token subject")
	}
	if !user.IsActive {
		return nil, goerr.Wrap(ErrInvalidCredentials, "user is deactivated", goerr.V(UserIDKey, user.ID))
	}

	return auth.NewActor(user), nil
}

// GetMe returns the actor's user record and organization
func (uc *AuthUseCase) GetMe(ctx context.Context, actor *auth.Actor) (*model.User, *model.Organization, error) {
	user, err := uc.repo.User().Get(ctx, actor.OrganizationID, actor.UserID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil, goerr.Wrap(ErrUserNotFound, "user not found", goerr.V(UserIDKey, actor.UserID))
		}
		return nil, nil, goerr.Wrap(err, "failed to load user")
	}
	org, err := uc.repo.Organization().Get(ctx, actor.OrganizationID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil, goerr.Wrap(ErrOrganizationNotFound, "organization not found", goerr.V(OrganizationIDKey, actor.OrganizationID))
		}
		return nil, nil, goerr.Wrap(err, "failed to load organization")
	}
	return user, org, nil
}

// CreateUserInput adds a user to the actor's organization
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     types.Role
}

// CreateUser adds a user to the actor's organization. Admin only.
func (uc *AuthUseCase) CreateUser(ctx context.Context, actor *auth.Actor, input CreateUserInput) (*model.User, error) {
	if err := requireAdmin(actor, "creating a user"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "name is required", goerr.V(FieldKey, "name"))
	}
	if err := validateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	if input.Role == "" {
		input.Role = types.RoleUser
	}
	if !input.Role.IsValid() {
		return nil, goerr.Wrap(ErrInvalidInput, "invalid role", goerr.V(FieldKey, "role"), goerr.V(RoleKey, input.Role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), uc.bcryptCost)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to hash password")
	}

	user, err := uc.repo.User().Create(ctx, &model.User{
		OrganizationID: actor.OrganizationID,
		Name:           strings.TrimSpace(input.Name),
		Email:          model.NormalizeEmail(input.Email),
		PasswordHash:   string(hash),
		Role:           input.Role,
		IsActive:       true,
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrDuplicate) {
			return nil, goerr.Wrap(ErrDuplicateEmail, "email already registered", goerr.V("email", input.Email))
		}
		return nil, goerr.Wrap(err, "failed to create user")
	}

	uc.audit.record(ctx, actor, types.AuditActionCreate, types.EntityUser, string(user.ID), nil, userSnapshot(user))
	return user, nil
}

// ListUsers returns the users of the actor's organization. Admin and Manager only.
func (uc *AuthUseCase) ListUsers(ctx context.Context, actor *auth.Actor) ([]*model.User, error) {
	if !actor.HasRole(types.RoleAdmin, types.RoleManager) {
		return nil, goerr.Wrap(ErrPermissionDenied, "listing users requires Admin or Manager", goerr.V(RoleKey, actor.Role))
	}
	users, err := uc.repo.User().List(ctx, actor.OrganizationID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list users", goerr.V(OrganizationIDKey, actor.OrganizationID))
	}
	return users, nil
}

// DeactivateUser marks a user inactive. Users are never deleted. Admin only.
func (uc *AuthUseCase) DeactivateUser(ctx context.Context, actor *auth.Actor, id model.UserID) (*model.User, error) {
	if err := requireAdmin(actor, "deactivating a user"); err != nil {
		return nil, err
	}
	if id == actor.UserID {
		return nil, goerr.Wrap(ErrInvalidInput, "cannot deactivate yourself", goerr.V(UserIDKey, id))
	}

	user, err := uc.repo.User().Get(ctx, actor.OrganizationID, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrUserNotFound, "user not found", goerr.V(UserIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to load user", goerr.V(UserIDKey, id))
	}
	if !user.IsActive {
		return user, nil
	}

	prev := userSnapshot(user)
	user.IsActive = false
	updated, err := uc.repo.User().Update(ctx, user)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to deactivate user", goerr.V(UserIDKey, id))
	}

	uc.audit.record(ctx, actor, types.AuditActionUpdate, types.EntityUser, string(id), prev, userSnapshot(updated))
	return updated, nil
}
