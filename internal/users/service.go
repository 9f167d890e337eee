package users

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"order-crm/internal/apperrors"
	"order-crm/internal/auth"
	"order-crm/internal/logger"
	"order-crm/internal/models"
	userdb "order-crm/internal/users/db"

	"github.com/go-playground/validator/v10"
)

type DBLayer interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string, excludeID int64) (bool, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id int64) error
	SetShopPermissions(ctx context.Context, userID int64, shops []string) error
}

// ShopSource lists shop names already used by orders.
type ShopSource interface {
	DistinctShops(ctx context.Context) ([]string, error)
}

type Service struct {
	DB     DBLayer
	Shops  ShopSource
	Logger *logger.Logger
	now    func() time.Time
}

func NewService(db DBLayer, shops ShopSource, l *logger.Logger) *Service {
	return &Service{DB: db, Shops: shops, Logger: l, now: time.Now}
}

var validate = newValidator()

// newValidator reports failing fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	users, err := s.DB.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.DB.GetUser(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, id)
	}
	return user, nil
}

// Me returns the caller's own account.
func (s *Service) Me(ctx context.Context, actor models.Principal) (*models.User, error) {
	return s.Get(ctx, actor.UserID)
}

func (s *Service) Create(ctx context.Context, in models.UserInput) (*models.User, error) {
	if in.Status == "" {
		in.Status = models.UserStatusActive
	}
	if err := s.validate(ctx, &in, 0); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &models.User{CreatedAt: now}
	apply(user, in, now)
	if err := s.DB.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.Logger.Info("USERS", fmt.Sprintf("User %s (%s) created with %d shop(s)", user.Username, user.Role, len(user.ShopPermissions)))
	return user, nil
}

// Update replaces the profile and shop grants of user id.
func (s *Service) Update(ctx context.Context, id int64, in models.UserInput) (*models.User, error) {
	user, err := s.DB.GetUser(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, id)
	}
	if in.Status == "" {
		in.Status = models.UserStatusActive
	}
	if err := s.validate(ctx, &in, id); err != nil {
		return nil, err
	}

	apply(user, in, s.now().UTC())
	if err := s.DB.UpdateUser(ctx, user); err != nil {
		return nil, s.mapErr(err, id)
	}
	s.Logger.Info("USERS", fmt.Sprintf("User #%d updated", id))
	return user, nil
}

// Delete removes a user and its grants. Administrators cannot delete
// themselves.
func (s *Service) Delete(ctx context.Context, actor models.Principal, id int64) error {
	if actor.UserID == id {
		return apperrors.NewValidationError("id", "cannot delete your own account")
	}
	if err := s.DB.DeleteUser(ctx, id); err != nil {
		return s.mapErr(err, id)
	}
	s.Logger.LogSecurity("USER_DELETED", fmt.Sprintf("user #%d deleted by #%d", id, actor.UserID))
	return nil
}

func (s *Service) SetShopPermissions(ctx context.Context, id int64, shops []string) ([]string, error) {
	shops = cleanShops(shops)
	if err := s.DB.SetShopPermissions(ctx, id, shops); err != nil {
		return nil, s.mapErr(err, id)
	}
	s.Logger.Info("USERS", fmt.Sprintf("User #%d now has %d shop(s)", id, len(shops)))
	return shops, nil
}

// AssignableShops merges the predefined catalogue with shops found in orders.
func (s *Service) AssignableShops(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	for _, shop := range PredefinedShops {
		seen[shop] = true
	}
	if s.Shops != nil {
		used, err := s.Shops.DistinctShops(ctx)
		if err != nil {
			return nil, fmt.Errorf("list order shops: %w", err)
		}
		for _, shop := range used {
			seen[shop] = true
		}
	}
	out := make([]string, 0, len(seen))
	for shop := range seen {
		out = append(out, shop)
	}
	sort.Strings(out)
	return out, nil
}

// ResolvePrincipal maps verified token claims to an active account.
func (s *Service) ResolvePrincipal(ctx context.Context, claims auth.Claims) (models.Principal, error) {
	var (
		user *models.User
		err  error
	)
	switch {
	case claims.UserID > 0:
		user, err = s.DB.GetUser(ctx, claims.UserID)
	case claims.Email != "":
		user, err = s.DB.GetUserByEmail(ctx, claims.Email)
	default:
		return models.Principal{}, apperrors.NewUnauthorizedError("token does not identify a user")
	}
	if errors.Is(err, userdb.ErrUserNotFound) {
		return models.Principal{}, apperrors.NewUnauthorizedError("unknown user")
	}
	if err != nil {
		return models.Principal{}, apperrors.NewInternalError("resolve user", err)
	}
	if user.Status != models.UserStatusActive {
		return models.Principal{}, apperrors.NewPermissionError("use", fmt.Sprintf("%s account", user.Status))
	}

	return models.Principal{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		Shops:    user.ShopPermissions,
	}, nil
}

func (s *Service) validate(ctx context.Context, in *models.UserInput, excludeID int64) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validate.Struct(in); err != nil {
		return validationError(err)
	}

	taken, err := s.DB.ExistsByUsernameOrEmail(ctx, in.Username, in.Email, excludeID)
	if err != nil {
		return fmt.Errorf("check user uniqueness: %w", err)
	}
	if taken {
		return apperrors.NewConflictError("user", "username or email", in.Username)
	}
	in.ShopPermissions = cleanShops(in.ShopPermissions)
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.NewValidationError("", err.Error())
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return apperrors.NewValidationError(fe.Field(), "is required")
	case "email":
		return apperrors.NewValidationError(fe.Field(), "invalid email address")
	case "oneof":
		return apperrors.NewValidationError(fe.Field(), fmt.Sprintf("must be one of: %s", fe.Param()))
	case "datetime":
		return apperrors.NewValidationError(fe.Field(), "must be YYYY-MM-DD")
	case "max":
		return apperrors.NewValidationError(fe.Field(), fmt.Sprintf("must be at most %s characters", fe.Param()))
	default:
		return apperrors.NewValidationError(fe.Field(), fmt.Sprintf("failed %q check", fe.Tag()))
	}
}

func apply(user *models.User, in models.UserInput, now time.Time) {
	user.Username = in.Username
	user.Email = in.Email
	user.Role = in.Role
	user.Phone = in.Phone
	user.Gender = in.Gender
	user.BirthDate = in.BirthDate
	user.HireDate = in.HireDate
	user.Department = in.Department
	user.Position = in.Position
	user.EmergencyContact = in.EmergencyContact
	user.EmergencyPhone = in.EmergencyPhone
	user.Address = in.Address
	user.Bio = in.Bio
	user.Status = in.Status
	user.ShopPermissions = in.ShopPermissions
	user.UpdatedAt = now
}

// cleanShops trims, drops blanks and de-duplicates.
func cleanShops(shops []string) []string {
	seen := make(map[string]bool, len(shops))
	out := make([]string, 0, len(shops))
	for _, shop := range shops {
		shop = strings.TrimSpace(shop)
		if shop == "" || seen[shop] {
			continue
		}
		seen[shop] = true
		out = append(out, shop)
	}
	sort.Strings(out)
	return out
}

func (s *Service) mapErr(err error, id int64) error {
	if errors.Is(err, userdb.ErrUserNotFound) {
		return apperrors.NewNotFoundError("user", strconv.FormatInt(id, 10))
	}
	return err
}
