package users_test

import (
	"context"
	"testing"

	"order-crm/internal/apperrors"
	"order-crm/internal/auth"
	"order-crm/internal/database"
	"order-crm/internal/logger"
	"order-crm/internal/models"
	"order-crm/internal/users"
	userdb "order-crm/internal/users/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticShops []string

func (s staticShops) DistinctShops(ctx context.Context) ([]string, error) {
	return s, nil
}

func setupService(t *testing.T) *users.Service {
	bunDB, err := database.OpenSQLiteMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })
	return users.NewService(&userdb.DB{Bun: bunDB}, staticShops{"Zeta Shop", "Amazon US - Toys & Games"}, logger.Nop())
}

func operatorInput(name string, shops ...string) models.UserInput {
	return models.UserInput{Username: name, Email: name + "@crm.test", Role: models.RoleOperator, ShopPermissions: shops}
}

func TestCreateAndGet(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	user, err := s.Create(ctx, operatorInput("bob", "S2", " S1 ", "S1", ""))
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.Equal(t, []string{"S1", "S2"}, user.ShopPermissions)

	got, err := s.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)
	assert.Equal(t, []string{"S1", "S2"}, got.ShopPermissions)

	_, err = s.Create(ctx, operatorInput("bob"))
	assert.Equal(t, "CONFLICT", apperrors.CodeOf(err))

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreate_Validation(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	bad := []models.UserInput{
		{Username: "x", Email: "x@crm.test"},
		{Username: "x", Email: "not-an-email", Role: models.RoleOperator},
		{Username: "x", Email: "x@crm.test", Role: "owner"},
		{Username: "x", Email: "x@crm.test", Role: models.RoleOperator, Gender: "robot"},
		{Username: "x", Email: "x@crm.test", Role: models.RoleOperator, Status: "gone"},
		{Username: "x", Email: "x@crm.test", Role: models.RoleOperator, HireDate: "01/02/2024"},
	}
	for _, in := range bad {
		_, err := s.Create(ctx, in)
		assert.Equal(t, "VALIDATION_ERROR", apperrors.CodeOf(err), "%+v", in)
	}
}

func TestCreate_ValidationNamesJSONField(t *testing.T) {
	s := setupService(t)

	_, err := s.Create(context.Background(), models.UserInput{Username: "x", Email: "x@crm.test", Role: models.RoleOperator, BirthDate: "1990/01/01"})
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "birth_date", verr.Field)
	assert.Equal(t, "must be YYYY-MM-DD", verr.Message)

	_, err = s.Create(context.Background(), models.UserInput{Username: "x", Email: "x@crm.test", Role: "owner"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "role", verr.Field)
	assert.Contains(t, verr.Message, "operator")
}

func TestUpdateAndShopPermissions(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	user, err := s.Create(ctx, operatorInput("carol", "S1"))
	require.NoError(t, err)

	in := operatorInput("carol", "S3")
	in.Role = models.RoleTracker
	in.Department = "Logistics"
	updated, err := s.Update(ctx, user.ID, in)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTracker, updated.Role)

	got, err := s.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Logistics", got.Department)
	assert.Equal(t, []string{"S3"}, got.ShopPermissions)

	shops, err := s.SetShopPermissions(ctx, user.ID, []string{"B", "A", "A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, shops)

	_, err = s.SetShopPermissions(ctx, user.ID+50, []string{"A"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDelete(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	user, err := s.Create(ctx, operatorInput("dave", "S1"))
	require.NoError(t, err)

	self := models.Principal{UserID: user.ID, Role: models.RoleAdmin}
	assert.Equal(t, "VALIDATION_ERROR", apperrors.CodeOf(s.Delete(ctx, self, user.ID)))

	admin := models.Principal{UserID: user.ID + 1000, Role: models.RoleAdmin}
	require.NoError(t, s.Delete(ctx, admin, user.ID))
	assert.True(t, apperrors.IsNotFound(s.Delete(ctx, admin, user.ID)))
}

func TestResolvePrincipal(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	active, err := s.Create(ctx, operatorInput("erin", "S1"))
	require.NoError(t, err)
	suspendedIn := operatorInput("frank")
	suspendedIn.Status = models.UserStatusSuspended
	suspended, err := s.Create(ctx, suspendedIn)
	require.NoError(t, err)

	p, err := s.ResolvePrincipal(ctx, auth.Claims{UserID: active.ID})
	require.NoError(t, err)
	assert.Equal(t, "erin", p.Username)
	assert.Equal(t, []string{"S1"}, p.Shops)

	p, err = s.ResolvePrincipal(ctx, auth.Claims{Email: "erin@crm.test"})
	require.NoError(t, err)
	assert.Equal(t, active.ID, p.UserID)

	_, err = s.ResolvePrincipal(ctx, auth.Claims{UserID: suspended.ID})
	assert.Equal(t, "PERMISSION_DENIED", apperrors.CodeOf(err))

	_, err = s.ResolvePrincipal(ctx, auth.Claims{UserID: 9999})
	assert.Equal(t, "UNAUTHORIZED", apperrors.CodeOf(err))

	_, err = s.ResolvePrincipal(ctx, auth.Claims{})
	assert.Equal(t, "UNAUTHORIZED", apperrors.CodeOf(err))
}

func TestAssignableShops(t *testing.T) {
	s := setupService(t)
	shops, err := s.AssignableShops(context.Background())
	require.NoError(t, err)
	assert.Contains(t, shops, "Zeta Shop")
	assert.Equal(t, len(users.PredefinedShops)+1, len(shops))
	assert.IsIncreasing(t, shops)
}
