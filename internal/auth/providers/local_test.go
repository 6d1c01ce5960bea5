package providers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/database/testutil"
	"github.com/charlesng35/kiddies/internal/models"
	"github.com/charlesng35/kiddies/pkg/crypto"
)

func TestAuthenticateSuccess(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	provider := newLocalProvider(t, db)

	user := createUser(t, db, "alice@example.com", "password123")

	result, err := provider.Authenticate(context.Background(), AuthenticateInput{
		Email:    "  Alice@Example.com ",
		Password: "password123",
	})
	require.NoError(t, err)
	require.Equal(t, user.ID, result.ID)
	require.Equal(t, "alice@example.com", result.Email)
}

func TestAuthenticateInvalidPassword(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	provider := newLocalProvider(t, db)
	createUser(t, db, "bob@example.com", "correct")

	_, err := provider.Authenticate(context.Background(), AuthenticateInput{Email: "bob@example.com", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	provider := newLocalProvider(t, db)

	_, err := provider.Authenticate(context.Background(), AuthenticateInput{Email: "nobody@example.com", Password: "secret"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateMissingFields(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	provider := newLocalProvider(t, db)

	_, err := provider.Authenticate(context.Background(), AuthenticateInput{Email: "", Password: "secret"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = provider.Authenticate(context.Background(), AuthenticateInput{Email: "a@b.c"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateInactiveUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	provider := newLocalProvider(t, db)

	testutil.MustCreateUser(t, db, testutil.UserFixture{Email: "carol@example.com", Password: "secret", Inactive: true})

	_, err := provider.Authenticate(context.Background(), AuthenticateInput{Email: "carol@example.com", Password: "secret"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateNeverCrossesAccounts(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	provider := newLocalProvider(t, db)

	emails := []string{"a@example.com", "b@example.com", "c@example.com"}
	users := make(map[string]*models.User, len(emails))
	for _, email := range emails {
		users[email] = createUser(t, db, email, "pw-"+email)
	}

	for _, email := range emails {
		result, err := provider.Authenticate(context.Background(), AuthenticateInput{Email: email, Password: "pw-" + email})
		require.NoError(t, err)
		require.Equal(t, users[email].ID, result.ID)

		for _, other := range emails {
			if other == email {
				continue
			}
			_, err := provider.Authenticate(context.Background(), AuthenticateInput{Email: other, Password: "pw-" + email})
			require.ErrorIs(t, err, ErrInvalidCredentials)
		}
	}
}

func TestHashPasswordRejectsBlank(t *testing.T) {
	_, err := HashPassword("   ")
	require.Error(t, err)

	hashed, err := HashPassword("secret")
	require.NoError(t, err)
	require.NotEqual(t, "secret", hashed)
}

func TestNewLocalProviderRequiresDB(t *testing.T) {
	_, err := NewLocalProvider(nil)
	require.Error(t, err)
}

func newLocalProvider(t *testing.T, db *gorm.DB) *LocalProvider {
	t.Helper()
	provider, err := NewLocalProvider(db)
	require.NoError(t, err)
	return provider
}

func createUser(t *testing.T, db *gorm.DB, email, password string) *models.User {
	t.Helper()
	return testutil.MustCreateUser(t, db, testutil.UserFixture{Email: email, Password: password})
}

func TestAuthenticateUpgradesWeakHashes(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	provider := newLocalProvider(t, db)
	user := createUser(t, db, "dave@example.com", "password123")

	weak, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("password", string(weak)).Error)

	_, err = provider.Authenticate(context.Background(), AuthenticateInput{Email: "dave@example.com", Password: "password123"})
	require.NoError(t, err)

	var stored models.User
	require.NoError(t, db.Take(&stored, "id = ?", user.ID).Error)
	require.NotEqual(t, string(weak), stored.PasswordHash)
	require.False(t, crypto.NeedsRehash(stored.PasswordHash))
	require.True(t, crypto.VerifyPassword(stored.PasswordHash, "password123"))
}

func TestHashPasswordRejectsOverlongPasswords(t *testing.T) {
	_, err := HashPassword(strings.Repeat("x", 80))
	require.ErrorIs(t, err, crypto.ErrPasswordTooLong)
}
