package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/kiddies/internal/database"
	"github.com/charlesng35/kiddies/internal/database/testutil"
	apperrors "github.com/charlesng35/kiddies/pkg/errors"
)

func newTestSettingsService(t *testing.T, seed bool) *SettingsService {
	t.Helper()

	opt := testutil.WithAutoMigrate()
	if seed {
		opt = testutil.WithSeedData()
	}
	svc, err := NewSettingsService(testutil.MustOpenTestDB(t, opt))
	require.NoError(t, err)
	return svc
}

func TestServicesDefaultWhenUnset(t *testing.T) {
	svc := newTestSettingsService(t, false)

	slots, err := svc.Services(context.Background())
	require.NoError(t, err)
	require.Equal(t, database.DefaultServices(), slots)

	slot, err := svc.Service(context.Background(), "4")
	require.NoError(t, err)
	require.Equal(t, "Evening Service", slot.Name)

	slot, err = svc.Service(context.Background(), "99")
	require.NoError(t, err)
	require.Nil(t, slot)
}

func TestUpdateServices(t *testing.T) {
	svc := newTestSettingsService(t, true)

	updated, err := svc.UpdateServices(context.Background(), []database.ServiceSlot{
		{ID: "a", Name: " Sunrise ", Time: "6:00 AM"},
	}, "admin-id")
	require.NoError(t, err)
	require.Equal(t, "Sunrise", updated[0].Name)

	slots, err := svc.Services(context.Background())
	require.NoError(t, err)
	require.Equal(t, []database.ServiceSlot{{ID: "a", Name: "Sunrise", Time: "6:00 AM"}}, slots)

	setting, err := svc.Get(context.Background(), database.SettingServices)
	require.NoError(t, err)
	require.NotNil(t, setting.UpdatedBy)
	require.Equal(t, "admin-id", *setting.UpdatedBy)

	_, err = svc.UpdateServices(context.Background(), []database.ServiceSlot{{ID: "a", Name: "x"}}, "")
	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = svc.UpdateServices(context.Background(), nil, "")
	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = svc.UpdateServices(context.Background(), []database.ServiceSlot{
		{ID: "a", Name: "x", Time: "1"},
		{ID: "a", Name: "y", Time: "2"},
	}, "")
	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestMotto(t *testing.T) {
	svc := newTestSettingsService(t, false)

	motto, err := svc.Motto(context.Background())
	require.NoError(t, err)
	require.Equal(t, database.DefaultMotto, motto)

	motto, err = svc.UpdateMotto(context.Background(), "  Raising Champions ", "")
	require.NoError(t, err)
	require.Equal(t, "Raising Champions", motto)

	motto, err = svc.Motto(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Raising Champions", motto)

	_, err = svc.UpdateMotto(context.Background(), "   ", "")
	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestLogo(t *testing.T) {
	svc := newTestSettingsService(t, true)

	logo, err := svc.Logo(context.Background())
	require.NoError(t, err)
	require.Nil(t, logo)

	_, err = svc.UpdateLogo(context.Background(), "https://example.org/logo.png", "")
	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	stored, err := svc.UpdateLogo(context.Background(), "data:image/png;base64,iVBORw0KGgo=", "")
	require.NoError(t, err)
	require.Equal(t, "data:image/png;base64,iVBORw0KGgo=", *stored)

	logo, err = svc.Logo(context.Background())
	require.NoError(t, err)
	require.Equal(t, *stored, *logo)

	removed, err := svc.UpdateLogo(context.Background(), "", "")
	require.NoError(t, err)
	require.Nil(t, removed)

	_, err = svc.Get(context.Background(), database.SettingLogo)
	require.ErrorIs(t, err, ErrSettingNotFound)
}

func TestGetAndPutArbitrarySetting(t *testing.T) {
	svc := newTestSettingsService(t, true)

	_, err := svc.Get(context.Background(), "theme")
	require.ErrorIs(t, err, ErrSettingNotFound)

	setting, err := svc.Put(context.Background(), "theme", json.RawMessage(`{"primary":"#4299e1"}`), "admin-id")
	require.NoError(t, err)
	require.JSONEq(t, `{"primary":"#4299e1"}`, string(setting.Value))

	_, err = svc.Put(context.Background(), "theme", json.RawMessage(`{broken`), "")
	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = svc.Put(context.Background(), " ", json.RawMessage(`1`), "")
	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestPutValidatesTypedKeys(t *testing.T) {
	svc := newTestSettingsService(t, true)

	_, err := svc.Put(context.Background(), database.SettingMotto, json.RawMessage(`42`), "")
	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = svc.Put(context.Background(), database.SettingServices, json.RawMessage(`[{"id":"1"}]`), "")
	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	setting, err := svc.Put(context.Background(), database.SettingMotto, json.RawMessage(`"Little Lights"`), "")
	require.NoError(t, err)
	require.JSONEq(t, `"Little Lights"`, string(setting.Value))
}
