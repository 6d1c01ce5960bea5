package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/charlesng35/kiddies/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func record(t *testing.T, write func(c *gin.Context)) (*httptest.ResponseRecorder, *gin.Context, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	write(ctx)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, ctx, resp
}

func TestSuccessEnvelope(t *testing.T) {
	rec, _, resp := record(t, func(c *gin.Context) {
		Success(c, http.StatusCreated, gin.H{"id": "abc"})
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, resp.Success)
	require.Nil(t, resp.Error)
	require.JSONEq(t, `{"success":true,"data":{"id":"abc"}}`, rec.Body.String())
}

func TestSuccessWithMessage(t *testing.T) {
	_, _, resp := record(t, func(c *gin.Context) {
		SuccessWithMessage(c, http.StatusOK, "Census recorded", []string{"a"})
	})
	require.Equal(t, "Census recorded", resp.Message)
}

func TestErrorUsesAppErrorStatus(t *testing.T) {
	rec, ctx, resp := record(t, func(c *gin.Context) {
		Error(c, appErrors.ErrForbidden)
	})

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.False(t, resp.Success)
	require.Equal(t, appErrors.ErrForbidden.Code, resp.Error.Code)
	require.Empty(t, ctx.Errors)
}

func TestErrorHidesUnknownErrors(t *testing.T) {
	cause := errors.New("sql: connection refused")
	rec, ctx, resp := record(t, func(c *gin.Context) {
		Error(c, cause)
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, appErrors.ErrInternalServer.Message, resp.Error.Message)
	require.NotContains(t, rec.Body.String(), "connection refused")
	require.Len(t, ctx.Errors, 1)
	require.ErrorIs(t, ctx.Errors[0].Err, cause)
}

func TestErrorWithNilFallsBackToInternal(t *testing.T) {
	rec, _, resp := record(t, func(c *gin.Context) {
		Error(c, nil)
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, appErrors.ErrInternalServer.Code, resp.Error.Code)
}

func TestErrorWithDataKeepsPayload(t *testing.T) {
	rec, _, resp := record(t, func(c *gin.Context) {
		ErrorWithData(c, appErrors.ErrDependency, map[string]string{"inviteId": "abc"})
	})

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.False(t, resp.Success)
	require.Equal(t, appErrors.ErrDependency.Code, resp.Error.Code)
	require.Equal(t, map[string]any{"inviteId": "abc"}, resp.Data)
}
