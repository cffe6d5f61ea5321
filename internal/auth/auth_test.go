package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

func TestSigner_RoundTrip(t *testing.T) {
	s, err := NewSigner("s3cret", time.Hour)
	require.NoError(t, err)

	tok, err := s.Issue(types.Admin{ID: 7, Name: "JEFE", TagCode: "00AABBCC"})
	require.NoError(t, err)

	c, err := s.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, int64(7), c.AdminID())
	require.Equal(t, "JEFE", c.Name)
	require.Equal(t, "00AABBCC", c.Tag)
}

func TestSigner_RejectsBadTokens(t *testing.T) {
	s, _ := NewSigner("s3cret", time.Hour)
	other, _ := NewSigner("other", time.Hour)

	tok, err := other.Issue(types.Admin{ID: 1})
	require.NoError(t, err)
	_, err = s.Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Parse("")
	require.ErrorIs(t, err, ErrInvalidToken)

	expired, _ := NewSigner("s3cret", time.Minute)
	expired.now = func() time.Time { return time.Now().UTC().Add(-time.Hour) }
	tok, _ = expired.Issue(types.Admin{ID: 1})
	_, err = s.Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewSigner_RequiresSecret(t *testing.T) {
	_, err := NewSigner("  ", time.Hour)
	require.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	s, _ := NewSigner("s3cret", time.Hour)
	h := s.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, int64(3), c.AdminID())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/admins", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, _ := s.Issue(types.Admin{ID: 3})
	req := httptest.NewRequest(http.MethodGet, "/admin/admins", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
