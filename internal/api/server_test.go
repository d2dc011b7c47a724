package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/transfer-tracker/config"
	"github.com/vultisig/transfer-tracker/tracker"
	"github.com/vultisig/transfer-tracker/types"
)

type fakeTracking struct {
	started []string
	stopped int
	err     error
}

func (f *fakeTracking) Start(_ context.Context, packetHash string) error {
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, packetHash)
	return nil
}

func (f *fakeTracking) Stop()         { f.stopped++ }
func (f *fakeTracking) Running() bool { return len(f.started) > f.stopped }

const testSecret = "test-secret"

func newTestServer(t *testing.T, tracking Tracking) (*Server, *tracker.Store) {
	t.Helper()
	logger := logrus.New()
	store := tracker.NewStore(logger)
	return NewServer(config.ApiConfig{JWTSecret: testSecret}, logger, store, tracking, false), store
}

func testToken(t *testing.T, secret string, ttl time.Duration) string {
	t.Helper()
	token, err := NewAuthService(secret).GenerateToken("test", ttl)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doWithToken(t, s, method, target, body, "")
}

func doWithToken(t *testing.T, s *Server, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

type viewResponse struct {
	Data struct {
		PacketHash string           `json:"packet_hash"`
		State      string           `json:"state"`
		Outcome    string           `json:"outcome"`
		Data       *json.RawMessage `json:"data"`
		Error      *types.ErrorBody `json:"error"`
	} `json:"data"`
}

func TestServer_getTransfer(t *testing.T) {
	s, store := newTestServer(t, nil)
	store.Reset("0x01")
	store.SetError(types.NewNotFoundError())

	rec := do(t, s, http.MethodGet, "/transfer", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp viewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "0x01", resp.Data.PacketHash)
	assert.Equal(t, string(tracker.StatePolling), resp.Data.State)
	assert.Equal(t, string(tracker.OutcomePending), resp.Data.Outcome)
	assert.Nil(t, resp.Data.Data)
	require.NotNil(t, resp.Data.Error)
	assert.Equal(t, types.TagNotFound, resp.Data.Error.Tag)
	assert.Equal(t, "Transfer not found", resp.Data.Error.Message)
}

func TestServer_getTransfer_withData(t *testing.T) {
	s, store := newTestServer(t, nil)
	store.Reset("0x01")
	store.Set(types.Some(types.TransferRecord{
		SenderCanonical: "0xabc",
		Success:         types.Some(true),
	}), nil)

	rec := do(t, s, http.MethodGet, "/transfer/0x01", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp viewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(tracker.OutcomeSucceeded), resp.Data.Outcome)
	assert.Nil(t, resp.Data.Error)
	require.NotNil(t, resp.Data.Data)

	var data types.TransferRecord
	require.NoError(t, json.Unmarshal(*resp.Data.Data, &data))
	assert.Equal(t, "0xabc", data.SenderCanonical)
	assert.True(t, data.Succeeded())
}

func TestServer_getTransferByHash_notTracked(t *testing.T) {
	s, store := newTestServer(t, nil)
	store.Reset("0x01")

	rec := do(t, s, http.MethodGet, "/transfer/0x02", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgNotTracked)
}

func TestServer_tracking(t *testing.T) {
	tracking := &fakeTracking{}
	s, _ := newTestServer(t, tracking)
	token := testToken(t, testSecret, time.Minute)

	rec := doWithToken(t, s, http.MethodPost, "/track", `{"packet_hash":"0x01"}`, token)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"0x01"}, tracking.started)
	assert.Contains(t, rec.Body.String(), `"running":true`)

	rec = doWithToken(t, s, http.MethodPost, "/track", `{}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doWithToken(t, s, http.MethodDelete, "/track", "", token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, tracking.stopped)
}

func TestServer_tracking_unauthorized(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "missing token", want: MsgAuthRequired},
		{name: "garbage token", token: "not-a-jwt", want: MsgUnauthorized},
		{name: "other secret", token: "other", want: MsgUnauthorized},
		{name: "expired", token: "expired", want: MsgUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracking := &fakeTracking{}
			s, _ := newTestServer(t, tracking)

			token := tt.token
			switch token {
			case "other":
				token = testToken(t, "other-secret", time.Minute)
			case "expired":
				claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}
				var err error
				token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
				require.NoError(t, err)
			}

			rec := doWithToken(t, s, http.MethodPost, "/track", `{"packet_hash":"0x01"}`, token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)

			rec = doWithToken(t, s, http.MethodDelete, "/track", "", token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			assert.Empty(t, tracking.started)
			assert.Zero(t, tracking.stopped)
		})
	}
}

func TestServer_tracking_noSecret(t *testing.T) {
	tracking := &fakeTracking{}
	s := NewServer(config.ApiConfig{}, logrus.New(), tracker.NewStore(logrus.New()), tracking, false)

	rec := doWithToken(t, s, http.MethodPost, "/track", `{"packet_hash":"0x01"}`, testToken(t, testSecret, time.Minute))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, tracking.started)
}

func TestServer_tracking_failure(t *testing.T) {
	s, _ := newTestServer(t, &fakeTracking{err: errors.New("boom")})

	rec := doWithToken(t, s, http.MethodPost, "/track", `{"packet_hash":"0x01"}`, testToken(t, testSecret, time.Minute))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_tracking_disabled(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := doWithToken(t, s, http.MethodPost, "/track", `{"packet_hash":"0x01"}`, testToken(t, testSecret, time.Minute))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_healthz(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
