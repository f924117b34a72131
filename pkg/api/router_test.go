package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsefit/checkin-sync/pkg/session"
	"github.com/pulsefit/checkin-sync/schema"
)

type fakeService struct {
	checkInRec  *schema.SessionRecord
	checkInErr  error
	checkOutRec *schema.SessionRecord
	checkOutErr error

	lastMemberID string
}

func (f *fakeService) CheckIn(ctx context.Context, memberID string, lat, lon *float64) (*schema.SessionRecord, error) {
	f.lastMemberID = memberID
	return f.checkInRec, f.checkInErr
}

func (f *fakeService) CheckOut(ctx context.Context, memberID string) (*schema.SessionRecord, error) {
	f.lastMemberID = memberID
	return f.checkOutRec, f.checkOutErr
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCheckInEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeService{
		checkInRec: &schema.SessionRecord{ID: "s1", MemberID: "m1", CheckIn: time.Now().UTC()},
	}
	router := NewRouter(svc)

	w := performJSON(t, router, http.MethodPost, "/v1/checkin",
		gin.H{"member_id": "m1", "latitude": 59.3293, "longitude": 18.0686})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m1", svc.lastMemberID)

	var rec schema.SessionRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "s1", rec.ID)
	assert.Nil(t, rec.CheckOut)
}

func TestCheckInMissingMemberID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeService{}
	router := NewRouter(svc)

	w := performJSON(t, router, http.MethodPost, "/v1/checkin", gin.H{"latitude": 1.0})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckInServiceFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeService{checkInErr: errors.New("db down")}
	router := NewRouter(svc)

	w := performJSON(t, router, http.MethodPost, "/v1/checkin", gin.H{"member_id": "m1"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCheckOutEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now().UTC()
	svc := &fakeService{
		checkOutRec: &schema.SessionRecord{ID: "s1", MemberID: "m1", CheckIn: now.Add(-time.Hour), CheckOut: &now},
	}
	router := NewRouter(svc)

	w := performJSON(t, router, http.MethodPost, "/v1/checkout", gin.H{"member_id": "m1"})

	assert.Equal(t, http.StatusOK, w.Code)

	var rec schema.SessionRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.NotNil(t, rec.CheckOut)
}

func TestCheckOutNoOpenSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeService{checkOutErr: session.ErrNotFound}
	router := NewRouter(svc)

	w := performJSON(t, router, http.MethodPost, "/v1/checkout", gin.H{"member_id": "m1"})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no open session")
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(&fakeService{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
