package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/talk2m-gateway/internal/api/middleware"
	cfgpkg "github.com/taoyao-code/talk2m-gateway/internal/config"
	"github.com/taoyao-code/talk2m-gateway/internal/ebd"
	"github.com/taoyao-code/talk2m-gateway/internal/session"
	"github.com/taoyao-code/talk2m-gateway/internal/storage/models"
	pgstorage "github.com/taoyao-code/talk2m-gateway/internal/storage/pg"
	redisstore "github.com/taoyao-code/talk2m-gateway/internal/storage/redis"
	"github.com/taoyao-code/talk2m-gateway/internal/talk2m"
)

type fakeGateway struct {
	mode     session.Mode
	token    bool
	startErr error
	endErr   error
	listErr  error
	ewons    []talk2m.Ewon
}

func (f *fakeGateway) Mode() session.Mode    { return f.mode }
func (f *fakeGateway) HasSessionToken() bool { return f.token }

func (f *fakeGateway) StartSession(context.Context) (*talk2m.LoginResult, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.mode, f.token = session.ModeStateful, true
	return &talk2m.LoginResult{Message: "welcome", SessionToken: "tok"}, nil
}

func (f *fakeGateway) EndSession(context.Context) error {
	f.mode, f.token = session.ModeStateless, false
	return f.endErr
}

func (f *fakeGateway) AccountInfo(context.Context) (*talk2m.AccountInfo, error) {
	return &talk2m.AccountInfo{AccountName: "acme"}, nil
}

func (f *fakeGateway) ListDevices(context.Context) ([]talk2m.Ewon, error) {
	return f.ewons, f.listErr
}

func (f *fakeGateway) GetDevice(_ context.Context, name string) (*talk2m.Ewon, error) {
	for _, e := range f.ewons {
		if e.Name == name {
			return &e, nil
		}
	}
	return nil, &talk2m.APIError{Route: "getewon", Status: http.StatusOK, Code: http.StatusNotFound, Message: "not found"}
}

type fakeDevice struct {
	tags     map[string]ebd.TagRecord
	err      error
	written  []talk2m.TagUpdate
	windowIn ebd.Window
}

func (f *fakeDevice) LiveTags(context.Context) (map[string]ebd.TagRecord, error) {
	return f.tags, f.err
}

func (f *fakeDevice) UpdateTags(_ context.Context, tags ...talk2m.TagUpdate) (map[string]ebd.TagRecord, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: no tags", talk2m.ErrInvalidArgument)
	}
	f.written = tags
	return f.tags, f.err
}

func (f *fakeDevice) HistoricalRelative(_ context.Context, w ebd.Window) (ebd.HistoricalSeries, error) {
	f.windowIn = w
	if f.err != nil {
		return nil, f.err
	}
	return ebd.HistoricalSeries{"Tag1": {{Timestamp: "01/01/2024 00:00:00", Value: "10"}}}, nil
}

type fakeSnapshots struct {
	snap *redisstore.TagSnapshot
}

func (f *fakeSnapshots) LoadLiveTags(_ context.Context, device string) (*redisstore.TagSnapshot, bool, error) {
	if f.snap == nil || f.snap.Device != device {
		return nil, false, nil
	}
	return f.snap, true, nil
}

type fakeSamples struct {
	q pgstorage.SampleQuery
}

func (f *fakeSamples) ListSamples(_ context.Context, q pgstorage.SampleQuery) ([]pgstorage.ArchivedSample, error) {
	f.q = q
	return []pgstorage.ArchivedSample{{Device: q.Device, Tag: "Temp", Value: "70"}}, nil
}

type fakeCatalog struct{}

func (fakeCatalog) ListDevices(context.Context) ([]models.Device, error) {
	return []models.Device{{Talk2MID: 1, Name: "plant-a"}}, nil
}

type testEnv struct {
	router *gin.Engine
	gw     *fakeGateway
	dev    *fakeDevice
}

func newTestEnv(t *testing.T, deps Deps) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	book, err := cfgpkg.ParseDeviceBook([]byte("devices:\n  - name: plant-a\n    username: adm\n    password: pw\n"))
	require.NoError(t, err)

	env := &testEnv{
		gw:  &fakeGateway{ewons: []talk2m.Ewon{{ID: 1, Name: "plant-a", Status: "online"}}},
		dev: &fakeDevice{tags: map[string]ebd.TagRecord{"Temp": {ID: "1", Name: "Temp", Value: "72"}}},
	}
	deps.Gateway = env.gw
	deps.Book = book
	deps.Devices = func(c talk2m.DeviceCredentials) (DeviceOps, error) {
		require.Equal(t, "adm", c.Username)
		return env.dev, nil
	}
	deps.Logger = zap.NewNop()

	env.router = gin.New()
	RegisterRoutes(env.router, NewHandler(deps), middleware.AuthConfig{}, zap.NewNop())
	return env
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func TestSessionEndpoints(t *testing.T) {
	env := newTestEnv(t, Deps{})

	w := env.do(http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st SessionStatus
	decode(t, w, &st)
	assert.Equal(t, "stateless", st.Mode)
	assert.False(t, st.HasToken)

	w = env.do(http.MethodPost, "/api/session/login", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &st)
	assert.Equal(t, "stateful", st.Mode)
	assert.Equal(t, "welcome", st.Message)
	assert.NotContains(t, w.Body.String(), `"tok"`)

	w = env.do(http.MethodPost, "/api/session/logout", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &st)
	assert.Equal(t, "stateless", st.Mode)
}

func TestLoginErrors(t *testing.T) {
	env := newTestEnv(t, Deps{})

	env.gw.startErr = fmt.Errorf("%w: no token", talk2m.ErrAuth)
	w := env.do(http.MethodPost, "/api/session/login", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	env.gw.startErr = &talk2m.APIError{Route: "login", Status: http.StatusOK, Code: 403, Message: "bad password"}
	w = env.do(http.MethodPost, "/api/session/login", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	var resp ErrorResponse
	decode(t, w, &resp)
	assert.Equal(t, "upstream", resp.Error)
	assert.Contains(t, resp.Message, "bad password")
	assert.NotEmpty(t, resp.RequestID)
}

func TestDevicesEndpoints(t *testing.T) {
	env := newTestEnv(t, Deps{Catalog: fakeCatalog{}})

	w := env.do(http.MethodGet, "/api/devices", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"live"`)

	w = env.do(http.MethodGet, "/api/devices?source=catalog", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"talk2mId":1`)

	w = env.do(http.MethodGet, "/api/devices/plant-a", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/devices/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/account", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acme")
}

func TestCatalogUnavailable(t *testing.T) {
	env := newTestEnv(t, Deps{})
	w := env.do(http.MethodGet, "/api/devices?source=catalog", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetTags(t *testing.T) {
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	env := newTestEnv(t, Deps{Snapshots: &fakeSnapshots{snap: &redisstore.TagSnapshot{
		Device: "plant-a", UpdatedAt: at, Tags: map[string]ebd.TagRecord{"Temp": {Name: "Temp", Value: "70"}},
	}}})

	w := env.do(http.MethodGet, "/api/devices/plant-a/tags", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp TagsResponse
	decode(t, w, &resp)
	assert.Equal(t, "live", resp.Source)
	assert.Equal(t, "72", resp.Tags["Temp"].Value)

	w = env.do(http.MethodGet, "/api/devices/plant-a/tags?cached=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp = TagsResponse{}
	decode(t, w, &resp)
	assert.Equal(t, "cache", resp.Source)
	assert.Equal(t, "70", resp.Tags["Temp"].Value)
	require.NotNil(t, resp.UpdatedAt)
	assert.True(t, at.Equal(*resp.UpdatedAt))

	w = env.do(http.MethodGet, "/api/devices/ghost/tags", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.dev.err = fmt.Errorf("device plant-a live tags: %w", talk2m.ErrParse)
	w = env.do(http.MethodGet, "/api/devices/plant-a/tags", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "upstream_parse")
}

func TestUpdateTags(t *testing.T) {
	env := newTestEnv(t, Deps{})

	w := env.do(http.MethodPost, "/api/devices/plant-a/tags", `{"tags":[{"name":"SetPoint","value":"42"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []talk2m.TagUpdate{{Name: "SetPoint", Value: "42"}}, env.dev.written)

	w = env.do(http.MethodPost, "/api/devices/plant-a/tags", `{"tags":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/devices/plant-a/tags", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetHistory(t *testing.T) {
	env := newTestEnv(t, Deps{})

	w := env.do(http.MethodGet, "/api/devices/plant-a/history?start=10&startUnit=m", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp HistoryResponse
	decode(t, w, &resp)
	assert.Equal(t, "$dtHT$ftT$st_m10$et_s0", resp.Selector)
	assert.Equal(t, "10", resp.Series["Tag1"][0].Value)

	w = env.do(http.MethodGet, "/api/devices/plant-a/history?start=10&end=5&endUnit=h", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, "$dtHT$ftT$st_m10$et_h5", resp.Selector)

	for _, q := range []string{"start=abc", "start=10&startUnit=w", "start=-1"} {
		w = env.do(http.MethodGet, "/api/devices/plant-a/history?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestGetArchive(t *testing.T) {
	samples := &fakeSamples{}
	env := newTestEnv(t, Deps{Samples: samples})

	since := "2024-01-01T00:00:00Z"
	w := env.do(http.MethodGet, "/api/devices/plant-a/archive?tag=Temp&limit=5&since="+url.QueryEscape(since), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "plant-a", samples.q.Device)
	assert.Equal(t, "Temp", samples.q.Tag)
	assert.Equal(t, 5, samples.q.Limit)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), samples.q.Since.UTC())

	w = env.do(http.MethodGet, "/api/devices/plant-a/archive?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/devices/plant-a/archive?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env = newTestEnv(t, Deps{})
	w = env.do(http.MethodGet, "/api/devices/plant-a/archive", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", talk2m.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("x: %w", talk2m.ErrState), http.StatusBadRequest},
		{fmt.Errorf("x: %w", talk2m.ErrAuth), http.StatusUnauthorized},
		{fmt.Errorf("x: %w", ErrUnknownDevice), http.StatusNotFound},
		{fmt.Errorf("x: %w", talk2m.ErrParse), http.StatusBadGateway},
		{fmt.Errorf("x: %w", talk2m.ErrTransport), http.StatusBadGateway},
		{&talk2m.APIError{Status: 500, Code: 500}, http.StatusBadGateway},
		{fmt.Errorf("x: %w", ErrUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := classifyError(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}
