package location

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/blocus/internal/domain"
)

type stubProvider struct {
	granted    bool
	permErr    error
	position   domain.Coordinates
	posErr     error
	gate       chan struct{}
	positioned int
}

func (p *stubProvider) RequestPermission(context.Context) (bool, error) {
	if p.gate != nil {
		<-p.gate
	}
	return p.granted, p.permErr
}

func (p *stubProvider) CurrentPosition(context.Context) (domain.Coordinates, error) {
	p.positioned++
	return p.position, p.posErr
}

func TestResolvePermissionDenied(t *testing.T) {
	provider := &stubProvider{granted: false}
	st := Resolve(context.Background(), provider, domain.FallbackCoordinates)

	require.Equal(t, 46.603354, st.Latitude)
	require.Equal(t, 1.888334, st.Longitude)
	require.False(t, st.IsLoading)
	require.NotNil(t, st.HasPermission)
	require.False(t, *st.HasPermission)
	require.Empty(t, st.Error)
	require.Zero(t, provider.positioned)
}

func TestResolveGranted(t *testing.T) {
	provider := &stubProvider{granted: true, position: domain.Coordinates{Latitude: 48.8566, Longitude: 2.3522}}
	st := Resolve(context.Background(), provider, domain.FallbackCoordinates)

	require.Equal(t, 48.8566, st.Latitude)
	require.Equal(t, 2.3522, st.Longitude)
	require.True(t, *st.HasPermission)
	require.Empty(t, st.Error)
}

func TestResolvePositionFailure(t *testing.T) {
	provider := &stubProvider{granted: true, posErr: errors.New("gps off")}
	st := Resolve(context.Background(), provider, domain.FallbackCoordinates)

	require.Equal(t, domain.FallbackCoordinates.Latitude, st.Latitude)
	require.True(t, *st.HasPermission)
	require.Equal(t, ErrorMessage, st.Error)
	require.Equal(t, 1, provider.positioned)
}

func TestResolvePermissionRequestFailure(t *testing.T) {
	provider := &stubProvider{permErr: errors.New("unavailable")}
	st := Resolve(context.Background(), provider, domain.FallbackCoordinates)

	require.NotNil(t, st.HasPermission)
	require.True(t, *st.HasPermission)
	require.False(t, st.IsLoading)
	require.Equal(t, ErrorMessage, st.Error)
	require.Equal(t, domain.FallbackCoordinates.Latitude, st.Latitude)
	require.Equal(t, domain.FallbackCoordinates.Longitude, st.Longitude)
}

func TestTrackerProgression(t *testing.T) {
	gate := make(chan struct{})
	provider := &stubProvider{granted: true, gate: gate, position: domain.Coordinates{Latitude: 45.76, Longitude: 4.83}}
	tracker := Track(context.Background(), provider, domain.FallbackCoordinates, WithLogger(log.New(io.Discard, "", 0)))

	st := tracker.State()
	require.True(t, st.IsLoading)
	require.Nil(t, st.HasPermission)
	require.Equal(t, domain.FallbackCoordinates.Latitude, st.Latitude)

	close(gate)
	<-tracker.Done()

	st = tracker.State()
	require.False(t, st.IsLoading)
	require.Equal(t, 45.76, st.Latitude)
}

func TestTrackerStopDiscardsResult(t *testing.T) {
	gate := make(chan struct{})
	provider := &stubProvider{granted: true, gate: gate, position: domain.Coordinates{Latitude: 45.76, Longitude: 4.83}}
	tracker := Track(context.Background(), provider, domain.FallbackCoordinates)

	tracker.Stop()
	close(gate)
	<-tracker.Done()

	st := tracker.State()
	require.True(t, st.IsLoading)
	require.Equal(t, domain.FallbackCoordinates.Latitude, st.Latitude)
}

func TestBuiltinProviders(t *testing.T) {
	st := Resolve(context.Background(), DeniedProvider{}, domain.FallbackCoordinates)
	require.False(t, *st.HasPermission)

	paris := domain.Coordinates{Latitude: 48.8566, Longitude: 2.3522}
	st = Resolve(context.Background(), StaticProvider{Position: paris}, domain.FallbackCoordinates)
	require.Equal(t, paris.Latitude, st.Latitude)
	require.True(t, *st.HasPermission)
}

func TestGeoIPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"status":"success","lat":43.6,"lon":1.44}`))
		case "/fail":
			_, _ = w.Write([]byte(`{"status":"fail","message":"private range"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	pos, err := NewGeoIPProvider(srv.URL+"/ok", time.Second).CurrentPosition(context.Background())
	require.NoError(t, err)
	require.Equal(t, 43.6, pos.Latitude)
	require.Equal(t, 1.44, pos.Longitude)

	_, err = NewGeoIPProvider(srv.URL+"/fail", time.Second).CurrentPosition(context.Background())
	require.ErrorContains(t, err, "private range")

	st := Resolve(context.Background(), NewGeoIPProvider(srv.URL+"/broken", time.Second), domain.FallbackCoordinates)
	require.True(t, *st.HasPermission)
	require.Equal(t, ErrorMessage, st.Error)
}
