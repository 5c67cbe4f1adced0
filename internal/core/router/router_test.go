package router

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCodeRequest_Point(t *testing.T) {
	req := httptest.NewRequest("GET", "/code?resource=wards&column=the_geom&lat=40.7&lon=-73.9", nil)
	got, err := ParseCodeRequest(req)
	require.NoError(t, err)
	assert.True(t, got.HasPoint)
	assert.Equal(t, 40.7, got.Lat)
	assert.Equal(t, -73.9, got.Lon)
}

func TestParseCodeRequest_Name(t *testing.T) {
	req := httptest.NewRequest("GET", "/code?resource=zips&column=name&name=10001", nil)
	got, err := ParseCodeRequest(req)
	require.NoError(t, err)
	assert.False(t, got.HasPoint)
	assert.Equal(t, "10001", got.Name)
}

func TestParseCodeRequest_MissingResourceOrColumn(t *testing.T) {
	req := httptest.NewRequest("GET", "/code?lat=1&lon=2", nil)
	_, err := ParseCodeRequest(req)
	assert.Error(t, err)
}

func TestParseCodeRequest_NeitherPointNorName(t *testing.T) {
	req := httptest.NewRequest("GET", "/code?resource=wards&column=the_geom", nil)
	_, err := ParseCodeRequest(req)
	assert.Error(t, err)
}

func TestParseCodeRequest_InvalidLatLon(t *testing.T) {
	req := httptest.NewRequest("GET", "/code?resource=wards&column=the_geom&lat=x&lon=2", nil)
	_, err := ParseCodeRequest(req)
	assert.Error(t, err)
}

func TestPointGeometry_MapsLatLonToXY(t *testing.T) {
	g := PointGeometry(40.7, -73.9)
	require.NotNil(t, g.Point)
	assert.Equal(t, -73.9, g.Point.X)
	assert.Equal(t, 40.7, g.Point.Y)
}
