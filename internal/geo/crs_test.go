package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCRS(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    CRS
		wantErr bool
	}{
		{name: "epsg prefix", in: "EPSG:32610", want: EPSG(32610)},
		{name: "lower case", in: "epsg:4326", want: WGS84},
		{name: "bare code", in: " 3857 ", want: WebMercator},
		{name: "ogc urn", in: "urn:ogc:def:crs:EPSG::26910", want: EPSG(26910)},
		{name: "crs84", in: "urn:ogc:def:crs:OGC:1.3:CRS84", want: WGS84},
		{name: "empty", in: "", wantErr: true},
		{name: "other authority", in: "ESRI:102003", wantErr: true},
		{name: "not a number", in: "EPSG:abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCRS(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCRS_String(t *testing.T) {
	assert.Equal(t, "EPSG:32610", EPSG(32610).String())
	assert.Equal(t, "unknown", CRS{}.String())
}

func TestCRS_Supported(t *testing.T) {
	for _, code := range []int{4326, 4269, 3857, 900913, 32601, 32660, 32733, 26910} {
		assert.True(t, EPSG(code).Supported(), "EPSG:%d", code)
	}
	for _, code := range []int{0, 990001} {
		assert.False(t, EPSG(code).Supported(), "EPSG:%d", code)
	}
}

func TestCRS_IsGeographic(t *testing.T) {
	assert.True(t, WGS84.IsGeographic())
	assert.True(t, EPSG(4269).IsGeographic())
	assert.False(t, WebMercator.IsGeographic())
	assert.False(t, EPSG(32610).IsGeographic())
}

func TestCRS_JSON(t *testing.T) {
	type params struct {
		Target CRS `json:"target"`
		Assume CRS `json:"assume"`
	}
	data, err := json.Marshal(params{Target: EPSG(32610)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"target":"EPSG:32610","assume":""}`, string(data))

	var got params
	require.NoError(t, json.Unmarshal([]byte(`{"target":"urn:ogc:def:crs:OGC:1.3:CRS84","assume":"26910"}`), &got))
	assert.Equal(t, WGS84, got.Target)
	assert.Equal(t, EPSG(26910), got.Assume)

	assert.Error(t, json.Unmarshal([]byte(`{"target":"ESRI:102003"}`), &got))
}
