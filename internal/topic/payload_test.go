package topic

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func TestPayloadClassification(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind Kind
	}{
		{"address", `"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"`, KindRaw},
		{"token", `"eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.sig_-1"`, KindSignedToken},
		{"two segments", `"a.b"`, KindRaw},
		{"empty segment", `"a..c"`, KindRaw},
		{"padding", `"a.b=.c"`, KindRaw},
		{"object", `{"hash":"0x1"}`, KindRaw},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := PayloadFromJSON(json.RawMessage(tc.raw))
			require.Equal(t, tc.kind, p.Kind)
		})
	}
}

func TestPayloadString(t *testing.T) {
	require.Equal(t, "0x1", PayloadFromString("0x1").String())
	require.Equal(t, `{"a":1}`, PayloadFromJSON(json.RawMessage(`{"a":1}`)).String())
	require.Equal(t, "x.y.z", PayloadFromString("x.y.z").String())
}
