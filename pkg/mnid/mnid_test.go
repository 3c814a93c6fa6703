package mnid

import (
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/require"
)

const testAddress = "0x00521965e7bd230323c423d96c657db5b79d099f"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	encoded, err := Encode(Account{Network: "0x4", Address: testAddress})
	require.NoError(t, err)
	require.True(t, IsMNID(encoded))

	acc, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, "0x04", acc.Network)
	require.Equal(t, testAddress, acc.Address)
	require.True(t, SameNetwork(acc.Network, "0x4"))
}

func TestDecodeRejectsTamperedChecksum(t *testing.T) {
	encoded, err := Encode(Account{Network: "0x1", Address: testAddress})
	require.NoError(t, err)
	raw, err := base58.Decode(encoded)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff

	_, err = Decode(base58.Encode(raw))
	require.ErrorIs(t, err, ErrChecksum)
}

func TestIsMNIDRejectsHexAddress(t *testing.T) {
	require.False(t, IsMNID(testAddress))
	require.False(t, IsMNID("not base58 0OIl"))
}

func TestSameNetwork(t *testing.T) {
	require.True(t, SameNetwork("0x2a", "0x002A"))
	require.False(t, SameNetwork("0x1", "0x4"))
	require.False(t, SameNetwork("", "0x1"))
}
