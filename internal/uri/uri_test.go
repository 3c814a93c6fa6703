package uri

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aegis-sign/connect/pkg/apierrors"
)

const contract = "0x0000000000000000000000000000000000000001"

func TestIdentityURI(t *testing.T) {
	b := Builder{Label: "Demo App", ClientID: "2ozs"}
	got, err := b.Identity("https://relay.example/topic/abc")
	require.NoError(t, err)
	require.Equal(t, "aegis:me?callback_url=https%3A%2F%2Frelay.example%2Ftopic%2Fabc&client_id=2ozs&label=Demo+App", got)
}

func TestTransactionURI(t *testing.T) {
	b := Builder{Scheme: "wallet"}
	got, err := b.Transaction(json.RawMessage(`{"to":"`+contract+`","value":"0xde0b6b3a7640000","data":"0xa9059cbb","gas":"0x5208"}`), "https://relay/t/1")
	require.NoError(t, err)

	scheme, req, err := Parse(got)
	require.NoError(t, err)
	require.Equal(t, "wallet", scheme)
	require.Equal(t, contract, req.Target)
	require.Equal(t, "1000000000000000000", req.Value.String())
	require.Equal(t, "0xa9059cbb", req.Bytecode)
	require.Equal(t, "https://relay/t/1", req.CallbackURL)
	require.Equal(t, map[string]string{"gas": "0x5208"}, req.Extra)
}

func TestTransactionWithoutTo(t *testing.T) {
	_, err := Builder{}.Transaction(json.RawMessage(`{"data":"0x60"}`), "")
	require.True(t, apierrors.HasCode(err, apierrors.CodeContractCreationUnsupported))
}

func TestBuildValidation(t *testing.T) {
	_, err := Builder{}.Build(Request{Target: "not-an-address"})
	require.True(t, apierrors.HasCode(err, apierrors.CodeInvalidArgument))

	_, err = Builder{}.Build(Request{Target: contract, Bytecode: "zz"})
	require.Error(t, err)

	_, err = Builder{}.Build(Request{Target: contract, Value: big.NewInt(-1)})
	require.Error(t, err)

	got, err := Builder{}.Build(Request{Target: contract})
	require.NoError(t, err)
	require.Equal(t, "aegis:"+contract, got)
}

func TestExtraCannotOverrideReservedParams(t *testing.T) {
	b := Builder{Label: "Demo"}
	got, err := b.Build(Request{
		Target:      contract,
		CallbackURL: "https://relay/t/1",
		Extra: map[string]string{
			"callback_url": "https://evil/t/1",
			"label":        "Other",
			"value":        "99",
			"note":         "kept",
		},
	})
	require.NoError(t, err)
	_, req, err := Parse(got)
	require.NoError(t, err)
	require.Equal(t, "https://relay/t/1", req.CallbackURL)
	require.Equal(t, "Demo", req.Label)
	require.Nil(t, req.Value)
	require.Equal(t, map[string]string{"note": "kept"}, req.Extra)
}

func TestParseRejectsMissingScheme(t *testing.T) {
	_, _, err := Parse("me")
	require.Error(t, err)
}

func TestSignatureRequestURIs(t *testing.T) {
	b := Builder{}
	got, err := b.TypedData(contract, json.RawMessage("{\n  \"primaryType\": \"Mail\"\n}"), "https://relay/t/2")
	require.NoError(t, err)
	_, req, err := Parse(got)
	require.NoError(t, err)
	require.Equal(t, `{"primaryType":"Mail"}`, req.Extra["typedData"])

	got, err = b.PersonalSign(contract, "0x68656c6c6f", "https://relay/t/3")
	require.NoError(t, err)
	_, req, err = Parse(got)
	require.NoError(t, err)
	require.Equal(t, "0x68656c6c6f", req.Extra["personalSign"])
	require.Equal(t, "https://relay/t/3", req.CallbackURL)

	_, err = b.PersonalSign(contract, "", "")
	require.True(t, apierrors.HasCode(err, apierrors.CodeInvalidArgument))
}
