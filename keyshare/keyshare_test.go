package keyshare

import (
	"context"
	"encoding/json"
	"testing"

	"fiatjaf.com/sharebridge/sharing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deal(t *testing.T, threshold, parties uint16) ([]sharing.PortableKeyShare, *sharing.GlobalParams) {
	t.Helper()

	secret, err := sharing.NewSecret()
	require.NoError(t, err)
	shares, params, err := sharing.TrustedKeyDeal(secret, threshold, parties)
	require.NoError(t, err)
	return shares, params
}

func TestThresholdShareRoundTrip(t *testing.T) {
	shares, params := deal(t, 2, 3)

	native, err := NewThresholdShare(shares[1], params)
	require.NoError(t, err)
	require.Equal(t, uint16(1), native.Index())
	require.Equal(t, params.PublicSharesHex(), native.Core.PublicShares)
	require.Equal(t, params.CommitmentsHex(), native.Core.VSSSetup.Commitments)
	require.Equal(t, uint16(2), native.Core.VSSSetup.MinSigners)
	require.Equal(t, []string{
		"0000000000000000000000000000000000000000000000000000000000000001",
		"0000000000000000000000000000000000000000000000000000000000000002",
		"0000000000000000000000000000000000000000000000000000000000000003",
	}, native.Core.VSSSetup.I)

	back, err := native.ToPortable()
	require.NoError(t, err)
	require.Equal(t, shares[1], back)
}

func TestThresholdSharePreservesUnknownFields(t *testing.T) {
	shares, params := deal(t, 2, 3)
	native, err := NewThresholdShare(shares[0], params)
	require.NoError(t, err)

	b, err := json.Marshal(native)
	require.NoError(t, err)

	// pretend the library stored things we don't know about
	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))
	doc["aux"] = map[string]any{"p": "0xabc", "q": "0xdef"}
	doc["core"].(map[string]any)["chain_code"] = "00ff"
	b, err = json.Marshal(doc)
	require.NoError(t, err)

	var decoded ThresholdShare
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, shares[0].X, decoded.Core.X)

	require.NoError(t, decoded.SetSecret(shares[2].X))
	out, err := json.Marshal(decoded)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(out, &result))
	assert.Equal(t, map[string]any{"p": "0xabc", "q": "0xdef"}, result["aux"])
	core := result["core"].(map[string]any)
	assert.Equal(t, "00ff", core["chain_code"])
	assert.Equal(t, shares[2].X, core["x"])
}

func TestUpdateThresholdShares(t *testing.T) {
	shares, params := deal(t, 2, 3)

	templates := make([]*ThresholdShare, len(shares))
	for i, s := range shares {
		native, err := NewThresholdShare(s, params)
		require.NoError(t, err)
		templates[i] = native
	}

	// refresh: everybody goes additive and reshares with the same threshold
	additive, err := sharing.QuorumToAdditive(shares)
	require.NoError(t, err)
	refreshed, err := sharing.Resharing{Threshold: 2, Mode: sharing.TrustedDealer}.Run(context.Background(), additive)
	require.NoError(t, err)

	require.NoError(t, UpdateThresholdShares(templates, refreshed))

	newParams, err := sharing.ReconstructGlobalParams(refreshed)
	require.NoError(t, err)
	for i, tpl := range templates {
		require.Equal(t, refreshed[i].X, tpl.Core.X)
		require.Equal(t, newParams.PublicSharesHex(), tpl.Core.PublicShares)
		require.Equal(t, newParams.CommitmentsHex(), tpl.Core.VSSSetup.Commitments)
		require.Equal(t, shares[0].Y, tpl.Core.SharedPublicKey)
	}

	// the polynomial changed, the key did not
	require.NotEqual(t, params.CommitmentsHex()[1], newParams.CommitmentsHex()[1])
}

func TestUpdateThresholdSharesMissingParty(t *testing.T) {
	shares, params := deal(t, 2, 3)

	templates := make([]*ThresholdShare, len(shares))
	for i, s := range shares {
		native, err := NewThresholdShare(s, params)
		require.NoError(t, err)
		templates[i] = native
	}
	before := templates[0].Core.X

	err := UpdateThresholdShares(templates, shares[1:])
	require.ErrorIs(t, err, sharing.ErrMismatchedParticipant)
	require.ErrorContains(t, err, "participant 0")
	require.Equal(t, before, templates[0].Core.X)

	err = UpdateThresholdShares(templates, []sharing.PortableKeyShare{shares[0], shares[1], shares[2], shares[2]})
	require.ErrorIs(t, err, sharing.ErrDuplicatePoint)
}

func TestUpdateThresholdSharesKeyMismatch(t *testing.T) {
	shares, params := deal(t, 2, 3)
	other, _ := deal(t, 2, 3)

	templates := make([]*ThresholdShare, len(shares))
	for i, s := range shares {
		native, err := NewThresholdShare(s, params)
		require.NoError(t, err)
		templates[i] = native
	}

	// other's secrets labelled with our key
	for i := range other {
		other[i].Y = shares[0].Y
	}
	err := UpdateThresholdShares(templates, other)
	require.ErrorIs(t, err, sharing.ErrSharedKeyMismatch)
	require.Equal(t, shares[0].X, templates[0].Core.X)
}

func TestEmbedWrongIndex(t *testing.T) {
	shares, params := deal(t, 2, 3)
	native, err := NewThresholdShare(shares[0], params)
	require.NoError(t, err)

	require.ErrorIs(t, Embed(native, shares[1], params), sharing.ErrMismatchedParticipant)
}

func TestAdditiveShares(t *testing.T) {
	shares, _ := deal(t, 3, 5)
	quorum := []sharing.PortableKeyShare{shares[0], shares[3], shares[4]}

	additive, err := sharing.QuorumToAdditive(quorum)
	require.NoError(t, err)

	natives := make([]*AdditiveShare, len(additive))
	for k, a := range additive {
		native, err := NewAdditiveShare(a)
		require.NoError(t, err)
		require.Equal(t, "0x", native.Secret[:2])
		require.Len(t, native.Public, 1)
		natives[k] = native
	}

	require.NoError(t, AggregatePublic(natives))
	for _, native := range natives {
		require.Len(t, native.Public, 3)
		require.Equal(t, []uint16{0, 3, 4}, []uint16{native.Public[0].Owner, native.Public[1].Owner, native.Public[2].Owner})

		y, err := native.SharedPublicKey()
		require.NoError(t, err)
		require.Equal(t, shares[0].Y, y)

		back, err := native.ToPortable()
		require.NoError(t, err)
		require.Equal(t, uint16(3), back.T)
		require.Equal(t, uint16(5), back.N)
		require.Equal(t, shares[0].Y, back.Y)
	}

	natives[1].Public[0].Point = natives[1].Public[1].Point
	require.ErrorIs(t, AggregatePublic(natives), sharing.ErrMismatchedParticipant)
}

func TestAdditiveShareJSON(t *testing.T) {
	shares, _ := deal(t, 1, 1)
	native, err := NewAdditiveShare(shares[0])
	require.NoError(t, err)

	b, err := json.Marshal(native)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(b, &generic))
	public := generic["public"].([]any)
	require.Len(t, public, 1)
	entry := public[0].([]any)
	require.Equal(t, float64(0), entry[0])
	require.Equal(t, native.Public[0].Point, entry[1])

	var decoded AdditiveShare
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, native.Secret, decoded.Secret)
	require.Equal(t, native.Public, decoded.Public)

	require.Error(t, json.Unmarshal([]byte(`{"owner":0,"secret":"0x01","public":[[0]]}`), &decoded))
}

func TestApplyRefresh(t *testing.T) {
	shares, _ := deal(t, 3, 3)
	additive, err := sharing.QuorumToAdditive(shares)
	require.NoError(t, err)
	before, err := sharing.SumShares(additive)
	require.NoError(t, err)

	natives := make([]*AdditiveShare, len(additive))
	for k, a := range additive {
		natives[k], err = NewAdditiveShare(a)
		require.NoError(t, err)
	}
	require.NoError(t, AggregatePublic(natives))

	changes, err := NewRefresh([]uint16{0, 1, 2})
	require.NoError(t, err)

	for k, native := range natives {
		old := native.Secret

		delta, err := changes[k].PublicDelta(native.Owner)
		require.NoError(t, err)
		require.NotNil(t, delta)
		missing, err := changes[k].PublicDelta(7)
		require.NoError(t, err)
		require.Nil(t, missing)

		require.NoError(t, native.ApplyRefresh(changes[k]))
		require.NotEqual(t, old, native.Secret)

		// the public list follows the secrets and still adds up to the same key
		y, err := native.SharedPublicKey()
		require.NoError(t, err)
		require.Equal(t, shares[0].Y, y)

		back, err := native.ToPortable()
		require.NoError(t, err)
		pub, err := back.PublicShare()
		require.NoError(t, err)
		require.Equal(t, sharing.Ensure0x(sharing.EncodePoint(pub)), native.Public[k].Point)
		additive[k] = back
	}

	after, err := sharing.SumShares(additive)
	require.NoError(t, err)
	require.True(t, before.Equals(after))
}

func TestApplyRefreshRejects(t *testing.T) {
	shares, _ := deal(t, 2, 2)
	additive, err := sharing.QuorumToAdditive(shares)
	require.NoError(t, err)
	native, err := NewAdditiveShare(additive[0])
	require.NoError(t, err)
	original := *native

	changes, err := NewRefresh([]uint16{0, 1})
	require.NoError(t, err)

	require.ErrorIs(t, native.ApplyRefresh(changes[1]), sharing.ErrMismatchedParticipant)

	// a change that would move the shared key
	other, err := NewRefresh([]uint16{0, 1})
	require.NoError(t, err)
	skewed := changes[0]
	skewed.PublicShareChanges = []PublicEntry{changes[0].PublicShareChanges[0], other[0].PublicShareChanges[1]}
	require.ErrorIs(t, native.ApplyRefresh(skewed), sharing.ErrSharedKeyMismatch)

	// secret and public change that don't belong together
	swapped := changes[0]
	swapped.SecretShareChange = changes[1].SecretShareChange
	require.ErrorIs(t, native.ApplyRefresh(swapped), sharing.ErrInconsistentShares)

	noPublic := changes[0]
	noPublic.PublicShareChanges = changes[0].PublicShareChanges[1:]
	require.ErrorIs(t, native.ApplyRefresh(noPublic), sharing.ErrMismatchedParticipant)

	require.Equal(t, original.Secret, native.Secret)
	require.Equal(t, original.Public, native.Public)

	_, err = NewRefresh([]uint16{0})
	require.ErrorIs(t, err, sharing.ErrInsufficientShares)
}

func TestRefreshChangeJSON(t *testing.T) {
	changes, err := NewRefresh([]uint16{0, 2})
	require.NoError(t, err)

	b, err := json.Marshal(changes[1])
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(b, &generic))
	list := generic["public_share_changes"].([]any)
	require.Len(t, list, 2)
	require.Equal(t, float64(2), list[1].([]any)[0])

	var decoded RefreshChange
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, changes[1], decoded)
}
