package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fiatjaf.com/sharebridge/common"
	"fiatjaf.com/sharebridge/keyshare"
	"fiatjaf.com/sharebridge/sharing"
	"fiatjaf.com/sharebridge/store"
	"github.com/stretchr/testify/require"
)

func TestParseQuorum(t *testing.T) {
	q, err := parseQuorum("4, 0,2")
	require.NoError(t, err)
	require.Equal(t, []uint16{0, 2, 4}, q)

	_, err = parseQuorum("1,1")
	require.ErrorIs(t, err, sharing.ErrDuplicatePoint)

	_, err = parseQuorum(" , ")
	require.ErrorIs(t, err, sharing.ErrEmptyInput)

	_, err = parseQuorum("1,x")
	require.Error(t, err)

	_, err = parseQuorum("70000")
	require.Error(t, err)
}

func TestDecodeList(t *testing.T) {
	one, err := decodeList[sharing.PortableKeyShare]([]byte(`{"i":1,"t":2,"n":3,"x":"01","y":"02"}`))
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Equal(t, uint16(1), one[0].I)

	many, err := decodeList[sharing.PortableKeyShare]([]byte(" \n[{\"i\":0},{\"i\":2}]"))
	require.NoError(t, err)
	require.Len(t, many, 2)
	require.Equal(t, uint16(2), many[1].I)

	_, err = decodeList[sharing.PortableKeyShare]([]byte(`[{"i":`))
	require.Error(t, err)
}

func TestSimulation(t *testing.T) {
	for _, tc := range []struct{ t, n uint16 }{
		{1, 1},
		{1, 3},
		{2, 3},
		{3, 5},
		{5, 5},
		{4, 9},
	} {
		t.Run(fmt.Sprintf("%d-of-%d", tc.t, tc.n), func(t *testing.T) {
			res, err := runSimulation(context.Background(), tc.t, tc.n)
			require.NoError(t, err)
			require.Len(t, res.Quorum, int(tc.t))
			require.Equal(t, tc.t, res.Threshold)
			require.Equal(t, tc.n, res.Parties)

			id, err := common.KeyID(res.SharedPublicKey)
			require.NoError(t, err)
			require.Equal(t, id, res.KeyID)
		})
	}

	_, err := runSimulation(context.Background(), 3, 2)
	require.Error(t, err)
	_, err = runSimulation(context.Background(), 0, 2)
	require.Error(t, err)
}

func dealt(t *testing.T, threshold, parties uint16) ([]sharing.PortableKeyShare, *sharing.GlobalParams) {
	t.Helper()

	secret, err := sharing.NewSecret()
	require.NoError(t, err)
	shares, params, err := sharing.TrustedKeyDeal(secret, threshold, parties)
	require.NoError(t, err)
	return shares, params
}

func TestImportShamir(t *testing.T) {
	db, err := store.Open("")
	require.NoError(t, err)
	defer db.Close()

	shares, params := dealt(t, 2, 4)

	// a single record creates the group without parameters
	group, err := importShamir(db, shares[2:3], sharing.Distributed)
	require.NoError(t, err)
	require.Equal(t, uint16(2), group.Threshold)
	require.Equal(t, uint16(4), group.Parties)
	require.Equal(t, "distributed", group.Mode)
	_, err = db.Params(group.KeyID)
	require.ErrorIs(t, err, store.ErrNotFound)

	// once parameters are known every imported record is checked against them
	require.NoError(t, db.SaveParams(group.KeyID, params))
	_, err = importShamir(db, shares[:2], sharing.Distributed)
	require.NoError(t, err)

	forged := shares[1]
	forged.X = shares[0].X
	_, err = importShamir(db, []sharing.PortableKeyShare{forged}, sharing.Distributed)
	require.Error(t, err)

	wrong := shares[0]
	wrong.T = 3
	_, err = importShamir(db, []sharing.PortableKeyShare{wrong}, sharing.Distributed)
	require.ErrorIs(t, err, sharing.ErrMismatchedParticipant)
}

func TestImportShamirFullSet(t *testing.T) {
	db, err := store.Open("")
	require.NoError(t, err)
	defer db.Close()

	shares, params := dealt(t, 3, 5)
	group, err := importShamir(db, shares, sharing.TrustedDealer)
	require.NoError(t, err)

	stored, err := db.Params(group.KeyID)
	require.NoError(t, err)
	require.Equal(t, params.CommitmentsHex(), stored.CommitmentsHex())
}

func TestImportAdditive(t *testing.T) {
	db, err := store.Open("")
	require.NoError(t, err)
	defer db.Close()

	shares, _ := dealt(t, 2, 3)
	additive, err := sharing.QuorumToAdditive(shares)
	require.NoError(t, err)

	group, err := importAdditive(db, additive, sharing.TrustedDealer)
	require.NoError(t, err)
	require.Equal(t, uint16(3), group.Threshold)
	require.Equal(t, uint16(3), group.Parties)

	other, _ := dealt(t, 2, 3)
	broken, err := sharing.QuorumToAdditive(other)
	require.NoError(t, err)
	for i := range broken {
		broken[i].Y = shares[0].Y
	}
	_, err = importAdditive(db, broken, sharing.TrustedDealer)
	require.ErrorIs(t, err, sharing.ErrSharedKeyMismatch)
}

func TestParseRecordsFormats(t *testing.T) {
	shares, params := dealt(t, 2, 3)

	b, err := json.Marshal(sharing.PortableKeyShares(shares))
	require.NoError(t, err)
	parsed, err := parseRecords(formatPortable, b)
	require.NoError(t, err)
	require.Equal(t, shares, parsed)

	natives := make([]*keyshare.ThresholdShare, len(shares))
	for k, share := range shares {
		natives[k], err = keyshare.NewThresholdShare(share, params)
		require.NoError(t, err)
	}
	b, err = json.Marshal(natives)
	require.NoError(t, err)
	parsed, err = parseRecords(formatThreshold, b)
	require.NoError(t, err)
	require.Equal(t, shares, parsed)

	_, err = parseRecords(formatPortable, []byte(`[]`))
	require.ErrorIs(t, err, sharing.ErrEmptyInput)

	require.Error(t, checkFormatAndKind(formatThreshold, common.KindAdditive))
	require.Error(t, checkFormatAndKind("xml", common.KindShamir))
	require.NoError(t, checkFormatAndKind(formatPortable, common.KindAdditive))
}

func TestRouter(t *testing.T) {
	db, err := store.Open("")
	require.NoError(t, err)
	defer db.Close()

	shares, params := dealt(t, 2, 3)
	group, err := common.KeyGroupFromShares(shares, sharing.TrustedDealer)
	require.NoError(t, err)
	require.NoError(t, db.SaveGroup(group))
	require.NoError(t, db.SaveShares(group.KeyID, common.KindShamir, shares))
	require.NoError(t, db.SaveParams(group.KeyID, params))

	srv := httptest.NewServer(newRouter(t.Context(), db, 16))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/keys")
	require.NoError(t, err)
	var groups []common.KeyGroup
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&groups))
	resp.Body.Close()
	require.Equal(t, []common.KeyGroup{group}, groups)

	resp, err = http.Get(srv.URL + "/keys/" + group.KeyID)
	require.NoError(t, err)
	var view keyView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	resp.Body.Close()
	require.Equal(t, group, view.Group)
	require.NotNil(t, view.Parameters)
	require.Equal(t, params.PublicSharesHex(), view.Parameters.PublicShares)

	resp, err = http.Get(srv.URL + "/keys/0000000000000000")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// reconstruct from two public shares only
	body, err := json.Marshal(reconstructRequest{
		Threshold: 2,
		Parties:   3,
		PublicShares: []pointShareView{
			{I: 2, Point: params.PublicSharesHex()[2]},
			{I: 0, Point: params.PublicSharesHex()[0]},
		},
	})
	require.NoError(t, err)
	resp, err = http.Post(srv.URL+"/reconstruct", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reconstructed paramsView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reconstructed))
	resp.Body.Close()
	require.Equal(t, params.CommitmentsHex(), reconstructed.Commitments)
	require.Equal(t, shares[0].Y, reconstructed.SharedPublicKey)

	body, _ = json.Marshal(reconstructRequest{
		Threshold:    2,
		Parties:      3,
		PublicShares: []pointShareView{{I: 0, Point: params.PublicSharesHex()[0]}},
	})
	resp, err = http.Post(srv.URL+"/reconstruct", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	metrics, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(metrics), `sharebridge_operations_total{op="reconstruct-public",result="ok"}`)
}

func TestReconstructLimits(t *testing.T) {
	db, err := store.Open("")
	require.NoError(t, err)
	defer db.Close()

	srv := httptest.NewServer(newRouter(t.Context(), db, 16))
	defer srv.Close()

	_, params := dealt(t, 2, 3)
	public := params.PublicSharesHex()
	post := func(body string) int {
		resp, err := http.Post(srv.URL+"/reconstruct", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return resp.StatusCode
	}
	request := func(threshold, parties uint16, shares ...pointShareView) string {
		b, err := json.Marshal(reconstructRequest{Threshold: threshold, Parties: parties, PublicShares: shares})
		require.NoError(t, err)
		return string(b)
	}
	two := []pointShareView{{I: 0, Point: public[0]}, {I: 1, Point: public[1]}}

	// a few shares claiming a huge sharing would make us compute every public share
	require.Equal(t, http.StatusBadRequest, post(request(2, 65535, two...)))
	require.Equal(t, http.StatusBadRequest, post(request(2, 17, two...)))
	require.Equal(t, http.StatusBadRequest, post(request(3, 2, two...)))
	require.Equal(t, http.StatusBadRequest, post(request(0, 0)))
	require.Equal(t, http.StatusBadRequest, post(request(1, 1, two...)))

	padding := strings.Repeat(`{"i":0,"point":"`+public[0]+`"},`, 1000)
	require.Equal(t, http.StatusRequestEntityTooLarge,
		post(`{"threshold":2,"parties":3,"public_shares":[`+padding+`{"i":1,"point":"`+public[1]+`"}]}`))

	// the same shares within bounds still work
	require.Equal(t, http.StatusOK, post(request(2, 3, two...)))
	require.Equal(t, http.StatusOK, post(request(2, 16, two...)))
}

func TestIPLimiter(t *testing.T) {
	l := newIPLimiter(t.Context(), 3, time.Hour)

	for range 3 {
		require.False(t, l.limited("10.0.0.1"))
	}
	require.True(t, l.limited("10.0.0.1"))
	require.False(t, l.limited("10.0.0.2"))

	// each decay gives back two requests and forgets idle ips
	l.decay()
	require.False(t, l.limited("10.0.0.1"))
	require.False(t, l.limited("10.0.0.1"))
	require.True(t, l.limited("10.0.0.1"))
	require.Equal(t, 1, l.buckets.Size())

	handler := l.middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodPost, "/reconstruct", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	handler(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	req.RemoteAddr = "10.0.0.3:5555"
	rec = httptest.NewRecorder()
	handler(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
