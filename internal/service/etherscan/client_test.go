package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SybilScan/internal/domain/models"
	"SybilScan/internal/service/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddr = "0x00000000000000000000000000000000000000aa"

func newTestClient(url string, keys []string, interval time.Duration) *Client {
	return New(url, ratelimit.NewKeyRing(keys), ratelimit.NewIntervalGate(interval),
		WithBackoff(time.Millisecond, time.Millisecond),
	)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func okList(items ...map[string]string) map[string]interface{} {
	return map[string]interface{}{"status": "1", "message": "OK", "result": items}
}

func rateLimited() map[string]interface{} {
	return map[string]interface{}{"status": "0", "message": "NOTOK", "result": "Max rate limit reached"}
}

func noRecords() map[string]interface{} {
	return map[string]interface{}{"status": "0", "message": "No transactions found", "result": []string{}}
}

func TestFetchActivity_ParsesAndSorts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "account", q.Get("module"))
		assert.Equal(t, testAddr, q.Get("address"))
		assert.Equal(t, "8453", q.Get("chainid"))
		switch q.Get("action") {
		case ActionTxList:
			writeJSON(w, okList(
				map[string]string{"timeStamp": "200", "from": testAddr, "to": "0xBB", "value": "500000000000000000"},
				map[string]string{"timeStamp": "100", "from": "0xCC", "to": testAddr, "value": "1000000000000000000"},
			))
		case ActionTokenTx:
			writeJSON(w, okList(
				map[string]string{"timeStamp": "150", "from": "0xcc", "to": testAddr, "value": "2500000", "contractAddress": "0xTOKEN", "tokenDecimal": "6"},
			))
		default:
			t.Errorf("unexpected action %s", q.Get("action"))
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL, []string{"k1"}, 0)
	act, err := c.FetchActivity(context.Background(), "0x00000000000000000000000000000000000000AA", models.ChainBase)
	require.NoError(t, err)

	assert.Equal(t, testAddr, act.Address)
	require.Len(t, act.Native, 2)
	assert.Equal(t, int64(100), act.Native[0].Timestamp)
	assert.Equal(t, int64(200), act.Native[1].Timestamp)
	assert.Equal(t, "0xbb", act.Native[1].To)
	assert.InDelta(t, 1.0, act.Native[0].Amount(), 1e-12)

	require.Len(t, act.Token, 1)
	assert.Equal(t, "0xtoken", act.Token[0].Contract)
	assert.Equal(t, int32(6), act.Token[0].TokenDecimals)
	assert.InDelta(t, 2.5, act.Token[0].Amount(), 1e-12)
}

func TestFetchActivity_NoRecordsIsEmptySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, noRecords())
	}))
	defer server.Close()

	act, err := newTestClient(server.URL, nil, 0).FetchActivity(context.Background(), testAddr, models.ChainEthereum)
	require.NoError(t, err)
	assert.True(t, act.Empty())
}

func TestFetchActivity_RetriesRateLimitThenSucceeds(t *testing.T) {
	var txCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == ActionTokenTx {
			writeJSON(w, noRecords())
			return
		}
		if txCalls.Add(1) <= 2 {
			writeJSON(w, rateLimited())
			return
		}
		writeJSON(w, okList(map[string]string{"timeStamp": "1", "from": "0x1", "to": testAddr, "value": "1"}))
	}))
	defer server.Close()

	act, err := newTestClient(server.URL, nil, 0).FetchActivity(context.Background(), testAddr, models.ChainEthereum)
	require.NoError(t, err)
	assert.Len(t, act.Native, 1)
	assert.Equal(t, int32(3), txCalls.Load())
}

func TestFetchActivity_ExhaustedRetriesReturnFetchError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, rateLimited())
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, nil, 0).FetchActivity(context.Background(), testAddr, models.ChainEthereum)
	require.Error(t, err)

	var fe *models.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 3, fe.Attempts)
	assert.Equal(t, ActionTxList, fe.Action)
	assert.ErrorIs(t, err, models.ErrRateLimited)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchActivity_ServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, noRecords())
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, nil, 0).FetchActivity(context.Background(), testAddr, models.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load()) // one retry on txlist, one call for tokentx
}

func TestFetchActivity_ProviderErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, map[string]interface{}{"status": "0", "message": "NOTOK", "result": "Invalid API Key"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, []string{"bad"}, 0).FetchActivity(context.Background(), testAddr, models.ChainEthereum)
	var fe *models.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 1, fe.Attempts)
	assert.Contains(t, err.Error(), "Invalid API Key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchActivity_MalformedAddressIsValidationError(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1", nil, 0)
	_, err := c.FetchActivity(context.Background(), "0x1234", models.ChainEthereum)
	assert.True(t, models.IsValidation(err))
}

func TestFetchActivity_RotatesKeysAndSpacesRequests(t *testing.T) {
	const interval = 20 * time.Millisecond
	var (
		mu   sync.Mutex
		keys []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.URL.Query().Get("apikey"))
		mu.Unlock()
		writeJSON(w, noRecords())
	}))
	defer server.Close()

	c := newTestClient(server.URL, []string{"a", "b"}, interval)
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.FetchActivity(context.Background(), testAddr, models.ChainEthereum)
		require.NoError(t, err)
	}

	// six requests need at least five intervals between the first and last
	assert.GreaterOrEqual(t, time.Since(start), 5*interval)
	assert.Equal(t, []string{"a", "b", "a", "b", "a", "b"}, keys)
}
