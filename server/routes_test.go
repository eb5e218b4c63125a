package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/gpt2_bpe"
	"github.com/wbrown/gpt2_bpe/generate"
	"github.com/wbrown/gpt2_bpe/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEncoder(t *testing.T) *gpt2_bpe.GPTEncoder {
	t.Helper()
	encoder, err := gpt2_bpe.Load(
		strings.NewReader(`{"a": 0, "b": 1, "ab": 2}`),
		strings.NewReader("#version: 0.2\na b\n"))
	require.NoError(t, err)
	return encoder
}

// favorB always predicts "b".
var favorB = generate.PredictorFunc(func(_ context.Context, _ types.Tokens,
	vocabSize int) ([]float32, error) {
	distribution := make([]float32, vocabSize)
	distribution[1] = 1
	return distribution, nil
})

func newTestServer(t *testing.T, predictor generate.Predictor,
	numParallel uint) (*Server, http.Handler) {
	encoder := newEncoder(t)
	s := New(encoder, generate.New(encoder, predictor, generate.Options{}),
		numParallel)
	return s, s.GenerateRoutes()
}

func do(t *testing.T, h http.Handler, method, path string,
	body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		bts, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(bts)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	_, h := newTestServer(t, favorB, 1)
	w := do(t, h, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok", "vocab_size": 3}`, w.Body.String())
}

func TestGenerateHandler(t *testing.T) {
	_, h := newTestServer(t, favorB, 1)
	three := 3
	w := do(t, h, http.MethodPost, "/api/generate",
		GenerateRequest{Prompt: "ab", N: &three})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, GenerateResponse{
		Text:         "abbbb",
		Tokens:       []int64{2, 1, 1, 1},
		PromptTokens: 1,
	}, resp)

	// n defaults to one new token.
	w = do(t, h, http.MethodPost, "/api/generate", `{"prompt": "a"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ab", resp.Text)

	zero := 0
	w = do(t, h, http.MethodPost, "/api/generate",
		GenerateRequest{Prompt: "", N: &zero})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "", resp.Text)
	assert.Empty(t, resp.Tokens)
}

func TestGenerateHandler_Errors(t *testing.T) {
	failing := generate.PredictorFunc(func(context.Context, types.Tokens,
		int) ([]float32, error) {
		return nil, errors.New("runtime fault")
	})
	_, h := newTestServer(t, failing, 1)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"bad json", `{"prompt": `, http.StatusBadRequest},
		{"empty prompt", `{"prompt": "", "n": 2}`, http.StatusBadRequest},
		{"negative n", `{"prompt": "a", "n": -1}`, http.StatusBadRequest},
		{"prediction failure", `{"prompt": "a", "n": 1}`,
			http.StatusInternalServerError},
		{"unknown symbol", `{"prompt": "c", "n": 1}`,
			http.StatusInternalServerError},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/generate", test.body)
			assert.Equal(t, test.status, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}

	w := do(t, h, http.MethodGet, "/api/generate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestTokenizeDetokenize(t *testing.T) {
	_, h := newTestServer(t, favorB, 1)
	w := do(t, h, http.MethodPost, "/api/tokenize",
		TokenizeRequest{Text: "abba"})
	require.Equal(t, http.StatusOK, w.Code)
	var tokenized TokenizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokenized))
	assert.Equal(t, []int64{2, 1, 0}, tokenized.Tokens)

	w = do(t, h, http.MethodPost, "/api/detokenize",
		DetokenizeRequest{Tokens: tokenized.Tokens})
	require.Equal(t, http.StatusOK, w.Code)
	var detokenized DetokenizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detokenized))
	assert.Equal(t, "abba", detokenized.Text)

	w = do(t, h, http.MethodPost, "/api/detokenize",
		DetokenizeRequest{Tokens: []int64{0, 3}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodPost, "/api/detokenize", `{"tokens": [-1]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodPost, "/api/tokenize", `{"text": 5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodPost, "/api/tokenize", `{"text": "zzz"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGenerateHandler_Parallelism(t *testing.T) {
	var active, peak atomic.Int32
	slow := generate.PredictorFunc(func(_ context.Context, _ types.Tokens,
		vocabSize int) ([]float32, error) {
		now := active.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return make([]float32, vocabSize), nil
	})
	_, h := newTestServer(t, slow, 2)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := do(t, h, http.MethodPost, "/api/generate",
				`{"prompt": "ab", "n": 2}`)
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestServe_Shutdown(t *testing.T) {
	s, _ := newTestServer(t, favorB, 1)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
