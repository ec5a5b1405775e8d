package extractive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/reportqa/internal/qa"
)

func TestNewHuggingFaceRequiresToken(t *testing.T) {
	_, err := NewHuggingFace(HFConfig{})
	require.Error(t, err)
}

func TestHuggingFaceAnswer(t *testing.T) {
	text := "Zoë's warehouse restocks every Tuesday."
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/test-model", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))

		var req hfRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "When does the warehouse restock?", req.Inputs.Question)
		assert.Equal(t, text, req.Inputs.Context)

		// offsets are code points, as the model server reports them
		w.Write([]byte(`{"score":0.93,"start":25,"end":38,"answer":"every Tuesday"}`))
	}))
	defer srv.Close()

	hf, err := NewHuggingFace(HFConfig{Token: "hf_test", BaseURL: srv.URL + "/", Model: "test-model"})
	require.NoError(t, err)

	ans, err := hf.Answer(context.Background(), text, "When does the warehouse restock?")
	require.NoError(t, err)
	assert.Equal(t, "every Tuesday", ans.Text)
	assert.InDelta(t, 0.93, ans.Score, 1e-9)
	assert.Equal(t, ans.Text, text[ans.Start:ans.End])
}

func TestHuggingFaceListResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"score":0.5,"start":0,"end":3,"answer":"The"},{"score":0.1,"start":4,"end":8,"answer":"ware"}]`))
	}))
	defer srv.Close()

	hf, err := NewHuggingFace(HFConfig{Token: "t", BaseURL: srv.URL})
	require.NoError(t, err)
	ans, err := hf.Answer(context.Background(), "The warehouse", "q")
	require.NoError(t, err)
	assert.Equal(t, "The", ans.Text)
	assert.Equal(t, 0, ans.Start)
	assert.Equal(t, 3, ans.End)
}

func TestHuggingFaceStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"Model is currently loading"}`))
	}))
	defer srv.Close()

	hf, err := NewHuggingFace(HFConfig{Token: "t", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = hf.Answer(context.Background(), "ctx", "q")

	var statusErr *qa.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "the answering service is loading or unavailable", qa.Diagnose(err))
}

func TestHuggingFaceMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	hf, err := NewHuggingFace(HFConfig{Token: "t", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = hf.Answer(context.Background(), "ctx", "q")
	require.Error(t, err)
	assert.Equal(t, "the answering service returned a malformed response", qa.Diagnose(err))
}

func TestHuggingFaceNetworkFaultThroughAnswerer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	hf, err := NewHuggingFace(HFConfig{Token: "t", BaseURL: base, Timeout: time.Second})
	require.NoError(t, err)
	answerer, err := qa.New(hf)
	require.NoError(t, err)

	_, err = answerer.Ask(context.Background(), "ctx", "q")
	var ansErr *qa.AnswerError
	require.ErrorAs(t, err, &ansErr)
	assert.Equal(t, "hf", ansErr.Backend)
	assert.Equal(t, "the answering service is unreachable", qa.Diagnose(err))
}

func TestRuneSpanToBytes(t *testing.T) {
	s, e, ok := runeSpanToBytes("héllo world", 6, 11)
	require.True(t, ok)
	assert.Equal(t, "world", "héllo world"[s:e])

	s, e, ok = runeSpanToBytes("abc", 3, 3)
	require.True(t, ok)
	assert.Equal(t, 3, s)
	assert.Equal(t, 3, e)

	_, _, ok = runeSpanToBytes("abc", 2, 9)
	assert.False(t, ok)
}
