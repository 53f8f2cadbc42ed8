package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinGeckoPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		assert.Equal(t, "demo-key", r.Header.Get("x-cg-demo-api-key"))
		w.Write([]byte(`{"ethereum":{"usd":3000.5,"usd_24h_change":-1.2},"bitcoin":{"usd":65000,"usd_24h_change":2.5}}`))
	}))
	defer srv.Close()

	c := NewCoinGeckoClient(srv.URL, "demo-key")
	prices, err := c.Prices(context.Background(), []string{"bitcoin", "ethereum"}, "USD")
	require.NoError(t, err)
	require.Len(t, prices, 2)

	assert.Equal(t, "bitcoin", prices[0].ID)
	assert.Equal(t, "65000", prices[0].Price.String())
	assert.Equal(t, 2.5, prices[0].Change24h)
	assert.Equal(t, "ethereum", prices[1].ID)
	assert.Equal(t, "3000.5", prices[1].Price.String())
}

func TestCoinGeckoErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":{"error_code":429},"message":"rate limited"}`))
	}))
	defer srv.Close()

	_, err := NewCoinGeckoClient(srv.URL, "").Prices(context.Background(), []string{"bitcoin"}, "usd")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "rate limited", apiErr.Message)
	assert.True(t, apiErr.Retryable())
}

func TestAlphaVantageQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "IBM", r.URL.Query().Get("symbol"))
		assert.Equal(t, "av-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(`{"Global Quote":{"01. symbol":"IBM","05. price":"182.3400","09. change":"-1.2000","10. change percent":"-0.6538%","07. latest trading day":"2026-10-15"}}`))
	}))
	defer srv.Close()

	q, err := NewAlphaVantageClient(srv.URL, "av-key").Quote(context.Background(), "ibm")
	require.NoError(t, err)
	assert.Equal(t, "IBM", q.Symbol)
	assert.Equal(t, "182.34", q.Price.String())
	assert.Equal(t, "-1.2", q.Change.String())
	assert.Equal(t, "-0.6538%", q.ChangePercent)
}

func TestAlphaVantageThrottleNote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
	}))
	defer srv.Close()

	_, err := NewAlphaVantageClient(srv.URL, "k").Quote(context.Background(), "IBM")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestAlphaVantageUnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote":{}}`))
	}))
	defer srv.Close()

	_, err := NewAlphaVantageClient(srv.URL, "k").Quote(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, ErrSymbolNotFound))
}

func TestExchangeRatesLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/EUR", r.URL.Path)
		w.Write([]byte(`{"result":"success","base_code":"EUR","time_last_update_unix":1760572800,"rates":{"EUR":1,"USD":1.09}}`))
	}))
	defer srv.Close()

	rates, err := NewExchangeRateClient(srv.URL).Latest(context.Background(), "eur")
	require.NoError(t, err)
	assert.Equal(t, "EUR", rates.Base)
	assert.Equal(t, "1.09", rates.Rates["USD"].String())
	assert.Equal(t, int64(1760572800), rates.UpdatedAt.Unix())
}

func TestExchangeRatesUnsupportedBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"error","error-type":"unsupported-code"}`))
	}))
	defer srv.Close()

	_, err := NewExchangeRateClient(srv.URL).Latest(context.Background(), "XXX")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "unsupported-code", apiErr.Message)
	assert.False(t, apiErr.Retryable())
}

func TestLLMComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer llm-key", r.Header.Get("Authorization"))

		var body struct {
			Model    string        `json:"model"`
			Messages []ChatMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "small-model", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Spend less on coffee.  "}}]}`))
	}))
	defer srv.Close()

	c := NewLLMClient(srv.URL+"/", "llm-key", "small-model")
	out, err := c.Complete(context.Background(), []ChatMessage{
		{Role: "system", Content: "You are a budgeting assistant."},
		{Role: "user", Content: "Summarise my month."},
	})
	require.NoError(t, err)
	assert.Equal(t, "Spend less on coffee.", out)
}

func TestLLMEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewLLMClient(srv.URL, "", "m").Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestLLMGatewayErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":{"message":"upstream unavailable"}}`))
	}))
	defer srv.Close()

	_, err := NewLLMClient(srv.URL, "", "m").Complete(context.Background(), nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
	assert.True(t, apiErr.Retryable())
}
