package geizhals

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchResult = `
<html><body>
<div class="listview__item">
  <a class="listview__name" href="/corsair-vengeance-a2654.html">Corsair Vengeance 32GB DDR5-6000</a>
  <span class="gh_price">ab € 129,90</span>
</div>
<div class="listview__item">
  <a class="listview__name" href="/other.html">Anderes Kit</a>
  <span class="gh_price">ab € 99,00</span>
</div>
</body></html>`

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestLookup(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("fs")
		w.Write([]byte(searchResult))
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())

	ref, err := client.Lookup(context.Background(), "CMK32GX5M2B6000C36")
	require.NoError(t, err)
	require.NotNil(t, ref)

	assert.Equal(t, "CMK32GX5M2B6000C36", gotQuery)
	assert.Equal(t, "Corsair Vengeance 32GB DDR5-6000", ref.Model)
	assert.InDelta(t, 129.90, ref.Price, 0.001)
	assert.Equal(t, server.URL+"/corsair-vengeance-a2654.html", ref.URL)
}

func TestLookup_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Keine Treffer</body></html>"))
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())

	ref, err := client.Lookup(context.Background(), "gibtesnicht")
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestLookup_EmptyQuery(t *testing.T) {
	client := NewClient("https://geizhals.de", testLogger())

	ref, err := client.Lookup(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestLookup_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())

	_, err := client.Lookup(context.Background(), "ddr5")
	assert.Error(t, err)
}
