package converter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["pin"] != "1234" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"token":"abc"}`))
	}))
	defer srv.Close()

	token, err := NewClient(srv.URL, srv.URL, "1234").Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = NewClient(srv.URL, srv.URL, "0000").Login(context.Background())
	assert.ErrorIs(t, err, ErrLoginStatus)
}

func TestLogin_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detail":"ok"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.URL, "1234").Login(context.Background())
	assert.ErrorIs(t, err, ErrNoTokenInResponse)
}

func TestConvert(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, srv.URL, "").Convert(context.Background(), "tok", "Sell\nE: 1", "room2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.OK)
	assert.Equal(t, map[string]interface{}{"token": "tok", "text": "Sell\nE: 1", "room": "room2"}, got)
}

func TestConvert_NullRoomAndErrorStatus(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`unknown room`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, srv.URL, "").Convert(context.Background(), "tok", "x", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, resp.OK)
	assert.Equal(t, "unknown room", resp.Body)

	room, present := got["room"]
	assert.True(t, present)
	assert.Nil(t, room)
}

func TestConvert_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewClient(srv.URL, srv.URL, "").Convert(context.Background(), "tok", "x", "room1")
	assert.Error(t, err)
}
