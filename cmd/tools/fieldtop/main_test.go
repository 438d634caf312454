package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/annel0/burrow/internal/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTop_KeepsServerOrderAndLimit(t *testing.T) {
	rows := []field.Snapshot{
		{ID: 3, Kind: "farm", State: field.StateFarmRipe, Priority: 100, Linked: 4},
		{ID: 4, Kind: "underground", State: field.StateUndergroundTunnel, Priority: 60, Linked: 3},
		{ID: 1, Kind: "farm", State: field.StateFarmEmpty, Priority: 10},
	}

	var buf bytes.Buffer
	require.NoError(t, renderTop(&buf, rows, 2))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.True(t, strings.HasPrefix(lines[1], "3 "))
	assert.True(t, strings.HasPrefix(lines[2], "4 "))
}

func TestFetchFields_PassesKind(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":2,"kind":"underground","state":"underground_solid","priority":10,"active":true}]}`))
	}))
	defer srv.Close()

	rows, err := fetchFields(context.Background(), srv.Client(), srv.URL, "underground")
	require.NoError(t, err)
	assert.Equal(t, "kind=underground", gotQuery)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(2), rows[0].ID)
}

func TestGetJSON_ReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	var out rowsResponse
	err := getJSON(context.Background(), srv.Client(), srv.URL+"/api/fields/9", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
