package gamebanana

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/justa/mapupload/internal/common"
	"github.com/stretchr/testify/require"
)

func TestParseModID(t *testing.T) {
	testCases := []struct {
		reference   string
		expected    int64
		expectError bool
	}{
		{reference: "https://gamebanana.com/mods/12345", expected: 12345},
		{reference: "gamebanana.com/mods/7", expected: 7},
		{reference: "https://gamebanana.com/mods/440123?tab=files", expected: 440123},
		{reference: "https://gamebanana.com/maps/12345", expectError: true},
		{reference: "https://gamebanana.com/mods/abc", expectError: true},
		{reference: "not a url", expectError: true},
		{reference: "", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.reference, func(t *testing.T) {
			id, err := ParseModID(tc.reference)
			if tc.expectError {
				require.ErrorIs(t, err, common.ErrInvalidReference)
				require.ErrorIs(t, err, common.ErrInput)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expected, id)
		})
	}
}

func TestResolve(t *testing.T) {
	testCases := []struct {
		name          string
		status        int
		body          string
		expectedError error
		expectedName  string
		expectedFile  string
		expectedSize  int64
		expectedURL   string
	}{
		{
			name:         "First file",
			status:       http.StatusOK,
			body:         `["Foo Map",{"900":{"_sFile":"foo.zip","_nFilesize":1000,"_sDownloadUrl":"https://x/foo.zip"},"100":{"_sFile":"old.zip","_nFilesize":5,"_sDownloadUrl":"https://x/old.zip"}}]`,
			expectedName: "Foo Map",
			expectedFile: "foo.zip",
			expectedSize: 1000,
			expectedURL:  "https://x/foo.zip",
		},
		{
			name:          "Server error",
			status:        http.StatusInternalServerError,
			body:          `oops`,
			expectedError: common.ErrUpstreamUnavailable,
		},
		{
			name:          "Not JSON",
			status:        http.StatusOK,
			body:          `<html>`,
			expectedError: common.ErrMalformedUpstreamPayload,
		},
		{
			name:          "Single element",
			status:        http.StatusOK,
			body:          `["Foo Map"]`,
			expectedError: common.ErrMalformedUpstreamPayload,
		},
		{
			name:          "No files",
			status:        http.StatusOK,
			body:          `["Foo Map",[]]`,
			expectedError: common.ErrMalformedUpstreamPayload,
		},
		{
			name:          "Missing download url",
			status:        http.StatusOK,
			body:          `["Foo Map",{"1":{"_sFile":"foo.zip","_nFilesize":10}}]`,
			expectedError: common.ErrMalformedUpstreamPayload,
		},
		{
			name:          "Missing name",
			status:        http.StatusOK,
			body:          `[null,{"1":{"_sFile":"foo.zip","_nFilesize":10,"_sDownloadUrl":"https://x/foo.zip"}}]`,
			expectedError: common.ErrMalformedUpstreamPayload,
		},
		{
			name:          "Dot file name",
			status:        http.StatusOK,
			body:          `["Foo Map",{"1":{"_sFile":".","_nFilesize":10,"_sDownloadUrl":"https://x/foo.zip"}}]`,
			expectedError: common.ErrMalformedUpstreamPayload,
		},
		{
			name:          "Parent file name",
			status:        http.StatusOK,
			body:          `["Foo Map",{"1":{"_sFile":"..","_nFilesize":10,"_sDownloadUrl":"https://x/foo.zip"}}]`,
			expectedError: common.ErrMalformedUpstreamPayload,
		},
		{
			name:          "Extension only",
			status:        http.StatusOK,
			body:          `["Foo Map",{"1":{"_sFile":".zip","_nFilesize":10,"_sDownloadUrl":"https://x/foo.zip"}}]`,
			expectedError: common.ErrMalformedUpstreamPayload,
		},
		{
			name:          "Dot stem",
			status:        http.StatusOK,
			body:          `["Foo Map",{"1":{"_sFile":"..zip","_nFilesize":10,"_sDownloadUrl":"https://x/foo.zip"}}]`,
			expectedError: common.ErrMalformedUpstreamPayload,
		},
		{
			name:          "Path ending in parent",
			status:        http.StatusOK,
			body:          `["Foo Map",{"1":{"_sFile":"maps/..","_nFilesize":10,"_sDownloadUrl":"https://x/foo.zip"}}]`,
			expectedError: common.ErrMalformedUpstreamPayload,
		},
		{
			name:          "Root",
			status:        http.StatusOK,
			body:          `["Foo Map",{"1":{"_sFile":"/","_nFilesize":10,"_sDownloadUrl":"https://x/foo.zip"}}]`,
			expectedError: common.ErrMalformedUpstreamPayload,
		},
		{
			name:         "Dotted file name",
			status:       http.StatusOK,
			body:         `["Foo Map",{"1":{"_sFile":"foo.v2.zip","_nFilesize":10,"_sDownloadUrl":"https://x/foo.zip"}}]`,
			expectedName: "Foo Map",
			expectedFile: "foo.v2.zip",
			expectedSize: 10,
			expectedURL:  "https://x/foo.zip",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "12345", r.URL.Query().Get("itemid"))
				require.Equal(t, "Mod", r.URL.Query().Get("itemtype"))
				require.Equal(t, itemFields, r.URL.Query().Get("fields"))

				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
			r := NewResolver(srv.Client(), srv.URL, log)

			pkg, err := r.Resolve(context.Background(), "https://gamebanana.com/mods/12345")
			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				require.ErrorIs(t, err, common.ErrUpstream)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expectedName, pkg.DisplayName)
			require.Equal(t, tc.expectedFile, pkg.FileName)
			require.Equal(t, tc.expectedSize, pkg.FileSizeBytes)
			require.Equal(t, tc.expectedURL, pkg.DownloadURL)
		})
	}
}

func TestResolveInvalidReferenceSkipsLookup(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	_, err := NewResolver(srv.Client(), srv.URL, log).Resolve(context.Background(), "https://example.com/mods/1")

	require.ErrorIs(t, err, common.ErrInvalidReference)
	require.False(t, called)
}
