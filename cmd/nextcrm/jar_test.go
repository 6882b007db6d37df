package main

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cookieNames(j *fileJar, u *url.URL) map[string]string {
	out := map[string]string{}
	for _, ck := range j.Cookies(u) {
		out[ck.Name] = ck.Value
	}
	return out
}

func TestFileJarSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	base, _ := url.Parse("http://crm.test")

	j, err := openJar(dir, base.String())
	require.NoError(t, err)
	j.SetCookies(base, []*http.Cookie{
		{Name: "access_token", Value: "a1", Path: "/", MaxAge: 3600},
		{Name: "refresh_token", Value: "r1", Path: "/", MaxAge: 86400},
	})
	require.NoError(t, j.Save())

	info, err := os.Stat(filepath.Join(dir, jarFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := openJar(dir, base.String())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"access_token": "a1", "refresh_token": "r1"}, cookieNames(again, base))
}

func TestFileJarForgetsDeletedAndExpired(t *testing.T) {
	dir := t.TempDir()
	base, _ := url.Parse("http://crm.test")

	j, err := openJar(dir, base.String())
	require.NoError(t, err)
	j.SetCookies(base, []*http.Cookie{
		{Name: "access_token", Value: "a1", Path: "/", MaxAge: 3600},
		{Name: "refresh_token", Value: "r1", Path: "/", MaxAge: 3600},
		{Name: "csrftoken", Value: "c1", Path: "/", Expires: time.Now().Add(-time.Minute)},
	})
	j.SetCookies(base, []*http.Cookie{{Name: "access_token", Path: "/", MaxAge: -1}})
	require.NoError(t, j.Save())

	again, err := openJar(dir, base.String())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"refresh_token": "r1"}, cookieNames(again, base))
}

func TestFileJarIgnoresCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, jarFile), []byte("{not json"), 0o600))

	j, err := openJar(dir, "http://crm.test")
	require.NoError(t, err)
	base, _ := url.Parse("http://crm.test")
	assert.Empty(t, j.Cookies(base))
}
