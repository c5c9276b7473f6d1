package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vidshare/backend/internal/models"
)

func (h *apiHarness) upload(path, token, field, filename string, data []byte) *httptest.ResponseRecorder {
	h.t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile(field, filename)
	require.NoError(h.t, err)
	_, err = part.Write(data)
	require.NoError(h.t, err)
	require.NoError(h.t, form.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) loginResponse(handle, password string) authResponse {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/v1/auth/login", "", loginRequest{Handle: handle, Password: password})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[authResponse](h.t, rec)
}

func TestAvatarUploadStoresImage(t *testing.T) {
	h := newAPIHarness(t)
	aliceID, alice := h.signUp("alice")

	require.Equal(t, http.StatusUnauthorized, h.upload("/api/v1/accounts/me/avatar", "", "avatar", "me.png", []byte("png")).Code)

	rec := h.upload("/api/v1/accounts/me/avatar", alice, "avatar", "me.png", []byte("png-bytes"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[accountView](t, rec)
	require.Equal(t, "media/"+aliceID+"/me.png", view.Avatar)
	require.Equal(t, []byte("png-bytes"), h.storage.saved[view.Avatar])

	rec = h.do(http.MethodGet, "/api/v1/accounts/me", alice, nil)
	require.Equal(t, view.Avatar, decode[accountView](t, rec).Avatar)

	rec = h.upload("/api/v1/accounts/me/avatar", alice, "avatar", "notes.txt", []byte("text"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.upload("/api/v1/accounts/me/avatar", alice, "picture", "me.png", []byte("png"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.upload("/api/v1/accounts/me/avatar", alice, "avatar", "huge.png", bytes.Repeat([]byte{1}, maxImageBytes+1))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Len(t, h.storage.saved, 1)
}

func TestThumbnailUploadIsOwnerOnly(t *testing.T) {
	h := newAPIHarness(t)
	aliceID, alice := h.signUp("alice")
	_, bob := h.signUp("bob")

	rec := h.do(http.MethodPost, "/api/v1/works", alice, createWorkRequest{Title: "Sunset", MediaRef: "media/sunset.mp4"})
	require.Equal(t, http.StatusCreated, rec.Code)
	work := decode[workView](t, rec)

	path := "/api/v1/works/" + work.ID + "/thumbnail"
	require.Equal(t, http.StatusNotFound, h.upload(path, bob, "thumbnail", "cover.jpg", []byte("jpg")).Code, "pending works are hidden from others")
	require.Empty(t, h.storage.saved)

	admin := h.login("admin", "admin-pass1")
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/v1/admin/works/"+work.ID+"/review", admin, reviewRequest{Status: string(models.StatusApproved)}).Code)
	require.Equal(t, http.StatusForbidden, h.upload(path, bob, "thumbnail", "cover.jpg", []byte("jpg")).Code)
	require.Empty(t, h.storage.saved)

	require.Equal(t, http.StatusBadRequest, h.upload(path, alice, "thumbnail", "cover.mov", []byte("mov")).Code)

	rec = h.upload(path, alice, "thumbnail", "cover.jpg", []byte("jpg-bytes"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[workView](t, rec)
	require.Equal(t, "media/"+aliceID+"/cover.jpg", updated.Thumbnail)
	require.Equal(t, []byte("jpg-bytes"), h.storage.saved[updated.Thumbnail])

	stored, err := h.store.GetWork(context.Background(), work.ID)
	require.NoError(t, err)
	require.Equal(t, updated.Thumbnail, stored.Thumbnail)

	require.Equal(t, http.StatusNotFound, h.upload("/api/v1/works/missing/thumbnail", alice, "thumbnail", "cover.jpg", []byte("jpg")).Code)
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	h := newAPIHarness(t)
	_, first := h.signUp("alice")
	second := h.login("alice", "password1")
	require.False(t, h.loginResponse("alice", "password1").MustChangePassword)

	path := "/api/v1/accounts/me/password"
	require.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, path, "", changePasswordRequest{CurrentPassword: "password1", NewPassword: "newpass99"}).Code)
	require.Equal(t, http.StatusForbidden, h.do(http.MethodPost, path, first, changePasswordRequest{CurrentPassword: "wrong1", NewPassword: "newpass99"}).Code)
	require.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, path, first, changePasswordRequest{CurrentPassword: "password1", NewPassword: "short"}).Code)
	require.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, path, first, changePasswordRequest{CurrentPassword: "password1", NewPassword: "password1"}).Code)

	rec := h.do(http.MethodPost, path, first, changePasswordRequest{CurrentPassword: "password1", NewPassword: "newpass99"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[authResponse](t, rec)
	require.NotEmpty(t, resp.Tokens.AccessToken)

	require.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/v1/accounts/me", first, nil).Code)
	require.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/v1/accounts/me", second, nil).Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/accounts/me", resp.Tokens.AccessToken, nil).Code)

	rec = h.do(http.MethodPost, "/api/v1/auth/login", "", loginRequest{Handle: "alice", Password: "password1"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	h.login("alice", "newpass99")
}

func TestAssignedPasswordsMustBeChanged(t *testing.T) {
	h := newAPIHarness(t)
	bobID, _ := h.signUp("bob")

	first := h.loginResponse("admin", "admin-pass1")
	require.True(t, first.MustChangePassword, "the seeded administrator starts with an assigned password")
	require.True(t, first.Account.MustChangePassword)

	rec := h.do(http.MethodPost, "/api/v1/accounts/me/password", first.Tokens.AccessToken,
		changePasswordRequest{CurrentPassword: "admin-pass1", NewPassword: "admin-pass2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	admin := decode[authResponse](t, rec)
	require.False(t, admin.Account.MustChangePassword)
	require.False(t, h.loginResponse("admin", "admin-pass2").MustChangePassword)

	require.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/api/v1/admin/users/"+bobID+"/password", admin.Tokens.AccessToken, passwordRequest{Password: "assigned99"}).Code)
	require.True(t, h.loginResponse("bob", "assigned99").MustChangePassword)

	account, err := h.store.GetAccount(context.Background(), bobID)
	require.NoError(t, err)
	require.False(t, account.PasswordChanged)
	require.True(t, strings.HasPrefix(account.Password, "$2"))
}
