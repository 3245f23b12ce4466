package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/friendsincode/cadence/internal/models"
)

func multipartUpload(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write payload: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func (e *testEnv) doMultipart(t *testing.T, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+e.token)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func TestImageUpload(t *testing.T) {
	env := newTestEnv(t, "")
	account := env.seedAccount(t, env.user.ID)

	body, contentType := multipartUpload(t, map[string]string{"account_id": account.ID},
		"image", "latte.png", []byte("fake image bytes"))
	rr := env.doMultipart(t, "/api/v1/uploads/image", body, contentType)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	resp := decodeBody[map[string]string](t, rr)
	if !strings.HasPrefix(resp["url"], "/uploads/"+account.ID+"/") {
		t.Fatalf("url = %q", resp["url"])
	}
}

func TestImageUploadWithUnsetSizeLimit(t *testing.T) {
	env := newTestEnv(t, "")
	env.api.cfg.MaxUploadSizeMB = 0
	account := env.seedAccount(t, env.user.ID)

	body, contentType := multipartUpload(t, map[string]string{"account_id": account.ID},
		"image", "latte.png", []byte("tiny image"))
	rr := env.doMultipart(t, "/api/v1/uploads/image", body, contentType)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 with default size limit, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestImageUploadAttachesToDraft(t *testing.T) {
	env := newTestEnv(t, "")
	account := env.seedAccount(t, env.user.ID)
	post := env.seedPost(t, account.ID, models.PostDraft, "", nil)

	body, contentType := multipartUpload(t,
		map[string]string{"account_id": account.ID, "post_id": post.ID},
		"image", "latte.jpg", []byte("fake image bytes"))
	rr := env.doMultipart(t, "/api/v1/uploads/image", body, contentType)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	var reloaded models.Post
	if err := env.db.First(&reloaded, "id = ?", post.ID).Error; err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if !strings.Contains(reloaded.ImageURL, post.ID) {
		t.Fatalf("image not attached: %q", reloaded.ImageURL)
	}
}

func TestImageUploadRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t, "")
	account := env.seedAccount(t, env.user.ID)

	body, contentType := multipartUpload(t, map[string]string{"account_id": account.ID},
		"image", "notes.txt", []byte("not an image"))
	rr := env.doMultipart(t, "/api/v1/uploads/image", body, contentType)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestImageUploadRejectsForeignAccount(t *testing.T) {
	env := newTestEnv(t, "")
	foreign := env.seedAccount(t, "someone-else")

	body, contentType := multipartUpload(t, map[string]string{"account_id": foreign.ID},
		"image", "latte.png", []byte("fake image bytes"))
	rr := env.doMultipart(t, "/api/v1/uploads/image", body, contentType)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestBulkUploadCreatesDrafts(t *testing.T) {
	env := newTestEnv(t, "")
	account := env.seedAccount(t, env.user.ID)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("account_id", account.ID); err != nil {
		t.Fatalf("write field: %v", err)
	}
	for _, name := range []string{"one.png", "two.jpg"} {
		part, err := writer.CreateFormFile("images", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte("img")); err != nil {
			t.Fatalf("write payload: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	rr := env.doMultipart(t, "/api/v1/posts/bulk-upload", &body, writer.FormDataContentType())
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	created := decodeBody[[]models.Post](t, rr)
	if len(created) != 2 {
		t.Fatalf("created %d posts, want 2", len(created))
	}
	for _, post := range created {
		if post.Status != models.PostDraft || post.ImageURL == "" {
			t.Fatalf("bulk post %+v", post)
		}
	}
}
