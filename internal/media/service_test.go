package media

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/friendsincode/cadence/internal/config"
	"github.com/friendsincode/cadence/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestNewService_PicksBackend(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("filesystem storage when no bucket configured", func(t *testing.T) {
		svc, err := NewService(&config.Config{UploadRoot: t.TempDir()}, logger)
		if err != nil {
			t.Fatalf("NewService: %v", err)
		}
		if _, ok := svc.storage.(*FilesystemStorage); !ok {
			t.Errorf("storage type = %T, want *FilesystemStorage", svc.storage)
		}
	})

	t.Run("s3 storage when bucket configured", func(t *testing.T) {
		cfg := &config.Config{
			S3Bucket:          "cadence-images",
			S3Region:          "us-east-1",
			S3AccessKeyID:     "key",
			S3SecretAccessKey: "secret",
		}
		svc, err := NewService(cfg, logger)
		if err != nil {
			t.Fatalf("NewService: %v", err)
		}
		if _, ok := svc.storage.(*S3Storage); !ok {
			t.Errorf("storage type = %T, want *S3Storage", svc.storage)
		}
	})
}

func TestBuildImagePath(t *testing.T) {
	tests := []struct {
		name      string
		accountID string
		postID    string
		extension string
		expected  string
	}{
		{
			name:      "standard path",
			accountID: "acct1",
			postID:    "abcd1234efgh5678",
			extension: ".png",
			expected:  filepath.Join("acct1", "ab", "cd", "abcd1234efgh5678.png"),
		},
		{
			name:      "short post id",
			accountID: "acct2",
			postID:    "abc",
			extension: ".jpg",
			expected:  filepath.Join("acct2", "abc.jpg"),
		},
		{
			name:      "exactly 4 chars",
			accountID: "acct3",
			postID:    "abcd",
			extension: ".webp",
			expected:  filepath.Join("acct3", "ab", "cd", "abcd.webp"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := buildImagePath(tt.accountID, tt.postID, tt.extension)
			if result != tt.expected {
				t.Errorf("buildImagePath() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestImageExtension(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.PNG", ".png"},
		{"photo.jpeg", ".jpeg"},
		{"archive.tar.gz", ".bin"},
		{"noext", ".bin"},
	}
	for _, tt := range tests {
		if got := imageExtension(tt.in); got != tt.want {
			t.Errorf("imageExtension(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilesystemStorage_StoreDeleteRoundTrip(t *testing.T) {
	root := t.TempDir()
	fsStorage := NewFilesystemStorage(root, zerolog.Nop())

	rel, err := fsStorage.Store(context.Background(), "acct1", "abcd1234", "cat.png", bytes.NewReader([]byte("imagedata")))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "imagedata" {
		t.Fatalf("stored content %q", data)
	}

	if got := fsStorage.URL(rel); got != "/uploads/"+filepath.ToSlash(rel) {
		t.Fatalf("URL = %q", got)
	}

	if err := fsStorage.Delete(context.Background(), rel); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, rel)); !os.IsNotExist(err) {
		t.Fatalf("file still exists after delete")
	}
}

func TestS3Storage_URL(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("cdn base url wins", func(t *testing.T) {
		s, err := NewS3Storage(context.Background(), S3Config{
			Bucket:        "my-bucket",
			Region:        "us-east-1",
			PublicBaseURL: "https://cdn.example.com/",
		}, logger)
		if err != nil {
			t.Fatalf("NewS3Storage: %v", err)
		}
		want := "https://cdn.example.com/acct/ab/cd/file.png"
		if got := s.URL("acct/ab/cd/file.png"); got != want {
			t.Errorf("URL = %q, want %q", got, want)
		}
	})

	t.Run("custom endpoint path style", func(t *testing.T) {
		s, err := NewS3Storage(context.Background(), S3Config{
			Bucket:       "my-bucket",
			Region:       "us-east-1",
			Endpoint:     "https://minio.example.com",
			UsePathStyle: true,
		}, logger)
		if err != nil {
			t.Fatalf("NewS3Storage: %v", err)
		}
		want := "https://minio.example.com/my-bucket/file.png"
		if got := s.URL("file.png"); got != want {
			t.Errorf("URL = %q, want %q", got, want)
		}
	})
}

func TestOrphanScanner(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Post{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	root := t.TempDir()
	write := func(rel string) {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("acct/ab/cd/abcd.png")
	write("acct/ef/gh/efgh.png")

	post := models.Post{
		ID:        uuid.NewString(),
		AccountID: "acct",
		ImageURL:  "/uploads/acct/ab/cd/abcd.png",
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}

	scanner := NewOrphanScanner(db, root, zerolog.Nop())
	result, err := scanner.ScanForOrphans(context.Background(), true)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if result.ScannedFiles != 2 || result.Orphans != 1 || result.Removed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(filepath.Join(root, "acct", "ef", "gh", "efgh.png")); !os.IsNotExist(err) {
		t.Fatal("orphan file not removed")
	}
	if _, err := os.Stat(filepath.Join(root, "acct", "ab", "cd", "abcd.png")); err != nil {
		t.Fatalf("referenced file removed: %v", err)
	}
}
