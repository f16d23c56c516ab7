package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/debemdeboas/war-room/internal/config"
)

func TestObjectName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	name := ObjectName(config.ImagesPrefix, "Cover.PNG", now)

	pattern := regexp.MustCompile(`^blog-images/1700000000123-[0-9a-f-]{36}\.png$`)
	if !pattern.MatchString(name) {
		t.Errorf("Unexpected object name %q", name)
	}

	if ObjectName(config.ImagesPrefix, "a.png", now) == name {
		t.Error("Expected object names to be unique")
	}
}

func TestImageContentType(t *testing.T) {
	testCases := []struct {
		filename string
		expected string
		ok       bool
	}{
		{"photo.jpg", "image/jpeg", true},
		{"photo.JPEG", "image/jpeg", true},
		{"diagram.png", "image/png", true},
		{"anim.gif", "image/gif", true},
		{"script.exe", "", false},
		{"noext", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.filename, func(t *testing.T) {
			ct, ok := ImageContentType(tc.filename)
			if ok != tc.ok || ct != tc.expected {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tc.expected, tc.ok, ct, ok)
			}
		})
	}
}

func TestLocalStorageUpload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "http://localhost:12600/uploads/")
	if err != nil {
		t.Fatalf("Failed to create local storage: %v", err)
	}

	url, err := s.Upload(context.Background(), "blog-images/1-abc.png", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if url != "http://localhost:12600/uploads/blog-images/1-abc.png" {
		t.Errorf("Unexpected URL %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "blog-images", "1-abc.png"))
	if err != nil {
		t.Fatalf("Expected object on disk: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("Expected stored content 'png-bytes', got %q", data)
	}

	t.Run("Traversal is rejected or contained", func(t *testing.T) {
		_, err := s.Upload(context.Background(), "../../escape.png", "image/png", strings.NewReader("x"))
		if err == nil {
			if _, statErr := os.Stat(filepath.Join(dir, "..", "..", "escape.png")); statErr == nil {
				t.Error("Expected upload to stay inside the storage directory")
			}
		}
	})

	t.Run("Canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := s.Upload(ctx, "blog-images/2.png", "image/png", strings.NewReader("x")); !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	b, _ := io.ReadAll(params.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3StorageUpload(t *testing.T) {
	fake := &fakeS3{}
	s := &S3Storage{client: fake, bucket: "blog-assets", baseURL: "https://cdn.example.com"}

	url, err := s.Upload(context.Background(), "blog-images/1-x.webp", "image/webp", strings.NewReader("webp"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if url != "https://cdn.example.com/blog-images/1-x.webp" {
		t.Errorf("Unexpected URL %q", url)
	}
	if aws.ToString(fake.input.Bucket) != "blog-assets" || aws.ToString(fake.input.Key) != "blog-images/1-x.webp" {
		t.Errorf("Unexpected bucket/key %s/%s", aws.ToString(fake.input.Bucket), aws.ToString(fake.input.Key))
	}
	if aws.ToString(fake.input.ContentType) != "image/webp" {
		t.Errorf("Unexpected content type %q", aws.ToString(fake.input.ContentType))
	}
	if fake.body != "webp" {
		t.Errorf("Unexpected body %q", fake.body)
	}

	fake.err = errors.New("access denied")
	if _, err := s.Upload(context.Background(), "k", "image/png", strings.NewReader("")); err == nil {
		t.Error("Expected upload error to be returned")
	}
}

func TestNew(t *testing.T) {
	cfg := config.StorageConfig{Driver: "local", LocalDir: t.TempDir(), PublicBaseURL: "http://x/uploads"}
	s, err := New(context.Background(), cfg, config.Secrets{})
	if err != nil {
		t.Fatalf("Expected local storage, got %v", err)
	}
	if _, ok := s.(*LocalStorage); !ok {
		t.Errorf("Expected *LocalStorage, got %T", s)
	}

	cfg.Driver = "ftp"
	if _, err := New(context.Background(), cfg, config.Secrets{}); err == nil {
		t.Error("Expected error for unknown driver")
	}
}
