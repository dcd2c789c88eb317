package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/config"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = input
	if input.Body != nil {
		data, _ := io.ReadAll(input.Body)
		f.body = string(data)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{}, nil
}

type fakeDeleter struct {
	keys []string
}

func (f *fakeDeleter) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.keys = append(f.keys, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_PutAndDelete(t *testing.T) {
	up := &fakeUploader{}
	del := &fakeDeleter{}
	store := &S3Store{uploader: up, deleter: del, bucket: "campus", baseURL: "https://cdn.example.edu"}

	url, err := store.Put(context.Background(), "/resources/a.pdf", "application/pdf", strings.NewReader("pdf-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://cdn.example.edu/resources/a.pdf" {
		t.Fatalf("unexpected url %q", url)
	}
	if aws.ToString(up.input.Bucket) != "campus" || aws.ToString(up.input.ContentType) != "application/pdf" || up.body != "pdf-bytes" {
		t.Fatalf("unexpected upload input %+v body=%q", up.input, up.body)
	}

	if err := store.Delete(context.Background(), "resources/a.pdf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(del.keys) != 1 || del.keys[0] != "resources/a.pdf" {
		t.Fatalf("unexpected deletes %v", del.keys)
	}
}

func TestS3Store_PutErrors(t *testing.T) {
	up := &fakeUploader{err: errors.New("access denied")}
	store := &S3Store{uploader: up, deleter: &fakeDeleter{}, bucket: "campus", baseURL: "https://cdn"}

	if _, err := store.Put(context.Background(), "", "", strings.NewReader("x")); err == nil {
		t.Fatal("expected empty key error")
	}
	if _, err := store.Put(context.Background(), "k", "", strings.NewReader("x")); err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("expected wrapped upload error, got %v", err)
	}
}

func TestNewS3Store_Disabled(t *testing.T) {
	if _, err := NewS3Store(context.Background(), config.StorageConfig{}); !errors.Is(err, ErrStorageDisabled) {
		t.Fatalf("expected ErrStorageDisabled, got %v", err)
	}
}

func TestNewS3Store_StaticCredentialsAndEndpoint(t *testing.T) {
	store, err := NewS3Store(context.Background(), config.StorageConfig{
		Bucket:      "campus",
		Region:      "us-east-1",
		Endpoint:    "http://localhost:9000/",
		AccessKeyID: "minio",
		SecretKey:   "minio123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.baseURL != "http://localhost:9000/campus" {
		t.Fatalf("unexpected base url %q", store.baseURL)
	}
}

func TestObjectKey(t *testing.T) {
	owner := uuid.New()
	key := objectKey("resources", owner, `C:\Users\me\Notes.PDF`)
	if !strings.HasPrefix(key, "resources/"+owner.String()+"/") || !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("unexpected key %q", key)
	}
	if strings.Contains(objectKey("resources", owner, "evil.a b"), " ") {
		t.Fatal("expected unsafe extension dropped")
	}
}
