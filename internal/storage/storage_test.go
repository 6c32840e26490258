package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

func TestFilesystemStore_PutGet(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), zerolog.Nop())
	ctx := context.Background()

	if err := store.Put(ctx, "calendar/2026-03.json", []byte(`{"days":[]}`), "application/json"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, "calendar/2026-03.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"days":[]}` {
		t.Fatalf("got %q", got)
	}

	if _, err := store.Get(ctx, "calendar/missing.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.CheckAccess(); err != nil {
		t.Fatalf("CheckAccess: %v", err)
	}
}

func TestFilesystemStore_RejectsTraversal(t *testing.T) {
	store := NewFilesystemStore(t.TempDir(), zerolog.Nop())
	if err := store.Put(context.Background(), "../escape.json", []byte("x"), "text/plain"); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Store_PutGet(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	store := NewS3Store(fake, S3Config{Bucket: "exports"}, zerolog.Nop())
	ctx := context.Background()

	if err := store.Put(ctx, "calendar/a.csv", []byte("date\n"), "text/csv"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if fake.types["calendar/a.csv"] != "text/csv" {
		t.Fatalf("content type = %q", fake.types["calendar/a.csv"])
	}
	got, err := store.Get(ctx, "calendar/a.csv")
	if err != nil || string(got) != "date\n" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if u := store.URL("calendar/a.csv"); u != "s3://exports/calendar/a.csv" {
		t.Fatalf("URL = %q", u)
	}
}
