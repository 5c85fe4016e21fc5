package s3store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type fakeS3 struct {
	pages       []*s3.ListObjectsV2Output
	listInputs  []*s3.ListObjectsV2Input
	deleteCalls [][]string
	deleteErrs  []types.Error
	deleteErr   error
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listInputs = append(f.listInputs, in)
	i := len(f.listInputs) - 1
	if i >= len(f.pages) {
		return &s3.ListObjectsV2Output{}, nil
	}
	return f.pages[i], nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	var keys []string
	for _, o := range in.Delete.Objects {
		keys = append(keys, aws.ToString(o.Key))
	}
	f.deleteCalls = append(f.deleteCalls, keys)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &s3.DeleteObjectsOutput{Errors: f.deleteErrs}, nil
}

func TestListPaginatesUnderPrefix(t *testing.T) {
	mod := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	fake := &fakeS3{pages: []*s3.ListObjectsV2Output{
		{
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("t1"),
			Contents: []types.Object{
				{Key: aws.String("vw/vaultwarden-20240101-030000.tar.gz"), Size: aws.Int64(10), LastModified: &mod},
				{Key: aws.String("vw/")},
			},
		},
		{
			Contents: []types.Object{
				{Key: aws.String("vw/vaultwarden-20240102-030000.tar.gz"), Size: aws.Int64(20)},
			},
		},
	}}

	s := NewWithClient("", "bucket", "/vw/", fake)
	if s.Name() != "s3://bucket/vw" {
		t.Fatalf("unexpected name %q", s.Name())
	}

	records, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %+v", records)
	}
	if records[0].Name != "vaultwarden-20240101-030000.tar.gz" || records[0].Path != "vw/vaultwarden-20240101-030000.tar.gz" {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if records[0].ModTime != "2024-01-01T03:00:00Z" {
		t.Fatalf("unexpected ModTime %q", records[0].ModTime)
	}
	if aws.ToString(fake.listInputs[0].Prefix) != "vw/" {
		t.Fatalf("expected prefix vw/, got %q", aws.ToString(fake.listInputs[0].Prefix))
	}
	if aws.ToString(fake.listInputs[1].ContinuationToken) != "t1" {
		t.Fatalf("expected continuation token on second page")
	}
}

func TestDeleteBatchChunks(t *testing.T) {
	fake := &fakeS3{}
	s := NewWithClient("test", "bucket", "", fake)

	keys := make([]string, 2500)
	for i := range keys {
		keys[i] = fmt.Sprintf("vaultwarden-%04d.tar.gz", i)
	}
	if err := s.DeleteBatch(context.Background(), keys); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}

	if len(fake.deleteCalls) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(fake.deleteCalls))
	}
	sizes := []int{len(fake.deleteCalls[0]), len(fake.deleteCalls[1]), len(fake.deleteCalls[2])}
	if sizes[0] != 1000 || sizes[1] != 1000 || sizes[2] != 500 {
		t.Fatalf("unexpected chunk sizes %v", sizes)
	}
}

func TestDeleteBatchReportsPerKeyErrors(t *testing.T) {
	fake := &fakeS3{deleteErrs: []types.Error{
		{Key: aws.String("a.tar.gz"), Code: aws.String("AccessDenied"), Message: aws.String("Access Denied")},
	}}
	s := NewWithClient("test", "bucket", "", fake)

	err := s.DeleteBatch(context.Background(), []string{"a.tar.gz", "b.tar.gz"})
	if err == nil || !strings.Contains(err.Error(), "AccessDenied") {
		t.Fatalf("expected AccessDenied error, got %v", err)
	}
}

func TestDeleteBatchSurfacesAPIError(t *testing.T) {
	fake := &fakeS3{deleteErr: &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "The specified bucket does not exist"}}
	s := NewWithClient("test", "bucket", "", fake)

	err := s.DeleteBatch(context.Background(), []string{"a.tar.gz"})
	if err == nil || !strings.Contains(err.Error(), "NoSuchBucket: The specified bucket does not exist") {
		t.Fatalf("expected api error detail, got %v", err)
	}
}

func TestApiErrorPassesThroughPlainErrors(t *testing.T) {
	plain := errors.New("connection reset")
	if got := apiError(plain); got != plain {
		t.Fatalf("expected plain error unchanged, got %v", got)
	}
}

func TestListStaysAtTopLevel(t *testing.T) {
	fake := &fakeS3{pages: []*s3.ListObjectsV2Output{{
		Contents: []types.Object{
			{Key: aws.String("vw/vaultwarden-20240101-030000.tar.gz"), Size: aws.Int64(10)},
		},
		CommonPrefixes: []types.CommonPrefix{{Prefix: aws.String("vw/archive/")}},
	}}}

	records, err := NewWithClient("", "bucket", "vw", fake).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(fake.listInputs) != 1 || aws.ToString(fake.listInputs[0].Delimiter) != "/" {
		t.Fatalf("expected a delimited listing, got %+v", fake.listInputs)
	}
	if len(records) != 1 {
		t.Fatalf("nested prefixes must not become records, got %+v", records)
	}
}
