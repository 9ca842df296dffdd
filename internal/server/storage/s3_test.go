package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCfg = S3Config{
	Region:   "us-east-1",
	User:     "minioadmin",
	Password: "minioadmin",
	Endpoint: "http://127.0.0.1:9000",
	Bucket:   "howyoubeen",
}

// stubSeams replaces the SDK constructors and restores them on cleanup.
func stubSeams(t *testing.T) {
	t.Helper()
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	origPut := presignPutObject
	origGet := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
		presignGetObject = origGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		require.NotNil(t, opts.BaseEndpoint)
		assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
		assert.True(t, opts.UsePathStyle)
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return &s3.PresignClient{}
	}
}

func TestNewKey(t *testing.T) {
	key := NewKey(time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^documents/2025/3/7/[0-9a-f-]{36}$`), key)
}

func TestPut_UploadsThroughPresignedURL(t *testing.T) {
	stubSeams(t)

	var gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		assert.Equal(t, "howyoubeen", *in.Bucket)
		assert.Equal(t, "documents/k", *in.Key)
		return &v4.PresignedHTTPRequest{URL: srv.URL + "/howyoubeen/documents/k"}, nil
	}

	s := NewS3Store(testCfg, srv.Client())
	require.NoError(t, s.Put(context.Background(), "documents/k", "text/markdown", []byte("# cv")))
	assert.Equal(t, "# cv", gotBody)
	assert.Equal(t, "text/markdown", gotType)
}

func TestPut_Errors(t *testing.T) {
	stubSeams(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	presignPutObject = func(*s3.PresignClient, context.Context, *s3.PutObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: srv.URL}, nil
	}
	err := NewS3Store(testCfg, srv.Client()).Put(context.Background(), "k", "", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")

	presignPutObject = func(*s3.PresignClient, context.Context, *s3.PutObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign-fail")
	}
	err = NewS3Store(testCfg, nil).Put(context.Background(), "k", "", nil)
	assert.ErrorContains(t, err, "presign-fail")

	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	err = NewS3Store(testCfg, nil).Put(context.Background(), "k", "", nil)
	assert.ErrorContains(t, err, "load-fail")
}

func TestPresignGet(t *testing.T) {
	stubSeams(t)

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: "https://s3.local/" + *in.Bucket + "/" + *in.Key}, nil
	}

	url, err := NewS3Store(testCfg, nil).PresignGet(context.Background(), "documents/k")
	require.NoError(t, err)
	assert.Equal(t, "https://s3.local/howyoubeen/documents/k", url)
}
