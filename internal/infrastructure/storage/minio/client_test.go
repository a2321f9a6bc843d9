package minio

import (
	"context"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/KeyIP-Analytics/internal/config"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

type MockMinIOAPI struct {
	mock.Mock
}

func (m *MockMinIOAPI) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).([]minio.BucketInfo), args.Error(1)
}

func (m *MockMinIOAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockMinIOAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	args := m.Called(ctx, bucketName, opts)
	return args.Error(0)
}

func (m *MockMinIOAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockMinIOAPI) PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	args := m.Called(ctx, bucketName, objectName, expiry, reqParams)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*url.URL), args.Error(1)
}

func makeURL(s string) *url.URL {
	u, _ := url.Parse(s)
	return u
}

type ClientTestSuite struct {
	suite.Suite
	api    *MockMinIOAPI
	client *MinIOClient
	ctx    context.Context
}

func (s *ClientTestSuite) SetupTest() {
	s.api = new(MockMinIOAPI)
	s.client = newMinIOClient(s.api, config.MinIOConfig{Bucket: "reports"}, nil)
	s.ctx = context.Background()
}

func (s *ClientTestSuite) TestApplyDefaults() {
	cfg := config.MinIOConfig{}
	applyDefaults(&cfg)
	s.Equal(config.DefaultMinIORegion, cfg.Region)
	s.Equal(DefaultBucket, cfg.Bucket)
	s.Equal(config.DefaultPresignExpiry, cfg.PresignExpiry)
}

func (s *ClientTestSuite) TestEnsureBucket_Creates() {
	s.api.On("BucketExists", s.ctx, "reports").Return(false, nil)
	s.api.On("MakeBucket", s.ctx, "reports", minio.MakeBucketOptions{Region: config.DefaultMinIORegion}).Return(nil)

	s.NoError(s.client.EnsureBucket(s.ctx))
	s.api.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestEnsureBucket_Exists() {
	s.api.On("BucketExists", s.ctx, "reports").Return(true, nil)

	s.NoError(s.client.EnsureBucket(s.ctx))
	s.api.AssertNotCalled(s.T(), "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ClientTestSuite) TestEnsureBucket_Unreachable() {
	s.api.On("BucketExists", s.ctx, "reports").Return(false, assert.AnError)
	s.True(errors.IsCode(s.client.EnsureBucket(s.ctx), errors.ErrCodeUnavailable))
}

func (s *ClientTestSuite) TestPut() {
	s.api.On("PutObject", s.ctx, "reports", "pdf/r-1.pdf", mock.Anything, int64(3), minio.PutObjectOptions{ContentType: "application/pdf"}).
		Return(minio.UploadInfo{Size: 3, ETag: "e"}, nil)
	s.api.On("PresignedGetObject", s.ctx, "reports", "pdf/r-1.pdf", config.DefaultPresignExpiry, url.Values(nil)).
		Return(makeURL("http://minio:9000/reports/pdf/r-1.pdf?X-Amz-Signature=x"), nil)

	obj, err := s.client.Put(s.ctx, "pdf/r-1.pdf", []byte("pdf"), "application/pdf")
	s.Require().NoError(err)
	s.Equal("s3://reports/pdf/r-1.pdf", obj.Location)
	s.Equal("http://minio:9000/reports/pdf/r-1.pdf?X-Amz-Signature=x", obj.URL)
	s.Equal(int64(3), obj.Size)
}

func (s *ClientTestSuite) TestPut_PresignFailureKeepsObject() {
	s.api.On("PutObject", s.ctx, "reports", "a.md", mock.Anything, int64(1), mock.Anything).Return(minio.UploadInfo{Size: 1}, nil)
	s.api.On("PresignedGetObject", s.ctx, "reports", "a.md", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	obj, err := s.client.Put(s.ctx, "a.md", []byte("x"), "text/markdown")
	s.Require().NoError(err)
	s.Empty(obj.URL)
	s.Equal("s3://reports/a.md", obj.Location)
}

func (s *ClientTestSuite) TestPut_UploadFailure() {
	s.api.On("PutObject", s.ctx, "reports", "a.md", mock.Anything, int64(1), mock.Anything).Return(minio.UploadInfo{}, assert.AnError)

	_, err := s.client.Put(s.ctx, "a.md", []byte("x"), "text/markdown")
	s.True(errors.IsCode(err, errors.ErrCodeUnavailable))
}

func (s *ClientTestSuite) TestHealthCheck() {
	s.api.On("ListBuckets", s.ctx).Return([]minio.BucketInfo{{Name: "reports"}}, nil).Once()
	s.NoError(s.client.HealthCheck(s.ctx))

	s.api.On("ListBuckets", s.ctx).Return([]minio.BucketInfo(nil), assert.AnError).Once()
	s.True(errors.IsCode(s.client.HealthCheck(s.ctx), errors.ErrCodeUnavailable))
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}
