// utils/r2.go
package utils

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var r2Client *s3.Client
var r2Bucket string
var geoObjectKey string

// InitR2 configures the R2 client used to fetch the offline geo
// database. Returns false when R2 is not configured, in which case the
// resolver runs from the local file only.
func InitR2() (bool, error) {
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	r2Bucket = os.Getenv("R2_BUCKET_NAME")
	geoObjectKey = os.Getenv("GEO_DB_OBJECT_KEY")
	if accountID == "" || accessKeyID == "" || r2Bucket == "" || geoObjectKey == "" {
		return false, nil
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return false, fmt.Errorf("failed to load R2 config: %w", err)
	}

	r2Client = s3.NewFromConfig(cfg)
	return true, nil
}

// FetchGeoDatabase downloads the current geo database object. The
// caller owns the returned body.
func FetchGeoDatabase(ctx context.Context) (io.ReadCloser, error) {
	if r2Client == nil {
		return nil, fmt.Errorf("R2 client not initialized")
	}
	out, err := r2Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r2Bucket),
		Key:    aws.String(geoObjectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch geo database from R2: %w", err)
	}
	return out.Body, nil
}
