package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/famledger/internal/common"
	sc "github.com/dmitrijs2005/famledger/internal/server/config"
)

const presignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ReceiptService hands out presigned S3 links for receipt attachments.
// Object keys are scoped by household so a link is only issued to members.
type ReceiptService struct {
	members MembershipChecker
	config  *sc.Config
}

func NewReceiptService(members MembershipChecker, cfg *sc.Config) *ReceiptService {
	return &ReceiptService{members: members, config: cfg}
}

func receiptPrefix(householdID string) string {
	return fmt.Sprintf("households/%s/receipts/", householdID)
}

func receiptKey(householdID, recordID string) string {
	return receiptPrefix(householdID) + recordID + "/" + uuid.NewString()
}

func (s *ReceiptService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return newS3PresignClient(client), nil
}

// PresignUpload returns a new object key for a receipt of recordID and a
// presigned PUT URL for it.
func (s *ReceiptService) PresignUpload(ctx context.Context, actorID, householdID, recordID, contentType string) (string, string, error) {
	if recordID == "" || strings.Contains(recordID, "/") {
		return "", "", fmt.Errorf("%w: bad record id %q", common.ErrInvalidArgument, recordID)
	}
	if err := s.members.RequireMember(ctx, householdID, actorID); err != nil {
		return "", "", err
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return "", "", err
	}

	key := receiptKey(householdID, recordID)
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := presignPutObject(pc, ctx, in, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", "", err
	}
	return key, req.URL, nil
}

// PresignDownload returns a presigned GET URL for a key issued by
// PresignUpload for the same household.
func (s *ReceiptService) PresignDownload(ctx context.Context, actorID, householdID, key string) (string, error) {
	if !strings.HasPrefix(key, receiptPrefix(householdID)) || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: key is outside household %s", common.ErrInvalidArgument, householdID)
	}
	if err := s.members.RequireMember(ctx, householdID, actorID); err != nil {
		return "", err
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
