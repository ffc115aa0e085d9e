package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/dmitrijs2005/famledger/internal/netx"
)

// ReceiptRemote issues presigned URLs for receipt objects.
type ReceiptRemote interface {
	PresignReceipt(ctx context.Context, householdID, recordID, contentType string) (key, url string, err error)
	ReceiptURL(ctx context.Context, householdID, key string) (string, error)
}

// receiptField is the payload key that points at the uploaded object.
const receiptField = "receipt_key"

// AttachReceipt uploads the file at path and records its object key in the
// record payload through a regular update, so the link syncs like any edit.
func (s *Session) AttachReceipt(ctx context.Context, rr ReceiptRemote, recordID, path string) (*models.Record, error) {
	rec, err := s.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Deleted() {
		return nil, common.ErrNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read receipt: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))

	key, url, err := rr.PresignReceipt(ctx, s.HouseholdID, recordID, contentType)
	if err != nil {
		return nil, err
	}
	if err := netx.UploadToS3PresignedURL(ctx, url, contentType, data); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}

	payload, err := withField(rec.Payload, receiptField, key)
	if err != nil {
		return nil, err
	}
	return s.Gateway.Update(ctx, s.UserID, recordID, payload, rec.Version)
}

// FetchReceipt downloads the receipt linked from the record into w.
func (s *Session) FetchReceipt(ctx context.Context, rr ReceiptRemote, recordID string, w io.Writer) (int64, error) {
	rec, err := s.Get(ctx, recordID)
	if err != nil {
		return 0, err
	}

	var fields map[string]any
	if err := json.Unmarshal(rec.Payload, &fields); err != nil {
		return 0, fmt.Errorf("%w: payload is not an object", common.ErrInvalidArgument)
	}
	key, _ := fields[receiptField].(string)
	if key == "" {
		return 0, fmt.Errorf("%w: record has no receipt", common.ErrNotFound)
	}

	url, err := rr.ReceiptURL(ctx, s.HouseholdID, key)
	if err != nil {
		return 0, err
	}
	n, err := netx.DownloadFromPresignedURL(ctx, url, w)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	return n, nil
}

func withField(payload json.RawMessage, field, value string) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &fields); err != nil {
			return nil, fmt.Errorf("%w: payload is not an object", common.ErrInvalidArgument)
		}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	fields[field] = raw
	return json.Marshal(fields)
}
