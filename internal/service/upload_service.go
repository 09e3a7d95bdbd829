package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/helphub-go-api/internal/dto"
	"github.com/noah-isme/helphub-go-api/pkg/cloudinary"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

// FileUploader abstracts the object storage destination.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (cloudinary.UploadResult, error)
}

// UploadService validates and stores image uploads for requests and chat.
// The returned asset is embedded by the caller; there is no standalone upload
// record.
type UploadService interface {
	UploadImage(ctx context.Context, file *multipart.FileHeader) (dto.UploadedAsset, error)
}

type uploadService struct {
	storage  FileUploader
	logger   zerolog.Logger
	maxBytes int64
	tracer   trace.Tracer
}

// NewUploadService constructs an upload service.
func NewUploadService(storage FileUploader, maxBytes int64, logger zerolog.Logger) UploadService {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &uploadService{
		storage:  storage,
		logger:   logger.With().Str("component", "upload_service").Logger(),
		maxBytes: maxBytes,
		tracer:   otel.Tracer("github.com/noah-isme/helphub-go-api/internal/service/upload"),
	}
}

func (s *uploadService) UploadImage(ctx context.Context, file *multipart.FileHeader) (dto.UploadedAsset, error) {
	ctx, span := s.tracer.Start(ctx, "upload.image")
	defer span.End()

	if file == nil {
		err := errors.New("file is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.UploadedAsset{}, err
	}

	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if file.Size > s.maxBytes {
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.UploadedAsset{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.UploadedAsset{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxBytes+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.UploadedAsset{}, err
	}
	if int64(buf.Len()) > s.maxBytes {
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.UploadedAsset{}, ErrUploadTooLarge
	}

	mime := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("upload.detected_mime", mime.String()))
	if !strings.HasPrefix(mime.String(), "image/") {
		span.RecordError(ErrUploadTypeNotAllowed)
		span.SetStatus(codes.Error, "type not allowed")
		return dto.UploadedAsset{}, ErrUploadTypeNotAllowed
	}

	name := sanitizeFileName(file.Filename)
	result, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.UploadedAsset{}, err
	}

	span.SetStatus(codes.Ok, "stored")

	return dto.UploadedAsset{
		URL:      result.URL,
		PublicID: result.PublicID,
		Name:     name,
		Type:     mime.String(),
	}, nil
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}
