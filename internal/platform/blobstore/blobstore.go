// Package blobstore provides durable document storage for generated
// prescription PDFs and uploaded lab results. It defines the BlobStore
// interface, an in-memory implementation suitable for testing and
// development, and Echo HTTP handlers for ACL-checked download and
// upload-reference issuance.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
)

// MaxFileSize is the maximum allowed blob size in bytes (25 MB).
const MaxFileSize = 25 * 1024 * 1024

// Visibility controls who may read a stored object.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// ACLPolicy restricts access to a stored object. Private objects are readable
// only by their owner.
type ACLPolicy struct {
	Owner      string     `json:"owner"`
	Visibility Visibility `json:"visibility"`
}

// BlobMetadata describes a stored blob.
type BlobMetadata struct {
	Ref         string    `json:"ref"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	ACL         ACLPolicy `json:"acl"`
	CreatedAt   time.Time `json:"created_at"`
}

// BlobStore defines the contract for document storage backends.
type BlobStore interface {
	// UploadBuffer stores content and returns a stable reference of the form
	// "/objects/<id>".
	UploadBuffer(ctx context.Context, content []byte, contentType string) (string, error)
	// SetACL attaches an access policy to a previously stored object.
	SetACL(ctx context.Context, ref string, policy ACLPolicy) error
	// Download returns a reader over the blob content and its metadata.
	Download(ctx context.Context, ref string) (io.ReadCloser, *BlobMetadata, error)
	// GetMetadata returns blob metadata without content.
	GetMetadata(ctx context.Context, ref string) (*BlobMetadata, error)
}

// CanAccess reports whether the given user may read an object under its ACL.
// Public objects are readable by anyone; private ones by their owner only.
func CanAccess(meta *BlobMetadata, userID string) bool {
	if meta.ACL.Visibility == VisibilityPublic {
		return true
	}
	return userID != "" && meta.ACL.Owner == userID
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedBlob struct {
	metadata BlobMetadata
	content  []byte
}

// InMemoryBlobStore is a thread-safe, in-memory BlobStore for testing/dev.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string]*storedBlob)}
}

func (s *InMemoryBlobStore) UploadBuffer(_ context.Context, content []byte, contentType string) (string, error) {
	if int64(len(content)) > MaxFileSize {
		return "", ErrFileTooLarge
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := sha256.Sum256(content)
	ref := "/objects/" + uuid.New().String()

	data := make([]byte, len(content))
	copy(data, content)

	s.mu.Lock()
	s.blobs[ref] = &storedBlob{
		metadata: BlobMetadata{
			Ref:         ref,
			ContentType: contentType,
			Size:        int64(len(data)),
			Hash:        fmt.Sprintf("%x", h),
			ACL:         ACLPolicy{Visibility: VisibilityPrivate},
			CreatedAt:   time.Now().UTC(),
		},
		content: data,
	}
	s.mu.Unlock()

	return ref, nil
}

func (s *InMemoryBlobStore) SetACL(_ context.Context, ref string, policy ACLPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, ok := s.blobs[ref]
	if !ok {
		return ErrBlobNotFound
	}
	blob.metadata.ACL = policy
	return nil
}

func (s *InMemoryBlobStore) Download(_ context.Context, ref string) (io.ReadCloser, *BlobMetadata, error) {
	s.mu.RLock()
	blob, ok := s.blobs[ref]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrBlobNotFound
	}

	meta := blob.metadata // copy
	return io.NopCloser(bytes.NewReader(blob.content)), &meta, nil
}

func (s *InMemoryBlobStore) GetMetadata(_ context.Context, ref string) (*BlobMetadata, error) {
	s.mu.RLock()
	blob, ok := s.blobs[ref]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrBlobNotFound
	}

	meta := blob.metadata // copy
	return &meta, nil
}

// ---------------------------------------------------------------------------
// HTTP handler
// ---------------------------------------------------------------------------

// BlobHandler provides Echo HTTP handlers for object operations.
type BlobHandler struct {
	store BlobStore
}

func NewBlobHandler(store BlobStore) *BlobHandler {
	return &BlobHandler{store: store}
}

// RegisterRoutes mounts object routes. Download lives outside the API group
// because stored references are absolute "/objects/..." paths.
func (h *BlobHandler) RegisterRoutes(e *echo.Echo, api *echo.Group) {
	e.GET("/objects/:id", h.handleDownload)
	api.POST("/objects/upload", h.handleUploadRef)
}

// handleUploadRef issues a fresh upload reference. The caller PUTs content to
// it out of band in a real deployment; the in-memory store accepts the bytes
// directly on the same request when provided.
func (h *BlobHandler) handleUploadRef(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxFileSize+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read upload body")
	}
	if int64(len(body)) > MaxFileSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, ErrFileTooLarge.Error())
	}

	ref, err := h.store.UploadBuffer(c.Request().Context(), body, c.Request().Header.Get("Content-Type"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"uploadURL": ref})
}

func (h *BlobHandler) handleDownload(c echo.Context) error {
	ref := "/objects/" + c.Param("id")
	userID := c.QueryParam("userId")

	rc, meta, err := h.store.Download(c.Request().Context(), ref)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "object not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer rc.Close()

	if !CanAccess(meta, userID) {
		return echo.NewHTTPError(http.StatusUnauthorized, "access denied")
	}

	c.Response().Header().Set("Content-Disposition", "inline")
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}
