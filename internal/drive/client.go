package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/gdrive-mcp/internal/instrumentation"
	"github.com/teemow/gdrive-mcp/internal/logging"
)

const (
	// FolderMimeType is the MIME type for Google Drive folders
	FolderMimeType = "application/vnd.google-apps.folder"

	// DefaultMaxResults is the page size tools use when a caller gives none
	DefaultMaxResults = 10

	// DefaultDownloadChunkSize is the read size between progress reports
	DefaultDownloadChunkSize = 1 << 20
)

const (
	listFields   = "files(id, name, mimeType, size, createdTime, modifiedTime, webViewLink)"
	refFields    = "id, name, webViewLink"
	movedFields  = "id, name, parents, webViewLink"
	detailFields = "id, name, mimeType, size, createdTime, modifiedTime, webViewLink, parents, owners, permissions"
)

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// Client wraps the Google Drive API service for one authorized handle.
type Client struct {
	service   *drive.Service
	logger    logging.Logger
	metrics   *instrumentation.Metrics
	chunkSize int

	apiOptions []option.ClientOption
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for progress and result messages.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records per-operation metrics and transferred bytes.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithChunkSize sets the download chunk size. Values <= 0 keep the default.
func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithClientOptions passes extra options to drive.NewService, for example
// option.WithEndpoint in tests.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *Client) { c.apiOptions = append(c.apiOptions, opts...) }
}

// NewClient creates a Drive client that issues requests with httpClient,
// which must already carry the OAuth bearer token.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...Option) (*Client, error) {
	c := &Client{chunkSize: DefaultDownloadChunkSize}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger)

	apiOpts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, c.apiOptions...)
	svc, err := drive.NewService(ctx, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	c.service = svc
	return c, nil
}

// CheckLocalFile returns *LocalFileNotFoundError when path does not exist.
func CheckLocalFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &LocalFileNotFoundError{Path: path}
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return nil
}

// SearchQuery builds the Drive query matching names that contain term.
func SearchQuery(term string) string {
	return fmt.Sprintf("name contains '%s'", queryEscaper.Replace(term))
}

// ListFiles lists up to maxResults files, optionally filtered by a Drive
// query such as "mimeType='application/pdf'".
func (c *Client) ListFiles(ctx context.Context, maxResults int, query string) (*FileList, error) {
	files, err := c.list(ctx, instrumentation.OperationList, maxResults, query)
	if err != nil {
		return nil, err
	}
	c.logger.Info("found files", "count", len(files.Files))
	return files, nil
}

// SearchFiles lists up to maxResults files whose name contains term.
func (c *Client) SearchFiles(ctx context.Context, term string, maxResults int) (*FileList, error) {
	files, err := c.list(ctx, instrumentation.OperationSearch, maxResults, SearchQuery(term))
	if err != nil {
		return nil, err
	}
	c.logger.Info("found matching files", "count", len(files.Files), "search_term", term)
	return files, nil
}

func (c *Client) list(ctx context.Context, op string, maxResults int, query string) (*FileList, error) {
	var resp *drive.FileList
	err := c.observe(ctx, op, fileAttrs(""), func(ctx context.Context) error {
		call := c.service.Files.List().
			Context(ctx).
			PageSize(int64(maxResults)).
			Fields(listFields)
		if query != "" {
			call = call.Q(query)
		}
		var err error
		resp, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	files := make([]FileInfo, 0, len(resp.Files))
	for _, f := range resp.Files {
		files = append(files, *convertToFileInfo(f))
	}
	return &FileList{Files: files}, nil
}

// CreateFolder creates a folder, under parentID when it is not empty.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (*FileRef, error) {
	meta := &drive.File{
		Name:     name,
		MimeType: FolderMimeType,
	}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	var created *drive.File
	err := c.observe(ctx, instrumentation.OperationCreateFolder, fileAttrs(parentID).WithMimeType(FolderMimeType), func(ctx context.Context) error {
		var err error
		created, err = c.service.Files.Create(meta).Context(ctx).Fields(refFields).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("created folder", "name", created.Name, logging.FileID(created.Id))
	return convertToFileRef(created), nil
}

// UploadFile uploads the local file at path. name defaults to the base name
// of path and parentID to the Drive root.
func (c *Client) UploadFile(ctx context.Context, path, name, parentID string) (*FileRef, error) {
	if err := CheckLocalFile(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if name == "" {
		name = filepath.Base(path)
	}
	meta := &drive.File{Name: name}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	counter := &countingReader{r: f}
	var uploaded *drive.File
	err = c.observe(ctx, instrumentation.OperationUpload, fileAttrs(parentID), func(ctx context.Context) error {
		var err error
		uploaded, err = c.service.Files.Create(meta).
			Context(ctx).
			Media(counter, googleapi.ChunkSize(googleapi.DefaultUploadChunkSize)).
			Fields(refFields).
			Do()
		return err
	})
	c.metrics.RecordTransferBytes(ctx, instrumentation.DirectionUpload, counter.n)
	if err != nil {
		return nil, err
	}

	c.logger.Info("uploaded file", "name", uploaded.Name, logging.FileID(uploaded.Id))
	return convertToFileRef(uploaded), nil
}

// DeleteFile permanently deletes a file, bypassing the trash.
func (c *Client) DeleteFile(ctx context.Context, fileID string) (*DeleteResult, error) {
	err := c.observe(ctx, instrumentation.OperationDelete, fileAttrs(fileID), func(ctx context.Context) error {
		return c.service.Files.Delete(fileID).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("deleted file", logging.FileID(fileID))
	return &DeleteResult{
		Success: true,
		Message: fmt.Sprintf("File %s deleted successfully", fileID),
	}, nil
}

// DownloadFile streams the content of fileID into dest, reporting progress
// to the logger after every chunk. A failed download removes dest.
func (c *Client) DownloadFile(ctx context.Context, fileID, dest string) (result *DownloadResult, err error) {
	var resp *http.Response
	err = c.observe(ctx, instrumentation.OperationDownload, fileAttrs(fileID), func(ctx context.Context) error {
		var err error
		resp, err = c.service.Files.Get(fileID).Context(ctx).Download()
		return err
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", dest, cerr)
		}
		if err != nil {
			_ = os.Remove(dest)
			result = nil
		}
	}()

	written, err := c.copyChunks(ctx, out, resp.Body, resp.ContentLength, fileID)
	c.metrics.RecordTransferBytes(ctx, instrumentation.DirectionDownload, written)
	if err != nil {
		return nil, err
	}

	instrumentation.AddSpanEvent(ctx, "drive.download.complete",
		instrumentation.NewSpanAttributeBuilder().WithFileID(fileID).WithBytes(written).Build()...)
	c.logger.Info("downloaded file", logging.FileID(fileID), logging.Path(dest), "bytes", written)
	return &DownloadResult{Success: true, Path: dest, Bytes: written}, nil
}

// copyChunks copies src to dst one chunk at a time. Read failures are remote
// failures; write failures are local ones.
func (c *Client) copyChunks(ctx context.Context, dst io.Writer, src io.Reader, total int64, fileID string) (int64, error) {
	buf := make([]byte, c.chunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := readChunk(src, buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, fmt.Errorf("failed to write download: %w", werr)
			}
			written += int64(n)
			if total > 0 {
				c.logger.Info("download progress", logging.FileID(fileID), "progress", float64(written)/float64(total))
			}
		}

		switch {
		case rerr == nil:
			continue
		case errors.Is(rerr, io.EOF):
			if total <= 0 {
				c.logger.Info("download progress", logging.FileID(fileID), "progress", 1.0)
			}
			return written, nil
		default:
			return written, &RemoteOperationError{Op: instrumentation.OperationDownload, Err: rerr}
		}
	}
}

// readChunk fills buf from r. Unlike io.ReadFull it passes every error
// through, so a truncated body stays distinguishable from a clean EOF.
func readChunk(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// RenameFile changes the name of fileID.
func (c *Client) RenameFile(ctx context.Context, fileID, newName string) (*FileRef, error) {
	var updated *drive.File
	err := c.observe(ctx, instrumentation.OperationRename, fileAttrs(fileID), func(ctx context.Context) error {
		var err error
		updated, err = c.service.Files.Update(fileID, &drive.File{Name: newName}).
			Context(ctx).
			Fields(refFields).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("renamed file", "name", updated.Name, logging.FileID(fileID))
	return convertToFileRef(updated), nil
}

// MoveFile replaces every current parent of fileID with newParentID in a
// single update.
func (c *Client) MoveFile(ctx context.Context, fileID, newParentID string) (*FileRef, error) {
	var moved *drive.File
	err := c.observe(ctx, instrumentation.OperationMove, fileAttrs(fileID), func(ctx context.Context) error {
		current, err := c.service.Files.Get(fileID).Context(ctx).Fields("parents").Do()
		if err != nil {
			return err
		}

		call := c.service.Files.Update(fileID, &drive.File{}).
			Context(ctx).
			AddParents(newParentID).
			Fields(movedFields)
		if len(current.Parents) > 0 {
			call = call.RemoveParents(strings.Join(current.Parents, ","))
		}
		moved, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("moved file to new folder", logging.FileID(fileID), "parent", newParentID)
	return convertToFileRef(moved), nil
}

// GetFileInfo returns the full metadata record of fileID, including parents,
// owners and permissions.
func (c *Client) GetFileInfo(ctx context.Context, fileID string) (*FileInfo, error) {
	var f *drive.File
	err := c.observe(ctx, instrumentation.OperationGet, fileAttrs(fileID), func(ctx context.Context) error {
		var err error
		f, err = c.service.Files.Get(fileID).Context(ctx).Fields(detailFields).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return convertToFileInfo(f), nil
}

func fileAttrs(fileID string) *instrumentation.SpanAttributeBuilder {
	return instrumentation.NewSpanAttributeBuilder().WithFileID(fileID)
}

// observe runs one Drive call inside a client span, records its outcome and
// wraps any failure in *RemoteOperationError.
func (c *Client) observe(ctx context.Context, op string, attrs *instrumentation.SpanAttributeBuilder, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceDrive, op, attrs.Build()...)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		err = &RemoteOperationError{Op: op, Err: err}
	}
	instrumentation.EndSpan(span, err)
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceDrive, op, status, duration)
	c.logger.Debug("drive call",
		logging.Service(instrumentation.ServiceDrive),
		logging.Operation(op),
		logging.Status(status),
		logging.KeyDuration, duration)
	return err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// convertToFileInfo converts a Drive API File to our FileInfo type
func convertToFileInfo(f *drive.File) *FileInfo {
	info := &FileInfo{
		ID:          f.Id,
		Name:        f.Name,
		MimeType:    f.MimeType,
		Size:        f.Size,
		WebViewLink: f.WebViewLink,
		Parents:     f.Parents,
	}

	if f.CreatedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
			info.CreatedTime = t
		}
	}
	if f.ModifiedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
			info.ModifiedTime = t
		}
	}

	for _, owner := range f.Owners {
		info.Owners = append(info.Owners, User{
			DisplayName:  owner.DisplayName,
			EmailAddress: owner.EmailAddress,
			PhotoLink:    owner.PhotoLink,
		})
	}
	for _, perm := range f.Permissions {
		info.Permissions = append(info.Permissions, Permission{
			ID:           perm.Id,
			Type:         perm.Type,
			Role:         perm.Role,
			EmailAddress: perm.EmailAddress,
			Domain:       perm.Domain,
			DisplayName:  perm.DisplayName,
		})
	}

	return info
}

func convertToFileRef(f *drive.File) *FileRef {
	return &FileRef{
		ID:          f.Id,
		Name:        f.Name,
		WebViewLink: f.WebViewLink,
		Parents:     f.Parents,
	}
}
