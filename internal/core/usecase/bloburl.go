package usecase

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

// AttachmentContainer is the blob container holding email attachments.
const AttachmentContainer = "email-attachments"

const fileScheme = "file://"

// BlobNameFromURL resolves the blob name inside AttachmentContainer for a
// stored attachment URL. file:// URLs and plain filesystem paths (including
// drive-letter paths) resolve locally; anything with a scheme and host is
// treated as a remote blob URL.
func BlobNameFromURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve blob name", errors.New("empty blob url"))
	}
	if len(raw) >= len(fileScheme) && strings.EqualFold(raw[:len(fileScheme)], fileScheme) {
		return localBlobName(raw[len(fileScheme):])
	}
	if isLocalPath(raw) {
		return localBlobName(raw)
	}
	return remoteBlobName(raw)
}

func isLocalPath(raw string) bool {
	if hasDriveLetter(raw) {
		return true
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "" || u.Host == "")
}

// hasDriveLetter reports paths such as C:\data or d:/data.
func hasDriveLetter(p string) bool {
	if len(p) < 3 || p[1] != ':' || (p[2] != '\\' && p[2] != '/') {
		return false
	}
	c := p[0] | 0x20
	return c >= 'a' && c <= 'z'
}

func localBlobName(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	idx := strings.Index(strings.ToLower(p), AttachmentContainer)
	if idx >= 0 {
		rest := p[idx+len(AttachmentContainer):]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			if name := strings.TrimLeft(rest[slash+1:], "/"); name != "" {
				return name, nil
			}
		}
	}
	name := path.Base(strings.TrimRight(p, "/"))
	if name == "" || name == "." || name == "/" {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve blob name", fmt.Errorf("no file name in %q", p))
	}
	return name, nil
}

// remoteBlobName drops the container segment and keeps the rest of the path.
func remoteBlobName(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve blob name", err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve blob name", fmt.Errorf("no blob path in %q", raw))
	}
	return strings.Join(segments[1:], "/"), nil
}
