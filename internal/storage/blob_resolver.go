package storage

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"

	"aim-chat/conversation-core/internal/domains/contracts"
)

var ErrInvalidBlobRef = contracts.NewError(contracts.KindBadRequest, "invalid_file", "invalid file reference")

// BlobResolver maps upload references to stable URLs under BaseURL. Absolute
// http(s) URLs pass through unchanged.
type BlobResolver struct {
	base *url.URL
}

func NewBlobResolver(baseURL string) (*BlobResolver, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return &BlobResolver{}, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("blob base url must be absolute")
	}
	return &BlobResolver{base: u}, nil
}

func (r *BlobResolver) ResolveURL(_ context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrInvalidBlobRef
	}
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return u.String(), nil
	}
	if r.base == nil {
		return "", ErrInvalidBlobRef
	}
	clean := path.Clean("/" + ref)
	if clean == "/" {
		return "", ErrInvalidBlobRef
	}
	out := *r.base
	out.Path = strings.TrimSuffix(out.Path, "/") + clean
	return out.String(), nil
}
