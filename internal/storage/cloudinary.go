package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Config holds Cloudinary credentials. URL takes precedence.
type Config struct {
	URL       string
	CloudName string
	APIKey    string
	APISecret string
}

type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// Cloudinary stores images in a Cloudinary account.
type Cloudinary struct {
	api uploadAPI
}

var _ services.ObjectStorage = (*Cloudinary)(nil)

// NewCloudinary builds a Cloudinary client from credentials.
func NewCloudinary(cfg Config) (*Cloudinary, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)
	switch {
	case cfg.URL != "":
		cld, err = cloudinary.NewFromURL(cfg.URL)
	case cfg.CloudName != "" && cfg.APIKey != "" && cfg.APISecret != "":
		cld, err = cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	default:
		return nil, errors.New("cloudinary credentials are not configured")
	}
	if err != nil {
		return nil, fmt.Errorf("creating cloudinary client: %w", err)
	}
	cld.Config.URL.Secure = true
	return &Cloudinary{api: &cld.Upload}, nil
}

// transformations per namespace; profile pictures are bounded to 500px.
var transformations = map[string]string{
	services.FolderProfilePictures: "c_limit,w_500,h_500/q_auto",
}

// Upload sends a data URI (or raw base64 image) to folder and returns its https URL.
func (c *Cloudinary) Upload(ctx context.Context, payload, folder string) (string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", errors.New("empty image payload")
	}
	if !strings.HasPrefix(payload, "data:") {
		payload = "data:image/png;base64," + payload
	}

	params := uploader.UploadParams{Folder: folder}
	if t, ok := transformations[folder]; ok {
		params.Transformation = t
	}

	res, err := c.api.Upload(ctx, payload, params)
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if res == nil {
		return "", errors.New("cloudinary upload: empty response")
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", errors.New("cloudinary upload: response carried no secure url")
	}

	utils.LogDebug("Image uploaded", map[string]interface{}{"folder": folder, "public_id": res.PublicID})
	return res.SecureURL, nil
}
