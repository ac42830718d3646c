package storage

import (
	"context"

	"github.com/bwise1/lookaround/config"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/pkg/errors"
)

type Cloudinary struct {
	CLD *cloudinary.Cloudinary
}

func NewCloudinary(cfg *config.Config) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, errors.Wrap(err, "initialize cloudinary")
	}
	return &Cloudinary{CLD: cld}, nil
}

// UploadImage uploads a local path or remote URL under folder/publicID, replacing any
// previous upload with the same id, and returns the HTTPS delivery URL.
func (c *Cloudinary) UploadImage(ctx context.Context, source, folder, publicID string) (string, error) {
	overwrite := true
	resp, err := c.CLD.Upload.Upload(ctx, source, uploader.UploadParams{
		Folder:    folder,
		PublicID:  publicID,
		Overwrite: &overwrite,
	})
	if err != nil {
		return "", errors.Wrap(err, "upload image")
	}
	if resp.Error.Message != "" {
		return "", errors.New(resp.Error.Message)
	}
	return resp.SecureURL, nil
}
