package clips

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"

	"voiceover/internal/services"
)

// Thumbnail is either a custom image on disk or a generated SVG.
type Thumbnail struct {
	Path        string
	ContentType string
	Body        []byte
}

// Generated reports whether the thumbnail was synthesized.
func (t Thumbnail) Generated() bool { return t.Path == "" }

var thumbnailExtensions = []struct {
	ext         string
	contentType string
}{
	{".jpg", "image/jpeg"},
	{".png", "image/png"},
}

// Thumbnail returns a custom <id>.jpg or <id>.png from the thumbnails
// directory, falling back to a generated SVG for clips that exist.
func (c *Catalog) Thumbnail(id string) (Thumbnail, error) {
	if !ValidID(id) {
		return Thumbnail{}, services.Wrap(services.ErrValidation, "thumbnail", "", "invalid clip id", nil)
	}
	for _, candidate := range thumbnailExtensions {
		path := filepath.Join(c.thumbnailsDir, id+candidate.ext)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return Thumbnail{Path: path, ContentType: candidate.contentType}, nil
		}
	}
	if _, err := c.VideoPath(id); err != nil {
		return Thumbnail{}, err
	}
	return Thumbnail{ContentType: "image/svg+xml", Body: ThumbnailSVG(id)}, nil
}

// ThumbnailColor is the background colour for a generated thumbnail: the
// first six hex digits of md5(id).
func ThumbnailColor(id string) string {
	sum := md5.Sum([]byte(id))
	return "#" + hex.EncodeToString(sum[:])[:6]
}

// ThumbnailSVG renders the 400x225 placeholder for id.
func ThumbnailSVG(id string) []byte {
	return []byte(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="400" height="225" viewBox="0 0 400 225">
    <rect width="400" height="225" fill="%s" />
    <text x="50%%" y="50%%" dominant-baseline="middle" text-anchor="middle" font-family="Arial" font-size="24" fill="white">%s</text>
    <text x="50%%" y="70%%" dominant-baseline="middle" text-anchor="middle" font-family="Arial" font-size="18" fill="white">Click to add voice-over</text>
</svg>
`, ThumbnailColor(id), html.EscapeString(DisplayName(id))))
}

// ThumbnailListing describes the thumbnails directory.
type ThumbnailListing struct {
	Directory string   `json:"thumbnails_directory"`
	Files     []string `json:"files"`
}

// ListThumbnails lists the files in the thumbnails directory. A missing
// directory yields services.ErrNotFound.
func (c *Catalog) ListThumbnails() (ThumbnailListing, error) {
	dir, err := filepath.Abs(c.thumbnailsDir)
	if err != nil {
		dir = c.thumbnailsDir
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return ThumbnailListing{Directory: dir}, services.Wrap(services.ErrNotFound, "thumbnail", "", "Directory does not exist", nil)
		}
		return ThumbnailListing{Directory: dir}, err
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return ThumbnailListing{Directory: dir, Files: files}, nil
}
