package cli

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"ecocivic/api/internal/apperr"
)

// photoReference picks the photo a command attaches: either a URL given
// as-is, or a local image turned into a data URI for the media store.
func photoReference(url, path string) (string, error) {
	switch {
	case url != "" && path != "":
		return "", apperr.Validation("use either --photo or --photo-file, not both")
	case path == "":
		return url, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "read photo", err)
	}
	mediaType := mime.TypeByExtension(filepath.Ext(path))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data)), nil
}
