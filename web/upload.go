package web

// upload.go decodes multipart requests with files, as used by GraphQL clients that upload files:
// an "operations" part holding the JSON request, a "map" part mapping file parts to variable paths
// (eg {"0": ["variables.file"]}) and the file parts themselves

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andrewwphillips/gqlkit/graphql"
)

func (h *Handler) decodeMultipart(r *http.Request) (graphql.Request, error) {
	var request graphql.Request
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		return request, fmt.Errorf("%w parsing multipart form", err)
	}
	operations := r.FormValue("operations")
	if operations == "" {
		return request, errors.New("multipart request has no operations")
	}
	if strings.HasPrefix(strings.TrimSpace(operations), "[") {
		return request, errors.New("batched operations are not supported")
	}
	if err := json.Unmarshal([]byte(operations), &request); err != nil {
		return request, fmt.Errorf("%w in operations", err)
	}

	var mapping map[string][]string
	if m := r.FormValue("map"); m != "" {
		if err := json.Unmarshal([]byte(m), &mapping); err != nil {
			return request, fmt.Errorf("%w in map", err)
		}
	}
	for key, paths := range mapping {
		upload, err := formFile(r, key)
		if err != nil {
			return request, err
		}
		for _, path := range paths {
			if err := setUpload(&request, path, upload); err != nil {
				return request, err
			}
		}
	}
	return request, nil
}

func formFile(r *http.Request, key string) (graphql.Upload, error) {
	file, header, err := r.FormFile(key)
	if err != nil {
		return graphql.Upload{}, fmt.Errorf("%w getting file %q", err, key)
	}
	defer file.Close()
	buf, err := io.ReadAll(file)
	if err != nil {
		return graphql.Upload{}, fmt.Errorf("%w reading file %q", err, key)
	}
	return graphql.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     buf,
	}, nil
}

// setUpload puts the upload into the request at a path like "variables.files.1"
func setUpload(request *graphql.Request, path string, upload graphql.Upload) error {
	parts := strings.Split(path, ".")
	if len(parts) < 2 || parts[0] != "variables" {
		return fmt.Errorf("upload path %q is not a variable", path)
	}
	if len(parts) == 2 {
		graphql.SetVariable(&request.Variables, parts[1], upload)
		return nil
	}

	container := request.Variables.Data[parts[1]]
	for i, part := range parts[2:] {
		last := i == len(parts)-3
		switch c := container.(type) {
		case map[string]interface{}:
			if last {
				c[part] = upload
				return nil
			}
			container = c[part]
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(c) {
				return fmt.Errorf("upload path %q has bad list index %q", path, part)
			}
			if last {
				c[idx] = upload
				return nil
			}
			container = c[idx]
		default:
			return fmt.Errorf("upload path %q not found in variables", path)
		}
	}
	return nil
}
